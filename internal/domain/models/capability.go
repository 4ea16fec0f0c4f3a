package models

import "time"

// Role is the function a user performs inside a farm, processing unit or
// shop. Users can hold different roles in different organizations.
type Role string

const (
	RoleFarmer         Role = "farmer"
	RoleOwner          Role = "owner"
	RoleManager        Role = "manager"
	RoleSupervisor     Role = "supervisor"
	RoleWorker         Role = "worker"
	RoleQualityControl Role = "quality_control"
	RoleSalesperson    Role = "salesperson"
)

// Permission is the access level granted by a capability. Levels are
// ordered: admin implies write, write implies read.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// rank orders permissions for the implication check.
func (p Permission) rank() int {
	switch p {
	case PermissionRead:
		return 1
	case PermissionWrite:
		return 2
	case PermissionAdmin:
		return 3
	}
	return 0
}

// Covers reports whether holding p satisfies a requirement of q.
func (p Permission) Covers(q Permission) bool { return p.rank() >= q.rank() }

// ScopeKind identifies the organization type a capability is scoped to.
type ScopeKind string

const (
	ScopeFarmer         ScopeKind = "farmer"
	ScopeProcessingUnit ScopeKind = "processing_unit"
	ScopeShop           ScopeKind = "shop"
)

// Capability is one row of the flat authorization table: a user holds a
// role with a permission level inside one organization. Operations are
// authorized by a single lookup against this table, not by role
// inheritance.
type Capability struct {
	UserID     string     `bson:"user_id" json:"user_id"`
	ScopeKind  ScopeKind  `bson:"scope_kind" json:"scope_kind"`
	ScopeID    string     `bson:"scope_id" json:"scope_id"`
	Role       Role       `bson:"role" json:"role"`
	Permission Permission `bson:"permission" json:"permission"`
	GrantedAt  time.Time  `bson:"granted_at" json:"granted_at"`
}
