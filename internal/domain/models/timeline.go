package models

import "time"

// ProcessingStage labels the step of the supply chain a timeline event
// belongs to.
type ProcessingStage string

const (
	StageReceived       ProcessingStage = "received"
	StageInspected      ProcessingStage = "inspected"
	StageProcessed      ProcessingStage = "processed"
	StagePackaged       ProcessingStage = "packaged"
	StageStored         ProcessingStage = "stored"
	StageShipped        ProcessingStage = "shipped"
	StageTransferred    ProcessingStage = "transferred"
	StageQualityChecked ProcessingStage = "quality_checked"
)

// ValidStage reports whether s is one of the known processing stages.
func ValidStage(s ProcessingStage) bool {
	switch s {
	case StageReceived, StageInspected, StageProcessed, StagePackaged,
		StageStored, StageShipped, StageTransferred, StageQualityChecked:
		return true
	}
	return false
}

// TimelineEvent is an append-only log entry attached to a product. Events
// are ordered by Seq, which the store assigns on append, and are never
// mutated or deleted afterwards.
type TimelineEvent struct {
	ProductID string          `bson:"product_id" json:"product_id"`
	Seq       int64           `bson:"seq" json:"seq"`
	Stage     ProcessingStage `bson:"stage" json:"stage"`
	Action    string          `bson:"action" json:"action"`
	Location  string          `bson:"location,omitempty" json:"location,omitempty"`
	Actor     string          `bson:"actor" json:"actor"`
	Timestamp time.Time       `bson:"timestamp" json:"timestamp"`
}
