package models

import "time"

// Species enumerates the supported animal species.
type Species string

const (
	SpeciesCow     Species = "cow"
	SpeciesPig     Species = "pig"
	SpeciesChicken Species = "chicken"
	SpeciesSheep   Species = "sheep"
	SpeciesGoat    Species = "goat"
)

// ValidSpecies reports whether s is a known species.
func ValidSpecies(s Species) bool {
	switch s {
	case SpeciesCow, SpeciesPig, SpeciesChicken, SpeciesSheep, SpeciesGoat:
		return true
	}
	return false
}

// Animal is the root traceable unit. It is owned by a farmer until custody
// moves to a processing unit on confirmed receipt.
type Animal struct {
	ID           string    `bson:"_id" json:"id"`
	FarmerID     string    `bson:"farmer_id" json:"farmer_id"`
	Name         string    `bson:"name,omitempty" json:"name,omitempty"`
	Species      Species   `bson:"species" json:"species"`
	Breed        string    `bson:"breed,omitempty" json:"breed,omitempty"`
	AgeMonths    float64   `bson:"age_months" json:"age_months"`
	Gender       string    `bson:"gender,omitempty" json:"gender,omitempty"`
	HealthStatus string    `bson:"health_status,omitempty" json:"health_status,omitempty"`
	AbattoirName string    `bson:"abattoir_name,omitempty" json:"abattoir_name,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`

	// LiveWeight is the weight in kg before slaughter. RemainingWeight
	// starts equal to LiveWeight and only ever decreases as parts are
	// carved out.
	LiveWeight      float64 `bson:"live_weight" json:"live_weight"`
	RemainingWeight float64 `bson:"remaining_weight" json:"remaining_weight"`

	Status        LifecycleStatus `bson:"status" json:"status"`
	Custody       Custody         `bson:"custody" json:"custody"`
	Slaughtered   bool            `bson:"slaughtered" json:"slaughtered"`
	SlaughteredAt *time.Time      `bson:"slaughtered_at,omitempty" json:"slaughtered_at,omitempty"`
	Processed     bool            `bson:"processed" json:"processed"`

	RejectionStatus RejectionStatus `bson:"rejection_status,omitempty" json:"rejection_status,omitempty"`
	AppealStatus    AppealStatus    `bson:"appeal_status,omitempty" json:"appeal_status,omitempty"`

	// Version guards concurrent transitions via compare-and-swap updates.
	Version int64 `bson:"version" json:"version"`
}
