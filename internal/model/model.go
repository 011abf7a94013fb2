// Package model defines the field-observation domain types shared by the
// stores, the export pipeline and the HTTP API.
package model

import (
	"time"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Gender of the observed individuals.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// Taxon is a species reference from the external taxonomy registry.
// It is never mutated by fieldlog; observations keep a snapshot of it.
type Taxon struct {
	ID               int    `json:"id"`
	ScientificNameID int    `json:"scientificNameId"`
	ScientificName   string `json:"scientificName"`
	VernacularName   string `json:"vernacularName"`
	TaxonGroup       string `json:"taxonGroup,omitempty"`
	AcceptedNameID   int    `json:"acceptedNameId,omitempty"`
}

// SpeciesObservation is one species entry within an Observation.
type SpeciesObservation struct {
	ID            string `json:"id"`
	ObservationID string `json:"observationId"`
	Taxon         Taxon  `json:"taxon"`
	Gender        Gender `json:"gender"`
	Count         int    `json:"count"`
	Age           string `json:"age,omitempty"`
	Method        string `json:"method,omitempty"`
	Activity      string `json:"activity,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// Observation is a logged sighting at a place and time.
type Observation struct {
	ID                string               `json:"id"`
	UserID            *string              `json:"userId"`
	LocationName      string               `json:"locationName,omitempty"`
	Point             Point                `json:"point"`
	UncertaintyRadius float64              `json:"uncertaintyRadius"`
	StartDate         *time.Time           `json:"startDate,omitempty"`
	EndDate           *time.Time           `json:"endDate,omitempty"`
	Species           []SpeciesObservation `json:"speciesObservations"`
	Comment           string               `json:"comment,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
	LastExportedAt    *time.Time           `json:"lastExportedAt,omitempty"`
	ExportCount       int                  `json:"exportCount"`
}

// UserLocation is a saved, reusable named point.
type UserLocation struct {
	ID                string    `json:"id"`
	UserID            *string   `json:"userId"`
	Name              string    `json:"name"`
	Point             Point     `json:"point"`
	UncertaintyRadius float64   `json:"uncertaintyRadius"`
	Description       string    `json:"description,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ExportLog records one completed spreadsheet export.
type ExportLog struct {
	ID             string    `json:"id"`
	UserID         *string   `json:"userId"`
	ObservationIDs []string  `json:"observationIds"`
	FileName       string    `json:"fileName"`
	StoragePath    string    `json:"storagePath,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Owner identifies the user a record belongs to. The zero value is the
// anonymous owner; anonymous and user-owned records are never listed together.
type Owner string

// Anonymous is the owner of records created without a user identity.
const Anonymous Owner = ""

// OwnerOf converts a nullable user id column into an Owner.
func OwnerOf(userID *string) Owner {
	if userID == nil {
		return Anonymous
	}
	return Owner(*userID)
}

// IsAnonymous reports whether o is the anonymous owner.
func (o Owner) IsAnonymous() bool {
	return o == Anonymous
}

// UserID returns the nullable user id for o.
func (o Owner) UserID() *string {
	if o.IsAnonymous() {
		return nil
	}
	id := string(o)
	return &id
}

// Folder returns the object storage folder for o.
func (o Owner) Folder() string {
	if o.IsAnonymous() {
		return "anonymous"
	}
	return string(o)
}

// Matches reports whether a record with the given user id belongs to o.
func (o Owner) Matches(userID *string) bool {
	return OwnerOf(userID) == o
}

// SpeciesCount returns the total number of species entries across observations.
func SpeciesCount(observations []Observation) int {
	n := 0
	for i := range observations {
		n += len(observations[i].Species)
	}
	return n
}
