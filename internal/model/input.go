package model

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tphakala/fieldlog/internal/errors"
)

// SpeciesInput is a species entry as submitted by a user.
type SpeciesInput struct {
	Taxon    Taxon  `json:"taxon"`
	Gender   Gender `json:"gender"`
	Count    int    `json:"count"`
	Age      string `json:"age,omitempty"`
	Method   string `json:"method,omitempty"`
	Activity string `json:"activity,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// ObservationInput holds the fields needed to create an Observation.
type ObservationInput struct {
	LocationName      string         `json:"locationName,omitempty"`
	Point             Point          `json:"point"`
	UncertaintyRadius float64        `json:"uncertaintyRadius"`
	StartDate         *time.Time     `json:"startDate,omitempty"`
	EndDate           *time.Time     `json:"endDate,omitempty"`
	Species           []SpeciesInput `json:"speciesObservations"`
	Comment           string         `json:"comment,omitempty"`
}

// ObservationPatch updates an existing Observation. Nil fields are left
// unchanged. A non-nil Species replaces every existing species entry.
type ObservationPatch struct {
	ID                string         `json:"id"`
	LocationName      *string        `json:"locationName,omitempty"`
	Point             *Point         `json:"point,omitempty"`
	UncertaintyRadius *float64       `json:"uncertaintyRadius,omitempty"`
	StartDate         *time.Time     `json:"startDate,omitempty"`
	EndDate           *time.Time     `json:"endDate,omitempty"`
	Species           []SpeciesInput `json:"speciesObservations,omitempty"`
	Comment           *string        `json:"comment,omitempty"`
}

// LocationInput holds the fields needed to create a UserLocation.
type LocationInput struct {
	Name              string  `json:"name"`
	Point             Point   `json:"point"`
	UncertaintyRadius float64 `json:"uncertaintyRadius"`
	Description       string  `json:"description,omitempty"`
}

// LocationPatch updates an existing UserLocation. Nil fields are left unchanged.
type LocationPatch struct {
	ID                string   `json:"id"`
	Name              *string  `json:"name,omitempty"`
	Point             *Point   `json:"point,omitempty"`
	UncertaintyRadius *float64 `json:"uncertaintyRadius,omitempty"`
	Description       *string  `json:"description,omitempty"`
}

func invalid(field, format string, args ...any) error {
	return errors.Newf("%s: %s", field, fmt.Sprintf(format, args...)).
		Component("model").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

// Validate checks that p is a finite coordinate within WGS84 bounds.
func (p Point) Validate() error {
	switch {
	case math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0):
		return invalid("lat", "must be a number")
	case math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0):
		return invalid("lng", "must be a number")
	case p.Lat < -90 || p.Lat > 90:
		return invalid("lat", "must be between -90 and 90, got %g", p.Lat)
	case p.Lng < -180 || p.Lng > 180:
		return invalid("lng", "must be between -180 and 180, got %g", p.Lng)
	}
	return nil
}

// ParseGender normalizes s into a Gender. Empty input means unknown.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GenderUnknown, nil
	case GenderMale, GenderFemale, GenderUnknown:
		return g, nil
	}
	return "", invalid("gender", "must be male, female or unknown, got %q", s)
}

func validateRadius(r float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return invalid("uncertaintyRadius", "must be a positive number of meters, got %g", r)
	}
	return nil
}

func validateDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return invalid("endDate", "must not be before startDate")
	}
	return nil
}

// Normalize validates the entry and fills in defaults.
func (s *SpeciesInput) Normalize() error {
	var errs []error
	if s.Taxon.ID <= 0 && strings.TrimSpace(s.Taxon.ScientificName) == "" {
		errs = append(errs, invalid("taxon", "a species must be selected"))
	}
	if s.Count <= 0 {
		errs = append(errs, invalid("count", "must be a positive integer, got %d", s.Count))
	}
	g, err := ParseGender(string(s.Gender))
	if err != nil {
		errs = append(errs, err)
	} else {
		s.Gender = g
	}
	return errors.Join(errs...)
}

func normalizeSpecies(species []SpeciesInput) error {
	if len(species) == 0 {
		return invalid("speciesObservations", "at least one species is required")
	}
	var errs []error
	for i := range species {
		errs = append(errs, species[i].Normalize())
	}
	return errors.Join(errs...)
}

// Validate checks the input and normalizes species genders in place.
func (in *ObservationInput) Validate() error {
	return errors.Join(
		in.Point.Validate(),
		validateRadius(in.UncertaintyRadius),
		validateDates(in.StartDate, in.EndDate),
		normalizeSpecies(in.Species),
	)
}

// ValidateDates checks the date range once a patch has been applied, since
// a patch may carry only one of the two dates.
func (o *Observation) ValidateDates() error {
	return validateDates(o.StartDate, o.EndDate)
}

// Validate checks the fields present in the patch.
func (p *ObservationPatch) Validate() error {
	var errs []error
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, invalid("id", "is required"))
	}
	if p.Point != nil {
		errs = append(errs, p.Point.Validate())
	}
	if p.UncertaintyRadius != nil {
		errs = append(errs, validateRadius(*p.UncertaintyRadius))
	}
	errs = append(errs, validateDates(p.StartDate, p.EndDate))
	if p.Species != nil {
		errs = append(errs, normalizeSpecies(p.Species))
	}
	return errors.Join(errs...)
}

// Validate checks the input and trims the name.
func (in *LocationInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	var errs []error
	if in.Name == "" {
		errs = append(errs, invalid("name", "is required"))
	}
	errs = append(errs, in.Point.Validate(), validateRadius(in.UncertaintyRadius))
	return errors.Join(errs...)
}

// Validate checks the fields present in the patch.
func (p *LocationPatch) Validate() error {
	var errs []error
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, invalid("id", "is required"))
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			errs = append(errs, invalid("name", "must not be empty"))
		}
		p.Name = &name
	}
	if p.Point != nil {
		errs = append(errs, p.Point.Validate())
	}
	if p.UncertaintyRadius != nil {
		errs = append(errs, validateRadius(*p.UncertaintyRadius))
	}
	return errors.Join(errs...)
}

// NewSpecies builds species entries for an observation from validated input.
// Ids are assigned by the caller's id function.
func NewSpecies(observationID string, in []SpeciesInput, newID func() string) []SpeciesObservation {
	out := make([]SpeciesObservation, len(in))
	for i, s := range in {
		out[i] = SpeciesObservation{
			ID:            newID(),
			ObservationID: observationID,
			Taxon:         s.Taxon,
			Gender:        s.Gender,
			Count:         s.Count,
			Age:           s.Age,
			Method:        s.Method,
			Activity:      s.Activity,
			Comment:       s.Comment,
		}
	}
	return out
}

// Apply copies the non-nil patch fields onto o, except Species.
func (p *ObservationPatch) Apply(o *Observation) {
	if p.LocationName != nil {
		o.LocationName = *p.LocationName
	}
	if p.Point != nil {
		o.Point = *p.Point
	}
	if p.UncertaintyRadius != nil {
		o.UncertaintyRadius = *p.UncertaintyRadius
	}
	if p.StartDate != nil {
		o.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		o.EndDate = p.EndDate
	}
	if p.Comment != nil {
		o.Comment = *p.Comment
	}
}

// Apply copies the non-nil patch fields onto l.
func (p *LocationPatch) Apply(l *UserLocation) {
	if p.Name != nil {
		l.Name = *p.Name
	}
	if p.Point != nil {
		l.Point = *p.Point
	}
	if p.UncertaintyRadius != nil {
		l.UncertaintyRadius = *p.UncertaintyRadius
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
}
