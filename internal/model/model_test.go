package model

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fieldlog/internal/errors"
)

func validObservation() ObservationInput {
	return ObservationInput{
		LocationName:      "Østensjøvannet",
		Point:             Point{Lat: 59.8887, Lng: 10.8312},
		UncertaintyRadius: 25,
		Species: []SpeciesInput{
			{Taxon: Taxon{ID: 3804, ScientificName: "Anas platyrhynchos", VernacularName: "stokkand"}, Count: 4},
		},
	}
}

func TestPointValidate(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		ok    bool
	}{
		{"oslo", Point{59.9139, 10.7522}, true},
		{"poles and antimeridian", Point{-90, 180}, true},
		{"lat too high", Point{90.0001, 0}, false},
		{"lng too low", Point{0, -180.5}, false},
		{"nan", Point{math.NaN(), 10}, false},
		{"inf", Point{10, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestParseGender(t *testing.T) {
	g, err := ParseGender("")
	require.NoError(t, err)
	assert.Equal(t, GenderUnknown, g)

	g, err = ParseGender(" Female ")
	require.NoError(t, err)
	assert.Equal(t, GenderFemale, g)

	_, err = ParseGender("both")
	assert.True(t, errors.IsValidation(err))
}

func TestObservationInputValidate(t *testing.T) {
	in := validObservation()
	require.NoError(t, in.Validate())
	assert.Equal(t, GenderUnknown, in.Species[0].Gender, "empty gender normalizes to unknown")

	tests := []struct {
		name   string
		mutate func(*ObservationInput)
		field  string
	}{
		{"no species", func(in *ObservationInput) { in.Species = nil }, "speciesObservations"},
		{"zero count", func(in *ObservationInput) { in.Species[0].Count = 0 }, "count"},
		{"no taxon", func(in *ObservationInput) { in.Species[0].Taxon = Taxon{} }, "taxon"},
		{"radius zero", func(in *ObservationInput) { in.UncertaintyRadius = 0 }, "uncertaintyRadius"},
		{"radius nan", func(in *ObservationInput) { in.UncertaintyRadius = math.NaN() }, "uncertaintyRadius"},
		{"bad point", func(in *ObservationInput) { in.Point.Lat = 100 }, "lat"},
		{"dates reversed", func(in *ObservationInput) {
			start := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
			end := start.Add(-time.Hour)
			in.StartDate, in.EndDate = &start, &end
		}, "endDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validObservation()
			tt.mutate(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestObservationPatch(t *testing.T) {
	p := ObservationPatch{}
	assert.Error(t, p.Validate(), "id is required")

	comment := "updated"
	radius := 50.0
	p = ObservationPatch{ID: "obs-1", Comment: &comment, UncertaintyRadius: &radius}
	require.NoError(t, p.Validate())

	o := Observation{ID: "obs-1", Comment: "old", UncertaintyRadius: 10, LocationName: "kept"}
	p.Apply(&o)
	assert.Equal(t, "updated", o.Comment)
	assert.Equal(t, 50.0, o.UncertaintyRadius)
	assert.Equal(t, "kept", o.LocationName)

	p.Species = []SpeciesInput{}
	assert.Error(t, p.Validate(), "an explicit empty species list is rejected")
}

func TestLocationInputValidate(t *testing.T) {
	in := LocationInput{Name: "  Hjemme ", Point: Point{59.9139, 10.7522}, UncertaintyRadius: 10}
	require.NoError(t, in.Validate())
	assert.Equal(t, "Hjemme", in.Name)

	in = LocationInput{Name: " ", Point: Point{59.9139, 10.7522}, UncertaintyRadius: -1}
	err := in.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "uncertaintyRadius")
}

func TestOwner(t *testing.T) {
	assert.True(t, Anonymous.IsAnonymous())
	assert.Nil(t, Anonymous.UserID())
	assert.Equal(t, "anonymous", Anonymous.Folder())

	u := Owner("user-1")
	require.NotNil(t, u.UserID())
	assert.Equal(t, "user-1", *u.UserID())
	assert.Equal(t, "user-1", u.Folder())
	assert.True(t, u.Matches(u.UserID()))
	assert.False(t, u.Matches(nil))
	assert.True(t, Anonymous.Matches(nil))
}

func TestNewSpecies(t *testing.T) {
	n := 0
	ids := func() string { n++; return "sp-" + strconv.Itoa(n) }
	in := validObservation()
	require.NoError(t, in.Validate())

	out := NewSpecies("obs-9", in.Species, ids)
	require.Len(t, out, 1)
	assert.Equal(t, "sp-1", out[0].ID)
	assert.Equal(t, "obs-9", out[0].ObservationID)
	assert.Equal(t, 4, out[0].Count)
	assert.Equal(t, "stokkand", out[0].Taxon.VernacularName)
}

func TestSpeciesCount(t *testing.T) {
	obs := []Observation{
		{Species: make([]SpeciesObservation, 2)},
		{Species: make([]SpeciesObservation, 3)},
		{},
	}
	assert.Equal(t, 5, SpeciesCount(obs))
}
