package datastore

import (
	"encoding/json"
	"time"

	"github.com/tphakala/fieldlog/internal/model"
)

// ObservationRow is the observations table.
type ObservationRow struct {
	ID                string  `gorm:"primaryKey;type:varchar(36)"`
	UserID            *string `gorm:"index;type:varchar(191)"`
	LocationName      string  `gorm:"type:varchar(255)"`
	Lat               float64 `gorm:"not null"`
	Lng               float64 `gorm:"not null"`
	UncertaintyRadius float64 `gorm:"not null"`
	StartDate         *time.Time
	EndDate           *time.Time
	Comment           string    `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"index"`
	UpdatedAt         time.Time
	LastExportedAt    *time.Time
	ExportCount       int                     `gorm:"not null;default:0"`
	Species           []SpeciesObservationRow `gorm:"foreignKey:ObservationID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the gorm default
func (ObservationRow) TableName() string { return "observations" }

// SpeciesObservationRow is the species_observations table. Position keeps
// the order in which entries were submitted.
type SpeciesObservationRow struct {
	ID               string `gorm:"primaryKey;type:varchar(36)"`
	ObservationID    string `gorm:"index;not null;type:varchar(36)"`
	Position         int    `gorm:"not null;default:0"`
	TaxonID          int    `gorm:"index"`
	ScientificNameID int
	ScientificName   string `gorm:"type:varchar(255)"`
	VernacularName   string `gorm:"type:varchar(255)"`
	TaxonGroup       string `gorm:"type:varchar(100)"`
	AcceptedNameID   int
	Gender           string `gorm:"type:varchar(10);not null"`
	Count            int    `gorm:"not null"`
	Age              string `gorm:"type:varchar(100)"`
	Method           string `gorm:"type:varchar(100)"`
	Activity         string `gorm:"type:varchar(100)"`
	Comment          string `gorm:"type:text"`
}

// TableName overrides the gorm default
func (SpeciesObservationRow) TableName() string { return "species_observations" }

// LocationRow is the locations table.
type LocationRow struct {
	ID                string  `gorm:"primaryKey;type:varchar(36)"`
	UserID            *string `gorm:"index;type:varchar(191)"`
	Name              string  `gorm:"type:varchar(255);not null"`
	Lat               float64 `gorm:"not null"`
	Lng               float64 `gorm:"not null"`
	UncertaintyRadius float64 `gorm:"not null"`
	Description       string  `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides the gorm default
func (LocationRow) TableName() string { return "locations" }

// ExportLogRow is the export_logs table. ObservationIDs holds a JSON array.
type ExportLogRow struct {
	ID             string  `gorm:"primaryKey;type:varchar(36)"`
	UserID         *string `gorm:"index;type:varchar(191)"`
	ObservationIDs string  `gorm:"type:text;not null"`
	FileName       string  `gorm:"type:varchar(255);not null"`
	StoragePath    string  `gorm:"type:varchar(1024)"`
	CreatedAt      time.Time
}

// TableName overrides the gorm default
func (ExportLogRow) TableName() string { return "export_logs" }

func speciesRows(species []model.SpeciesObservation) []SpeciesObservationRow {
	rows := make([]SpeciesObservationRow, len(species))
	for i, s := range species {
		rows[i] = SpeciesObservationRow{
			ID:               s.ID,
			ObservationID:    s.ObservationID,
			Position:         i,
			TaxonID:          s.Taxon.ID,
			ScientificNameID: s.Taxon.ScientificNameID,
			ScientificName:   s.Taxon.ScientificName,
			VernacularName:   s.Taxon.VernacularName,
			TaxonGroup:       s.Taxon.TaxonGroup,
			AcceptedNameID:   s.Taxon.AcceptedNameID,
			Gender:           string(s.Gender),
			Count:            s.Count,
			Age:              s.Age,
			Method:           s.Method,
			Activity:         s.Activity,
			Comment:          s.Comment,
		}
	}
	return rows
}

func observationRowFrom(o *model.Observation) ObservationRow {
	return ObservationRow{
		ID:                o.ID,
		UserID:            o.UserID,
		LocationName:      o.LocationName,
		Lat:               o.Point.Lat,
		Lng:               o.Point.Lng,
		UncertaintyRadius: o.UncertaintyRadius,
		StartDate:         o.StartDate,
		EndDate:           o.EndDate,
		Comment:           o.Comment,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		LastExportedAt:    o.LastExportedAt,
		ExportCount:       o.ExportCount,
	}
}

func (r *ObservationRow) toModel() model.Observation {
	species := make([]model.SpeciesObservation, len(r.Species))
	for i, s := range r.Species {
		species[i] = model.SpeciesObservation{
			ID:            s.ID,
			ObservationID: s.ObservationID,
			Taxon: model.Taxon{
				ID:               s.TaxonID,
				ScientificNameID: s.ScientificNameID,
				ScientificName:   s.ScientificName,
				VernacularName:   s.VernacularName,
				TaxonGroup:       s.TaxonGroup,
				AcceptedNameID:   s.AcceptedNameID,
			},
			Gender:   model.Gender(s.Gender),
			Count:    s.Count,
			Age:      s.Age,
			Method:   s.Method,
			Activity: s.Activity,
			Comment:  s.Comment,
		}
	}
	return model.Observation{
		ID:                r.ID,
		UserID:            r.UserID,
		LocationName:      r.LocationName,
		Point:             model.Point{Lat: r.Lat, Lng: r.Lng},
		UncertaintyRadius: r.UncertaintyRadius,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		Species:           species,
		Comment:           r.Comment,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		LastExportedAt:    r.LastExportedAt,
		ExportCount:       r.ExportCount,
	}
}

func locationRowFrom(l *model.UserLocation) LocationRow {
	return LocationRow{
		ID:                l.ID,
		UserID:            l.UserID,
		Name:              l.Name,
		Lat:               l.Point.Lat,
		Lng:               l.Point.Lng,
		UncertaintyRadius: l.UncertaintyRadius,
		Description:       l.Description,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func (r *LocationRow) toModel() model.UserLocation {
	return model.UserLocation{
		ID:                r.ID,
		UserID:            r.UserID,
		Name:              r.Name,
		Point:             model.Point{Lat: r.Lat, Lng: r.Lng},
		UncertaintyRadius: r.UncertaintyRadius,
		Description:       r.Description,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func exportLogRowFrom(e *model.ExportLog) (ExportLogRow, error) {
	ids, err := json.Marshal(e.ObservationIDs)
	if err != nil {
		return ExportLogRow{}, err
	}
	return ExportLogRow{
		ID:             e.ID,
		UserID:         e.UserID,
		ObservationIDs: string(ids),
		FileName:       e.FileName,
		StoragePath:    e.StoragePath,
		CreatedAt:      e.CreatedAt,
	}, nil
}

func (r *ExportLogRow) toModel() (model.ExportLog, error) {
	var ids []string
	if err := json.Unmarshal([]byte(r.ObservationIDs), &ids); err != nil {
		return model.ExportLog{}, err
	}
	return model.ExportLog{
		ID:             r.ID,
		UserID:         r.UserID,
		ObservationIDs: ids,
		FileName:       r.FileName,
		StoragePath:    r.StoragePath,
		CreatedAt:      r.CreatedAt,
	}, nil
}
