// Package export turns observations into a spreadsheet, delivers it locally
// and, when remote storage is configured, archives it remotely.
package export

import (
	"strconv"
	"time"

	"github.com/tphakala/fieldlog/internal/model"
)

// Columns is the header row, in output order.
var Columns = []string{
	"Observasjons-ID",
	"Lokalitet",
	"Breddegrad",
	"Lengdegrad",
	"Usikkerhet (m)",
	"Startdato",
	"Sluttdato",
	"Art (norsk)",
	"Art (vitenskapelig)",
	"Antall",
	"Kjønn",
	"Alder",
	"Metode",
	"Aktivitet",
	"Artskommentar",
	"Kommentar",
	"Opprettet",
	"Oppdatert",
	"Sist eksportert",
	"Antall eksporter",
}

const (
	dateLayout      = "2006-01-02 15:04"
	timestampLayout = "2006-01-02 15:04:05"
)

// Row is one output line: a species entry with its observation's fields.
type Row struct {
	ObservationID     string
	LocationName      string
	Lat               float64
	Lng               float64
	UncertaintyRadius float64
	StartDate         *time.Time
	EndDate           *time.Time
	VernacularName    string
	ScientificName    string
	Count             int
	Gender            model.Gender
	Age               string
	Method            string
	Activity          string
	SpeciesComment    string
	Comment           string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastExportedAt    *time.Time
	ExportCount       int
}

// Rows flattens observations to one row per species entry, keeping order.
func Rows(observations []model.Observation) []Row {
	rows := make([]Row, 0, model.SpeciesCount(observations))
	for i := range observations {
		o := &observations[i]
		for _, s := range o.Species {
			rows = append(rows, Row{
				ObservationID:     o.ID,
				LocationName:      o.LocationName,
				Lat:               o.Point.Lat,
				Lng:               o.Point.Lng,
				UncertaintyRadius: o.UncertaintyRadius,
				StartDate:         o.StartDate,
				EndDate:           o.EndDate,
				VernacularName:    s.Taxon.VernacularName,
				ScientificName:    s.Taxon.ScientificName,
				Count:             s.Count,
				Gender:            s.Gender,
				Age:               s.Age,
				Method:            s.Method,
				Activity:          s.Activity,
				SpeciesComment:    s.Comment,
				Comment:           o.Comment,
				CreatedAt:         o.CreatedAt,
				UpdatedAt:         o.UpdatedAt,
				LastExportedAt:    o.LastExportedAt,
				ExportCount:       o.ExportCount,
			})
		}
	}
	return rows
}

// genderLabel renders a gender in Norwegian.
func genderLabel(g model.Gender) string {
	switch g {
	case model.GenderMale:
		return "hann"
	case model.GenderFemale:
		return "hunn"
	default:
		return "ukjent"
	}
}

func formatTime(t *time.Time, layout string, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format(layout)
}

// values returns the cell values in column order.
func (r *Row) values(loc *time.Location) []any {
	return []any{
		r.ObservationID,
		r.LocationName,
		r.Lat,
		r.Lng,
		r.UncertaintyRadius,
		formatTime(r.StartDate, dateLayout, loc),
		formatTime(r.EndDate, dateLayout, loc),
		r.VernacularName,
		r.ScientificName,
		r.Count,
		genderLabel(r.Gender),
		r.Age,
		r.Method,
		r.Activity,
		r.SpeciesComment,
		r.Comment,
		formatTime(&r.CreatedAt, timestampLayout, loc),
		formatTime(&r.UpdatedAt, timestampLayout, loc),
		formatTime(r.LastExportedAt, timestampLayout, loc),
		r.ExportCount,
	}
}

// Strings returns the row as text, as a spreadsheet reader would show it.
func (r *Row) Strings(loc *time.Location) []string {
	vals := r.values(loc)
	out := make([]string, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case string:
			out[i] = x
		case int:
			out[i] = strconv.Itoa(x)
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		}
	}
	return out
}
