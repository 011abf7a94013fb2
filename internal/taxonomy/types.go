// Package taxonomy searches the public species registry and debounces
// as-you-type lookups.
package taxonomy

import (
	"time"

	"github.com/tphakala/fieldlog/internal/model"
)

// taxonRecord is one entry of the registry's /taxon response.
type taxonRecord struct {
	ID               int    `json:"Id"`
	ScientificNameID int    `json:"ScientificNameId"`
	ScientificName   string `json:"ScientificName"`
	PopularName      string `json:"PopularName"`
	TaxonGroup       string `json:"TaxonGroup"`
	AcceptedNameID   int    `json:"AcceptedNameId"`
}

func (r taxonRecord) toModel() model.Taxon {
	return model.Taxon{
		ID:               r.ID,
		ScientificNameID: r.ScientificNameID,
		ScientificName:   r.ScientificName,
		VernacularName:   r.PopularName,
		TaxonGroup:       r.TaxonGroup,
		AcceptedNameID:   r.AcceptedNameID,
	}
}

// Result is a search result delivered by Lookup.
type Result struct {
	Term       string        `json:"term"`
	Generation uint64        `json:"generation"`
	Taxa       []model.Taxon `json:"taxa"`
}

// Default settings
const (
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = time.Hour
)
