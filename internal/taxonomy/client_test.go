package taxonomy

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fieldlog/internal/errors"
)

const testBaseURL = "https://registry.test/publicapi/api"

const stokkandResponse = `[
	{"Id": 3804, "ScientificNameId": 3804, "ScientificName": "Anas platyrhynchos", "PopularName": "stokkand", "TaxonGroup": "Fugler", "AcceptedNameId": 3804},
	{"Id": 3811, "ScientificNameId": 3811, "ScientificName": "Anas crecca", "PopularName": "krikkand", "TaxonGroup": "Fugler"}
]`

func setupTestClient(t *testing.T, group string) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client, err := NewClient(Config{
		BaseURL:    testBaseURL,
		TaxonGroup: group,
		Timeout:    time.Second,
		CacheTTL:   time.Minute,
		Transport:  transport,
	})
	require.NoError(t, err)
	return client, transport
}

func TestSearchMapsRecords(t *testing.T) {
	client, transport := setupTestClient(t, "")
	transport.RegisterResponderWithQuery(http.MethodGet, testBaseURL+"/taxon", "term=and",
		httpmock.NewStringResponder(http.StatusOK, stokkandResponse))

	taxa, err := client.Search(context.Background(), "and")
	require.NoError(t, err)
	require.Len(t, taxa, 2)
	assert.Equal(t, 3804, taxa[0].ID)
	assert.Equal(t, "stokkand", taxa[0].VernacularName)
	assert.Equal(t, "Anas platyrhynchos", taxa[0].ScientificName)
	assert.Equal(t, "Fugler", taxa[0].TaxonGroup)
	assert.Equal(t, 3804, taxa[0].AcceptedNameID)
	assert.Zero(t, taxa[1].AcceptedNameID)
}

func TestSearchSendsTaxonGroup(t *testing.T) {
	client, transport := setupTestClient(t, "1")
	transport.RegisterResponderWithQuery(http.MethodGet, testBaseURL+"/taxon", "term=kr%C3%A5ke&taxonGroups=1",
		httpmock.NewStringResponder(http.StatusOK, `[]`))

	taxa, err := client.Find(context.Background(), "kråke")
	require.NoError(t, err)
	assert.Empty(t, taxa)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestSearchCachesPerTerm(t *testing.T) {
	client, transport := setupTestClient(t, "")
	transport.RegisterResponder(http.MethodGet, `=~^`+testBaseURL+`/taxon`,
		httpmock.NewStringResponder(http.StatusOK, stokkandResponse))

	for range 3 {
		taxa, err := client.Search(context.Background(), "and")
		require.NoError(t, err)
		require.Len(t, taxa, 2)
	}
	_, err := client.Search(context.Background(), "AND ")
	require.NoError(t, err)
	assert.Equal(t, 1, transport.GetTotalCallCount(), "term is trimmed and case-folded for the cache")

	client.ClearCache()
	_, err = client.Search(context.Background(), "and")
	require.NoError(t, err)
	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestSearchDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		category  errors.ErrorCategory
	}{
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, "boom"), errors.CategoryLookup},
		{"bad json", httpmock.NewStringResponder(http.StatusOK, "<html>"), errors.CategoryLookup},
		{"transport", httpmock.NewErrorResponder(errors.NewStd("connection refused")), errors.CategoryNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := setupTestClient(t, "")
			transport.RegisterResponder(http.MethodGet, `=~^`+testBaseURL+`/taxon`, tt.responder)

			taxa, err := client.Search(context.Background(), "and")
			require.NoError(t, err)
			assert.NotNil(t, taxa)
			assert.Empty(t, taxa)

			_, err = client.Find(context.Background(), "and")
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category))
		})
	}
}

func TestSearchFailureIsNotCached(t *testing.T) {
	client, transport := setupTestClient(t, "")
	transport.RegisterResponder(http.MethodGet, `=~^`+testBaseURL+`/taxon`,
		httpmock.NewStringResponder(http.StatusBadGateway, ""))

	_, _ = client.Search(context.Background(), "and")

	transport.RegisterResponder(http.MethodGet, `=~^`+testBaseURL+`/taxon`,
		httpmock.NewStringResponder(http.StatusOK, stokkandResponse))
	taxa, err := client.Search(context.Background(), "and")
	require.NoError(t, err)
	assert.Len(t, taxa, 2)
}

func TestEmptyTermSkipsRequest(t *testing.T) {
	client, transport := setupTestClient(t, "")
	taxa, err := client.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, taxa)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
