package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://www.SarkariResult.com/latestjob/", "www.sarkariresult.com"},
		{"no scheme", "freejobalert.com/path", "freejobalert.com"},
		{"host with port", "localhost:8080", "localhost"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	first := cyclesTotal
	Init()
	assert.Same(t, first, cyclesTotal)
}

func TestObservers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(clustersTotal.WithLabelValues("inserted"))
	ObserveCluster("inserted")
	assert.Equal(t, before+1, testutil.ToFloat64(clustersTotal.WithLabelValues("inserted")))

	site := "observers.example"
	ObserveDiscovered("https://"+site+"/list", 3)
	ObserveDiscovered("https://"+site+"/list", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(linksDiscoveredTotal.WithLabelValues(site)))

	ObserveArticle("https://"+site+"/a", ArticleShort)
	assert.Equal(t, 1.0, testutil.ToFloat64(articlesTotal.WithLabelValues(site, ArticleShort)))

	ObserveArchived(map[string]int{"observers_result": 2, "observers_syllabus": 0})
	assert.Equal(t, 2.0, testutil.ToFloat64(recordsArchivedTotal.WithLabelValues("observers_result")))

	SetStoreRecords(map[string]int{"observers_partition": 7})
	assert.Equal(t, 7.0, testutil.ToFloat64(storeRecords.WithLabelValues("observers_partition")))

	ObserveCycle("ok", 2*time.Second)
	assert.Positive(t, testutil.CollectAndCount(cycleDurationSeconds))
}

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/mw-ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/mw-teapot", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418"))
	resp, err := http.Get(ts.URL + "/mw-teapot")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418")))
	assert.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}
