package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/config"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/fetcher"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testFetcher() *fetcher.Client {
	return fetcher.New(fetcher.Options{
		Timeout:     5 * time.Second,
		MaxRetries:  2,
		BackoffBase: 1 * time.Millisecond,
		RatePerSec:  1000,
	})
}

func testCatalogConfig(baseURL, cursorPath string) config.CatalogConfig {
	return config.CatalogConfig{
		BaseURL:       baseURL,
		PublishedFrom: "2025-01-01",
		PublishedTo:   "2025-12-31",
		PageSize:      100,
		Prefixes:      []string{"45", "71"},
		CursorPath:    cursorPath,
	}
}

func releaseJSON(ocid, cpv string, amount float64) string {
	return fmt.Sprintf(`{
		"ocid": %q,
		"date": "2025-03-01T00:00:00Z",
		"tender": {
			"title": "Works for %s",
			"description": "desc",
			"status": "complete",
			"classification": {"id": %q},
			"value": {"amount": %g, "currency": "GBP"}
		},
		"buyer": {"id": "b-1", "name": "Test Council"}
	}`, ocid, ocid, cpv, amount)
}

func TestRun_PaginatesAndDeduplicates(t *testing.T) {
	var pageCalls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch pageCalls.Add(1) {
		case 1:
			// First page: initial query params must be present.
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
			assert.Equal(t, "2025-01-01", r.URL.Query().Get("publishedFrom"))
			fmt.Fprintf(w, `{"releases":[%s,%s],"links":{"next":%q}}`,
				releaseJSON("ocds-a", "45210000-2", 10000),
				releaseJSON("ocds-b", "71300000", 20000),
				srv.URL+"/page2")
		case 2:
			// Second page repeats ocds-a: it must be silently dropped.
			fmt.Fprintf(w, `{"releases":[%s,%s],"links":{}}`,
				releaseJSON("ocds-a", "45210000-2", 10000),
				releaseJSON("ocds-c", "45233120", 30000))
		default:
			t.Error("unexpected extra page fetch")
		}
	}))
	defer srv.Close()

	cursorPath := filepath.Join(t.TempDir(), "cursor.txt")
	in := New(testFetcher(), NewCursorStore(cursorPath), testCatalogConfig(srv.URL, cursorPath))

	res := in.Run(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, model.RunStatusDone, res.Status)
	assert.Equal(t, 2, res.Pages)
	require.Len(t, res.Records, 3)

	seen := map[string]int{}
	for _, rec := range res.Records {
		seen[rec.OCID]++
	}
	for ocid, n := range seen {
		assert.Equal(t, 1, n, "ocid %s appears more than once", ocid)
	}
	assert.Equal(t, "Test Council", res.Records[0].BuyerName)
	assert.Equal(t, "GB", res.Records[0].BuyerCountry)
	assert.Equal(t, "10000", res.Records[0].ValueAmount)
}

func TestRun_FiltersByPrefixAndUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"releases":[%s,%s,%s],"links":{}}`,
			releaseJSON("ocds-keep", "45210000-2", 10000),
			releaseJSON("ocds-reject", "98000000", 10000),
			`{"ocid":"ocds-unknown","tender":{"title":"no classification"}}`)
	}))
	defer srv.Close()

	cursorPath := filepath.Join(t.TempDir(), "cursor.txt")
	in := New(testFetcher(), NewCursorStore(cursorPath), testCatalogConfig(srv.URL, cursorPath))

	res := in.Run(context.Background())
	require.NoError(t, res.Err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "ocds-keep", res.Records[0].OCID)
	assert.Equal(t, "452100002", res.Records[0].CPVCode)
}

func TestRun_PersistsCursorAfterEachPage(t *testing.T) {
	var pageCalls atomic.Int32
	cursorPath := filepath.Join(t.TempDir(), "cursor.txt")
	cursor := NewCursorStore(cursorPath)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch pageCalls.Add(1) {
		case 1:
			fmt.Fprintf(w, `{"releases":[%s],"links":{"next":%q}}`,
				releaseJSON("ocds-a", "45210000-2", 10000), srv.URL+"/page2")
		default:
			// After the first page the cursor must already be on disk.
			token, err := cursor.Load()
			assert.NoError(t, err)
			assert.Equal(t, srv.URL+"/page2", token)
			fmt.Fprint(w, `{"releases":[],"links":{}}`)
		}
	}))
	defer srv.Close()

	in := New(testFetcher(), cursor, testCatalogConfig(srv.URL, cursorPath))
	res := in.Run(context.Background())
	assert.Equal(t, model.RunStatusDone, res.Status)
}

func TestRun_ResumesFromPersistedCursor(t *testing.T) {
	var firstRequestPath string
	var once atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if once.CompareAndSwap(false, true) {
			firstRequestPath = r.URL.String()
		}
		fmt.Fprint(w, `{"releases":[],"links":{}}`)
	}))
	defer srv.Close()

	cursorPath := filepath.Join(t.TempDir(), "cursor.txt")
	cursor := NewCursorStore(cursorPath)
	require.NoError(t, cursor.Save(srv.URL+"/resume?cursor=tok-42"))

	in := New(testFetcher(), cursor, testCatalogConfig(srv.URL, cursorPath))
	res := in.Run(context.Background())

	require.Equal(t, model.RunStatusDone, res.Status)
	// The first request must hit the cursor URL, not the initial query params.
	assert.Equal(t, "/resume?cursor=tok-42", firstRequestPath)
}

func TestRun_StopsOnHTTPErrorStatus(t *testing.T) {
	var pageCalls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch pageCalls.Add(1) {
		case 1:
			fmt.Fprintf(w, `{"releases":[%s],"links":{"next":%q}}`,
				releaseJSON("ocds-a", "45210000-2", 10000), srv.URL+"/page2")
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	cursorPath := filepath.Join(t.TempDir(), "cursor.txt")
	cursor := NewCursorStore(cursorPath)
	in := New(testFetcher(), cursor, testCatalogConfig(srv.URL, cursorPath))

	res := in.Run(context.Background())
	assert.Equal(t, model.RunStatusStopped, res.Status)
	assert.NoError(t, res.Err)
	// Partial output is preserved.
	require.Len(t, res.Records, 1)
	// Cursor still points at the failed page for a later resume.
	token, err := cursor.Load()
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/page2", token)
}

func TestRun_AbortsOnMalformedPayloadKeepingPartialResults(t *testing.T) {
	var pageCalls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch pageCalls.Add(1) {
		case 1:
			fmt.Fprintf(w, `{"releases":[%s],"links":{"next":%q}}`,
				releaseJSON("ocds-a", "45210000-2", 10000), srv.URL+"/page2")
		default:
			fmt.Fprint(w, `{not json`)
		}
	}))
	defer srv.Close()

	cursorPath := filepath.Join(t.TempDir(), "cursor.txt")
	in := New(testFetcher(), NewCursorStore(cursorPath), testCatalogConfig(srv.URL, cursorPath))

	res := in.Run(context.Background())
	assert.Equal(t, model.RunStatusAborted, res.Status)
	assert.Error(t, res.Err)
	assert.Len(t, res.Records, 1)
}

func TestRun_AbortsOnRetryExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close() // every attempt now fails at transport level

	cursorPath := filepath.Join(t.TempDir(), "cursor.txt")
	in := New(testFetcher(), NewCursorStore(cursorPath), testCatalogConfig(baseURL, cursorPath))

	res := in.Run(context.Background())
	assert.Equal(t, model.RunStatusAborted, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "max retries exceeded")
}

func TestFilterRelease_TruncatesDescription(t *testing.T) {
	cursorPath := filepath.Join(t.TempDir(), "cursor.txt")
	in := New(testFetcher(), NewCursorStore(cursorPath), testCatalogConfig("http://unused", cursorPath))

	long := make([]byte, 0, 600)
	for i := 0; i < 600; i++ {
		long = append(long, 'x')
	}
	rel := mustRelease(t, fmt.Sprintf(`{
		"ocid": "ocds-long",
		"tender": {"title":"t","description":%q,"classification":{"id":"45210000-2"}}
	}`, string(long)))

	rec, ok := in.filterRelease(rel)
	require.True(t, ok)
	assert.Len(t, rec.Description, 500)
}
