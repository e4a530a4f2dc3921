package runner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/twstock-daily/internal/config"
	"github.com/rickgao/twstock-daily/internal/fetcher"
	"github.com/rickgao/twstock-daily/internal/model"
	"github.com/rickgao/twstock-daily/internal/proxy"
)

var runDay = time.Date(2024, 6, 2, 15, 0, 0, 0, time.Local)

const catalogDoc = `[
  {"代碼": "2330", "名稱": "TSMC", "市場": "上市", "類別": "半導體業"},
  {"代碼": "9999", "名稱": "Gone", "市場": "上市", "類別": "其他"},
  {"代碼": "6488", "名稱": "GW", "市場": "上櫃", "類別": "半導體業"}
]`

// upstream serves both markets: GET for listed, form POST for OTC.
func upstream(t *testing.T, hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("stockNo") == "9999" {
				w.Write([]byte(`{"stat":"很抱歉，沒有符合條件的資料!"}`))
				return
			}
			w.Write([]byte(`{"stat":"OK","data":[["113/06/03","10,000","1,500,000","100","105","99","102","2","500"]]}`))
		case http.MethodPost:
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
			}
			if r.PostForm.Get("date") != "2024/06/02" {
				t.Errorf("date = %q", r.PostForm.Get("date"))
			}
			w.Write([]byte(`{"stat":"ok","tables":[{"data":[["113/06/03","1,234","5,678","50","51","49","50.5","0.5","321"]]}]}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func testConfig(t *testing.T, listedURL, otcURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	catalogPath := filepath.Join(dir, "stocks.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalogDoc), 0o644))

	cfg := config.Default()
	cfg.Catalog.Path = catalogPath
	cfg.Storage.Root = filepath.Join(dir, "store")
	cfg.Log.Dir = filepath.Join(dir, "logs")
	cfg.API.ListedURL = listedURL
	cfg.API.OTCURL = otcURL
	noRetries := 0
	cfg.API.MaxRetries = &noRetries
	cfg.API.RetryBackoff = time.Millisecond
	cfg.Throttle.StartDelay = time.Millisecond
	cfg.Throttle.MinDelay = time.Millisecond
	cfg.Throttle.MaxDelay = 10 * time.Millisecond
	cfg.Proxy.SourceURL = ""
	cfg.Run.FailureManifest = filepath.Join(dir, "manifest.json")
	return cfg
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestRunDirect(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(upstream(t, &hits))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/listed", server.URL+"/otc")
	summary, err := Run(context.Background(), cfg, ModeDirect, quiet(), WithClock(func() time.Time { return runDay }))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, int32(3), hits.Load())

	listed := readFile(t, filepath.Join(cfg.Storage.Root, "2330_TSMC_上市", "202406.csv"))
	assert.Contains(t, listed, "2330,TSMC,20240603,10000,1500000,100,105,99,102,2,500\n")
	otc := readFile(t, filepath.Join(cfg.Storage.Root, "6488_GW_上櫃", "202406.csv"))
	assert.Contains(t, otc, "6488,GW,20240603,1234000,5678000,50,51,49,50.5,0.5,321\n")

	runLog := readFile(t, filepath.Join(cfg.Log.Dir, "2024-06-02.txt"))
	assert.Contains(t, runLog, "subject=9999_Gone category="+fetcher.CategoryAPIStatus)
	assert.Contains(t, runLog, "subject=SYSTEM category=summary")

	var manifest fetcher.Summary
	require.NoError(t, json.Unmarshal([]byte(readFile(t, cfg.Run.FailureManifest)), &manifest))
	assert.Equal(t, summary.RunID, manifest.RunID)
	require.Len(t, manifest.Failures, 1)
	assert.Equal(t, "9999", manifest.Failures[0].Code)
}

func TestRunIsIdempotent(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(upstream(t, &hits))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/listed", server.URL+"/otc")
	clock := WithClock(func() time.Time { return runDay })

	first, err := Run(context.Background(), cfg, ModeDirect, quiet(), clock)
	require.NoError(t, err)
	second, err := Run(context.Background(), cfg, ModeDirect, quiet(), clock)
	require.NoError(t, err)

	assert.Equal(t, 2, first.Written)
	assert.Equal(t, 0, second.Written)
	assert.Equal(t, 2, second.Duplicates)

	listed := readFile(t, filepath.Join(cfg.Storage.Root, "2330_TSMC_上市", "202406.csv"))
	assert.Equal(t, 2, strings.Count(listed, "\n"))
}

func TestRunMissingCatalog(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/listed", "http://127.0.0.1:1/otc")
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.json")

	_, err := Run(context.Background(), cfg, ModeDirect, quiet(), WithClock(func() time.Time { return runDay }))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCatalog))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	runLog := readFile(t, filepath.Join(cfg.Log.Dir, "2024-06-02.txt"))
	assert.Contains(t, runLog, "subject=SYSTEM category=catalog")
}

func TestRunProxyFallsBackToDirect(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(upstream(t, &hits))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/listed", server.URL+"/otc")
	cfg.Proxy.Candidates = []string{"http://10.255.255.1:3128"}

	var probed []string
	noneValid := func(_ context.Context, candidates []string, _ proxy.ProbeConfig, _ *slog.Logger) []string {
		probed = candidates
		return nil
	}

	summary, err := Run(context.Background(), cfg, ModeProxy, quiet(),
		WithClock(func() time.Time { return runDay }),
		WithValidator(noneValid),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://10.255.255.1:3128"}, probed)
	assert.Equal(t, 2, summary.Succeeded)

	runLog := readFile(t, filepath.Join(cfg.Log.Dir, "2024-06-02.txt"))
	assert.Contains(t, runLog, "category=proxy")
	assert.Contains(t, runLog, "falling back to direct")
}

// TestRunThroughEndpoint routes requests through an httptest server acting as
// a forward proxy for plain-HTTP upstream URLs.
func TestRunThroughEndpoint(t *testing.T) {
	var hits atomic.Int32
	var proxied atomic.Int32
	handler := upstream(t, &hits)
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.IsAbs() && r.URL.Host == "upstream.test" {
			proxied.Add(1)
		}
		handler(w, r)
	}))
	defer endpoint.Close()

	cfg := testConfig(t, "http://upstream.test/listed", "http://upstream.test/otc")

	summary, err := Run(context.Background(), cfg, ModeProxy, quiet(),
		WithClock(func() time.Time { return runDay }),
		WithValidator(func(_ context.Context, _ []string, _ proxy.ProbeConfig, _ *slog.Logger) []string {
			return []string{endpoint.URL}
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, int32(3), proxied.Load())
}

func TestRunScrapesProxyList(t *testing.T) {
	list := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<table><tr><td>10.0.0.7</td><td>8080</td></tr></table>`))
	}))
	defer list.Close()

	var hits atomic.Int32
	server := httptest.NewServer(upstream(t, &hits))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/listed", server.URL+"/otc")
	cfg.Proxy.Candidates = []string{"http://10.0.0.1:3128"}
	cfg.Proxy.SourceURL = list.URL

	var probed []string
	_, err := Run(context.Background(), cfg, ModeProxy, quiet(),
		WithClock(func() time.Time { return runDay }),
		WithValidator(func(_ context.Context, candidates []string, _ proxy.ProbeConfig, _ *slog.Logger) []string {
			probed = candidates
			return nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://10.0.0.1:3128", "http://10.0.0.7:8080"}, probed)
}

func TestRunCancelled(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(upstream(t, &hits))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/listed", server.URL+"/otc")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := Run(ctx, cfg, ModeDirect, quiet(), WithClock(func() time.Time { return runDay }))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	assert.Zero(t, hits.Load())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"direct", ModeDirect, false},
		{"proxy", ModeProxy, false},
		{"", "", true},
		{"Proxy", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestHosts(t *testing.T) {
	got := hosts(config.APIConfig{
		ListedURL: "https://www.twse.com.tw/rwd/zh/afterTrading/STOCK_DAY",
		OTCURL:    "::bad",
	})
	assert.Equal(t, map[model.Market]string{model.MarketListed: "www.twse.com.tw"}, got)
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "failures.json")
	summary := fetcher.Summary{
		RunID:    "r1",
		Failed:   1,
		Failures: []fetcher.Failure{{Code: "2330", Category: fetcher.CategoryRedirect}},
	}
	require.NoError(t, WriteManifest(path, summary))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(readFile(t, path)), &got))
	assert.Equal(t, "r1", got["run_id"])
	assert.Len(t, got["failures"], 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
