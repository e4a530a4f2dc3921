package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newProxyServer returns a server that behaves like a forward proxy answering
// every proxied request with status.
func newProxyServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe(t *testing.T) {
	good := newProxyServer(t, http.StatusOK)
	bad := newProxyServer(t, http.StatusForbidden)

	cfg := ProbeConfig{URL: "http://probe.invalid/", Timeout: time.Second}

	assert.NoError(t, Probe(context.Background(), good.URL, cfg))
	assert.Error(t, Probe(context.Background(), bad.URL, cfg))
	assert.Error(t, Probe(context.Background(), "not a url", cfg))
}

func TestProbeTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	cfg := ProbeConfig{URL: "http://probe.invalid/", Timeout: 50 * time.Millisecond}

	start := time.Now()
	err := Probe(context.Background(), slow.URL, cfg)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestValidate(t *testing.T) {
	good1 := newProxyServer(t, http.StatusOK)
	good2 := newProxyServer(t, http.StatusNoContent)
	bad := newProxyServer(t, http.StatusBadGateway)

	unreachable := httptest.NewServer(http.NotFoundHandler())
	deadURL := unreachable.URL
	unreachable.Close()

	candidates := []string{good1.URL, bad.URL, deadURL, good2.URL, good1.URL}
	cfg := ProbeConfig{URL: "http://probe.invalid/", Timeout: time.Second, Workers: 2}

	valid := Validate(context.Background(), candidates, cfg, nil)

	require.Equal(t, []string{good1.URL, good2.URL}, valid)
}

func TestValidateNoneValid(t *testing.T) {
	bad := newProxyServer(t, http.StatusInternalServerError)
	cfg := ProbeConfig{URL: "http://probe.invalid/", Timeout: time.Second, Workers: 4}

	valid := Validate(context.Background(), []string{bad.URL}, cfg, nil)
	assert.Empty(t, valid)
}

const proxyListHTML = `<html><body>
<table class="table">
<thead><tr><th>IP Address</th><th>Port</th><th>Code</th></tr></thead>
<tbody>
<tr><td>203.0.113.5</td><td>8080</td><td>TW</td></tr>
<tr><td> 198.51.100.7 </td><td>3128</td><td>US</td></tr>
<tr><td>203.0.113.5</td><td>8080</td><td>TW</td></tr>
<tr><td>not-an-ip</td><td>80</td></tr>
<tr><td>192.0.2.1</td><td>99999</td></tr>
<tr><td>192.0.2.9</td></tr>
</tbody>
</table>
</body></html>`

func TestParseProxyList(t *testing.T) {
	got, err := ParseProxyList(strings.NewReader(proxyListHTML))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://203.0.113.5:8080",
		"http://198.51.100.7:3128",
	}, got)
}

func TestFetchCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(proxyListHTML))
	}))
	defer srv.Close()

	got, err := FetchCandidates(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFetchCandidatesBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := FetchCandidates(context.Background(), srv.Client(), srv.URL)
	assert.Error(t, err)
}
