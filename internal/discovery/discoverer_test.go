package discovery

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustRules(t *testing.T, conf string) *Rules {
	t.Helper()
	rules, err := ParseRules(strings.NewReader(conf), "test.conf")
	require.NoError(t, err)
	return rules
}

func newTestDiscoverer(t *testing.T, conf string) *Discoverer {
	return New(mustRules(t, conf), Config{Timeout: 2 * time.Second, UserAgent: "test-agent"}, testLogger())
}

type pageServer struct {
	*httptest.Server
	hits atomic.Int32
}

func servePages(t *testing.T, pages map[string]string) *pageServer {
	t.Helper()
	ps := &pageServer{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.hits.Add(1)
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func TestDiscover_IgnoreSkipsNetwork(t *testing.T) {
	srv := servePages(t, map[string]string{"/doc.pdf": "<a href='/m'>print</a>"})
	d := newTestDiscoverer(t, "IGNORE_URL \\.pdf$\nPRINT_LINK \"print\"")

	res := d.Discover(context.Background(), srv.URL+"/doc.pdf")

	assert.False(t, res.Found)
	assert.NoError(t, res.Err)
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestDiscover_RewriteSkipsNetwork(t *testing.T) {
	srv := servePages(t, nil)
	d := newTestDiscoverer(t, `REWRITE_URL 127\.0\.0\.1 /story/(\d+) /m/story/\1`)

	res := d.Discover(context.Background(), srv.URL+"/story/42")

	assert.True(t, res.Found)
	assert.Equal(t, srv.URL+"/m/story/42", res.URL)
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestDiscover_IgnoreBeforeRewrite(t *testing.T) {
	d := newTestDiscoverer(t, "IGNORE_URL example\\.com\nREWRITE_URL example\\.com a b")

	res := d.Discover(context.Background(), "http://example.com/a")
	assert.False(t, res.Found)
	assert.NoError(t, res.Err)
}

func TestDiscover_HandheldLinkWinsOverText(t *testing.T) {
	srv := servePages(t, map[string]string{
		"/article": `<html><head><link rel="alternate" media="handheld" href="/mobile/article"></head>
			<body><a href="/print/article">Print</a></body></html>`,
	})
	d := newTestDiscoverer(t, `PRINT_LINK "print"`)

	res := d.Discover(context.Background(), srv.URL+"/article")

	require.NoError(t, res.Err)
	assert.True(t, res.Found)
	assert.Equal(t, srv.URL+"/mobile/article", res.URL)
}

func TestDiscover_TextLookupsInConfiguredOrder(t *testing.T) {
	srv := servePages(t, map[string]string{
		"/news/story": `<html><body>
			<a href="../print/story">Printable version</a>
			<a href="javascript:openWin('/mobile/story')"><img src="m.png" alt="Mobile"></a>
		</body></html>`,
	})
	d := newTestDiscoverer(t, "PRINT_LINK \"mobile\"\nPRINT_LINK \"printable version\"")

	res := d.Discover(context.Background(), srv.URL+"/news/story")

	require.NoError(t, res.Err)
	assert.True(t, res.Found)
	assert.Equal(t, srv.URL+"/mobile/story", res.URL)
}

func TestDiscover_RelativeHrefResolved(t *testing.T) {
	srv := servePages(t, map[string]string{
		"/news/story": `<html><body><a href="../print/story?id=1">Print</a></body></html>`,
	})
	d := newTestDiscoverer(t, `PRINT_LINK "print"`)

	res := d.Discover(context.Background(), srv.URL+"/news/story")

	assert.True(t, res.Found)
	assert.Equal(t, srv.URL+"/print/story?id=1", res.URL)
}

func TestDiscover_UnusableHrefStops(t *testing.T) {
	srv := servePages(t, map[string]string{
		"/a": `<html><body><a href="javascript:window.print()">Print</a><a href="/mobile">Mobile</a></body></html>`,
	})
	d := newTestDiscoverer(t, "PRINT_LINK \"print\"\nPRINT_LINK \"mobile\"")

	res := d.Discover(context.Background(), srv.URL+"/a")

	assert.False(t, res.Found)
	assert.NoError(t, res.Err)
}

func TestDiscover_NothingFound(t *testing.T) {
	srv := servePages(t, map[string]string{"/a": `<html><body><p>plain</p></body></html>`})
	d := newTestDiscoverer(t, `PRINT_LINK "print"`)

	res := d.Discover(context.Background(), srv.URL+"/a")

	assert.False(t, res.Found)
	assert.NoError(t, res.Err)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestDiscover_FetchFailure(t *testing.T) {
	srv := servePages(t, nil)
	d := newTestDiscoverer(t, `PRINT_LINK "print"`)

	res := d.Discover(context.Background(), srv.URL+"/missing")

	assert.False(t, res.Found)
	assert.Error(t, res.Err)
}

func TestDiscover_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	d := New(nil, Config{Timeout: 20 * time.Millisecond}, testLogger())
	res := d.Discover(context.Background(), srv.URL)

	assert.False(t, res.Found)
	assert.Error(t, res.Err)
}

func TestDiscover_DecodesDeclaredCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "versión imprimible" in latin-1
		w.Write([]byte("<html><body><a href=\"/imprimir\">versi\xf3n imprimible</a></body></html>"))
	}))
	defer srv.Close()

	d := newTestDiscoverer(t, `PRINT_LINK "versión imprimible"`)
	res := d.Discover(context.Background(), srv.URL+"/nota")

	require.NoError(t, res.Err)
	assert.True(t, res.Found)
	assert.Equal(t, srv.URL+"/imprimir", res.URL)
}

func TestDiscover_SendsUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	newTestDiscoverer(t, "").Discover(context.Background(), srv.URL)
	assert.Equal(t, "test-agent", ua.Load())
}
