package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := rootApp()
	app.Writer = &out
	require.NoError(t, app.Run(append([]string{"newsctl"}, args...)))
	return out.String()
}

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSourcesListsRegistry(t *testing.T) {
	path := writeSources(t, `categories:
  xe:
    - https://vnexpress.net/rss/oto-xe-may.rss
publishers:
  - name: VnExpress
    host: vnexpress.net
`)
	out := run(t, "sources", "--sources-file", path)

	require.Contains(t, out, "https://vnexpress.net/rss/oto-xe-may.rss")
	require.Contains(t, out, "oto-xe-may")
	require.Contains(t, out, "VnExpress")
}

func TestSourcesDefaultsToBuiltInList(t *testing.T) {
	out := run(t, "sources", "--sources-file", "")
	require.Contains(t, out, "https://vnexpress.net/rss/the-gioi.rss")
}

func TestMigrateIsNoopForMemory(t *testing.T) {
	out := run(t, "migrate", "--store-uri", "memory://")
	require.Contains(t, out, "nothing to migrate for memory backend")
}

func TestMigrateRejectsUnknownScheme(t *testing.T) {
	app := rootApp()
	app.Writer = &bytes.Buffer{}
	require.Error(t, app.Run([]string{"newsctl", "migrate", "--store-uri", "ftp://x"}))
}

func TestIngestPrintsReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<rss version="2.0"><channel><title>t</title>
<item><guid>a</guid><title>Một</title></item>
<item><guid>b</guid><title>Hai</title></item>
</channel></rss>`))
	}))
	defer srv.Close()

	path := writeSources(t, "categories:\n  the-thao:\n    - "+srv.URL+"/the-thao.rss\n")
	out := run(t, "ingest", "--store-uri", "memory://", "--sources-file", path)

	require.Contains(t, out, srv.URL+"/the-thao.rss")
	require.Contains(t, out, "inserted 2 articles")
}

func TestTrendsOnEmptyStore(t *testing.T) {
	out := run(t, "trends", "--store-uri", "memory://")
	require.Contains(t, out, `"keywords": []`)
}
