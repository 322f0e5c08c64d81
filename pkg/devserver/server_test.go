package devserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, files map[string]string) *Server {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	s, err := New(dir, ":0", zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestNewRejectsMissingDir(t *testing.T) {
	_, err := New("/no/such/dir", ":0", zerolog.Nop())
	assert.Error(t, err)
}

func TestNewRejectsFileRoot(t *testing.T) {
	f := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := New(f, ":0", zerolog.Nop())
	assert.Error(t, err)
}

func TestServeIndexPage(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"index.qhtml": `h1 { text { "Welcome" } }`,
	})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "<h1>Welcome</h1>")
	assert.Contains(t, string(body), "/ws", "reload script must be injected")
}

func TestServeNamedPage(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"about.qhtml": `p { text { "about us" } }`,
	})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/about")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "about us")
}

func TestServePageResolvesImports(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"index.qhtml":   `q-import "widgets.qhtml"; chip { into { slot: "s"; text { "ok" } } }`,
		"widgets.qhtml": `q-template chip { span.chip { slot { s } } }`,
	})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `<span class="chip">ok</span>`)
}

func TestServeMissingPage(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeRejectsDottedPageNames(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/a.b")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLiveReloadBroadcast(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the hub registers the client synchronously during the upgrade
	require.Eventually(t, func() bool { return s.hub.clientCount() == 1 },
		time.Second, 10*time.Millisecond)

	s.hub.broadcast("reload")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))
}

func TestBroadcastDropsClosedClients(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.hub.clientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		s.hub.broadcast("ping")
		return s.hub.clientCount() == 0
	}, time.Second, 20*time.Millisecond)
}
