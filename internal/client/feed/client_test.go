package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/h2non/gock"
)

const testServer = "http://relay.test"

func TestClient_History(t *testing.T) {
	defer gock.Off()

	gock.New(testServer).
		Get("/api/requests").
		MatchParam("token", "secret").
		Reply(http.StatusOK).
		JSON([]map[string]interface{}{
			{"subdomain": "demo", "method": "GET", "path": "/old", "status": 200, "timestamp": "2024-05-01T10:00:00Z"},
			{"subdomain": "demo", "method": "POST", "path": "/new", "status": 201, "timestamp": 1714557601000},
		})

	c, err := NewClient(testServer, "secret", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	rows, err := c.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 2 || rows[0].Path != "/old" || rows[1].Status != 201 {
		t.Fatalf("rows=%+v", rows)
	}
	if !gock.IsDone() {
		t.Fatalf("pending mocks: %v", gock.Pending())
	}
}

func TestClient_Tunnels(t *testing.T) {
	defer gock.Off()

	gock.New(testServer).
		Get("/api/tunnels").
		MatchParam("token", "secret").
		Reply(http.StatusOK).
		JSON([]string{"alpha", "beta"})

	c, _ := NewClient(testServer, "secret", time.Second)
	names, err := c.Tunnels(context.Background())
	if err != nil {
		t.Fatalf("Tunnels: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("names=%v", names)
	}
}

func TestClient_Forbidden(t *testing.T) {
	defer gock.Off()

	gock.New(testServer).
		Get("/api/requests").
		Reply(http.StatusForbidden).
		BodyString("forbidden")

	c, _ := NewClient(testServer, "bad", time.Second)
	if _, err := c.History(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v", err)
	}
}

func TestClient_ServerError(t *testing.T) {
	defer gock.Off()

	gock.New(testServer).
		Get("/api/tunnels").
		Reply(http.StatusServiceUnavailable).
		BodyString("logstore disabled")

	c, _ := NewClient(testServer, "", time.Second)
	_, err := c.Tunnels(context.Background())
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v", err)
	}
}

func TestNewClientRejectsBadServer(t *testing.T) {
	for _, s := range []string{"", "ftp://x", "http://", "::bad"} {
		if _, err := NewClient(s, "", time.Second); err == nil {
			t.Errorf("NewClient(%q) expected error", s)
		}
	}
}

func TestEndpoint(t *testing.T) {
	c, _ := NewClient("https://dash.example.com/base/", "a b", time.Second)
	if got := c.endpoint(pathLive, true); got != "wss://dash.example.com/base/api/ws?token=a+b" {
		t.Fatalf("endpoint=%s", got)
	}
	c, _ = NewClient("http://127.0.0.1:8080", "", time.Second)
	if got := c.endpoint(pathRequests, false); got != "http://127.0.0.1:8080/api/requests" {
		t.Fatalf("endpoint=%s", got)
	}
}

func newLiveServer(t *testing.T, token string, frames []string, closeAfter bool) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathLive {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("token") != token {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if closeAfter {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestClient_LiveDeliversMessages(t *testing.T) {
	srv := newLiveServer(t, "secret", []string{`{"path":"/1"}`, `{"path":"/2"}`}, false)
	defer srv.Close()

	c, _ := NewClient(srv.URL, "secret", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Live(ctx, func(b []byte) { got <- string(b) })
	}()

	for _, want := range []string{`{"path":"/1"}`, `{"path":"/2"}`} {
		select {
		case m := <-got:
			if m != want {
				t.Fatalf("message=%s want %s", m, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Live after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Live did not return after cancel")
	}
}

func TestClient_LiveTransportError(t *testing.T) {
	srv := newLiveServer(t, "", []string{`{"path":"/1"}`}, true)
	defer srv.Close()

	c, _ := NewClient(srv.URL, "", time.Second)
	err := c.Live(context.Background(), func([]byte) {})
	if err == nil {
		t.Fatal("expected error when server closes the stream")
	}
}

func TestClient_LiveForbidden(t *testing.T) {
	srv := newLiveServer(t, "secret", nil, false)
	defer srv.Close()

	c, _ := NewClient(srv.URL, "wrong", time.Second)
	if err := c.Live(context.Background(), func([]byte) {}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v", err)
	}
}
