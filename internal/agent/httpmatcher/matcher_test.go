package httpmatcher

import (
	"testing"
	"time"
)

func TestMatcher_Observe(t *testing.T) {
	m := NewMatcher(5*time.Second, "tunnel.example.com")

	now := time.Now()
	clientIP := "192.168.1.10"
	clientPort := 12345
	serverIP := "10.0.0.1"
	serverPort := 80

	reqPayload := []byte("POST /api/test HTTP/1.1\r\nHost: demo.tunnel.example.com\r\ncontent-type: application/json\r\n\r\n{\"a\":1}")
	reqMeta := PacketMeta{
		Timestamp: now,
		SrcIP:     clientIP,
		SrcPort:   clientPort,
		DstIP:     serverIP,
		DstPort:   serverPort,
		Payload:   reqPayload,
	}
	if !m.ObserveRequest(reqMeta) {
		t.Fatal("ObserveRequest should return true for valid HTTP request")
	}
	if m.Pending() != 1 {
		t.Fatalf("pending=%d", m.Pending())
	}

	respMeta := PacketMeta{
		Timestamp: now.Add(100 * time.Millisecond),
		SrcIP:     serverIP,
		SrcPort:   serverPort,
		DstIP:     clientIP,
		DstPort:   clientPort,
		Payload:   []byte("HTTP/1.1 201 Created\r\nContent-Length: 0\r\n\r\n"),
	}
	e, ok := m.ObserveResponse(respMeta)
	if !ok || e == nil {
		t.Fatal("ObserveResponse should match the stored request")
	}

	if e.Method != "POST" || e.Path != "/api/test" || e.Status != 201 {
		t.Errorf("entry=%+v", e)
	}
	if e.Subdomain != "demo" {
		t.Errorf("subdomain=%q", e.Subdomain)
	}
	if e.Headers["Content-Type"] != "application/json" {
		t.Errorf("headers=%v", e.Headers)
	}
	if e.Body != `{"a":1}` {
		t.Errorf("body=%q", e.Body)
	}
	if !e.Timestamp.Equal(now) {
		t.Errorf("timestamp=%v", e.Timestamp)
	}
	if m.Pending() != 0 {
		t.Error("request should be removed after matching response")
	}
}

func TestMatcher_UnmatchedResponse(t *testing.T) {
	m := NewMatcher(time.Second, "")
	_, ok := m.ObserveResponse(PacketMeta{Payload: []byte("HTTP/1.1 200 OK\r\n\r\n")})
	if ok {
		t.Error("response without request should not match")
	}
}

func TestMatcher_Cleanup(t *testing.T) {
	m := NewMatcher(100*time.Millisecond, "")

	now := time.Now()
	m.ObserveRequest(PacketMeta{
		Timestamp: now.Add(-200 * time.Millisecond),
		SrcIP:     "1.1.1.1",
		SrcPort:   1000,
		DstIP:     "2.2.2.2",
		DstPort:   80,
		Payload:   []byte("GET /old HTTP/1.1\r\n\r\n"),
	})

	if n := m.Cleanup(now); n != 1 {
		t.Errorf("expected 1 expired request, got %d", n)
	}
	if m.Pending() != 0 {
		t.Errorf("pending=%d", m.Pending())
	}
}

func TestMatcher_IgnoreNonHTTP(t *testing.T) {
	m := NewMatcher(time.Second, "")
	if m.ObserveRequest(PacketMeta{Payload: []byte("SSH-2.0-OpenSSH_8.2p1\r\n")}) {
		t.Error("Should ignore non-HTTP traffic")
	}
}

func TestMatcher_BodyCapped(t *testing.T) {
	m := NewMatcher(time.Second, "")
	m.maxBody = 4
	m.ObserveRequest(PacketMeta{SrcIP: "a", DstIP: "b", Payload: []byte("PUT /x HTTP/1.1\r\n\r\n0123456789")})
	e, ok := m.ObserveResponse(PacketMeta{SrcIP: "b", DstIP: "a", Payload: []byte("HTTP/1.1 204 No Content\r\n\r\n")})
	if !ok || e.Body != "0123" {
		t.Fatalf("entry=%+v ok=%v", e, ok)
	}
}

func TestMatcher_HeaderKeysCanonical(t *testing.T) {
	m := NewMatcher(time.Second, "")
	m.ObserveRequest(PacketMeta{SrcIP: "a", DstIP: "b", Payload: []byte(
		"GET / HTTP/1.1\r\nx-FORWARDED-for: 1.2.3.4\r\nbad key: v\r\n\r\n")})
	e, ok := m.ObserveResponse(PacketMeta{SrcIP: "b", DstIP: "a", Payload: []byte("HTTP/1.1 200 OK\r\n\r\n")})
	if !ok {
		t.Fatal("response not matched")
	}
	if e.Headers["X-Forwarded-For"] != "1.2.3.4" {
		t.Errorf("headers=%v", e.Headers)
	}
	// 含非法字符的键原样保留。
	if e.Headers["bad key"] != "v" {
		t.Errorf("headers=%v", e.Headers)
	}
}

func TestSubdomain(t *testing.T) {
	tests := []struct {
		host, base, want string
	}{
		{"demo.tunnel.example.com", "tunnel.example.com", "demo"},
		{"Demo.Tunnel.Example.com:8080", "tunnel.example.com", "demo"},
		{"a.b.tunnel.example.com", "tunnel.example.com", "a.b"},
		{"tunnel.example.com", "tunnel.example.com", ""},
		{"other.org", "tunnel.example.com", "other.org"},
		{"demo.localhost:8080", "", "demo"},
		{"127.0.0.1:8080", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := Subdomain(tt.host, tt.base); got != tt.want {
			t.Errorf("Subdomain(%q, %q)=%q want %q", tt.host, tt.base, got, tt.want)
		}
	}
}
