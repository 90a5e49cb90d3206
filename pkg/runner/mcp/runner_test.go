package mcp

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"tableflip.dev/wbc/pkg/billing/billingtest"
)

func TestParseTransport(t *testing.T) {
	for in, want := range map[string]Transport{
		"":       TransportHTTP,
		"HTTP":   TransportHTTP,
		" stdio": TransportStdio,
	} {
		got, err := ParseTransport(in)
		if err != nil || got != want {
			t.Errorf("ParseTransport(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseTransport("grpc"); err == nil {
		t.Errorf("expected an error for grpc")
	}
}

func TestEndpointPath(t *testing.T) {
	for in, want := range map[string]string{
		"":         "/mcp",
		"  ":       "/mcp",
		"tools":    "/tools",
		"/api/mcp": "/api/mcp",
	} {
		if got := (HTTPOptions{Path: in}).EndpointPath(); got != want {
			t.Errorf("EndpointPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestURL(t *testing.T) {
	bound := &net.TCPAddr{IP: net.IPv4zero, Port: 4321}
	cases := []struct {
		opts HTTPOptions
		tls  bool
		want string
	}{
		{HTTPOptions{Addr: "127.0.0.1:0"}, false, "http://127.0.0.1:4321/mcp"},
		{HTTPOptions{Addr: "0.0.0.0:4321", Path: "rpc"}, true, "https://127.0.0.1:4321/rpc"},
		{HTTPOptions{Addr: "[::1]:0"}, false, "http://[::1]:4321/mcp"},
		{HTTPOptions{Addr: "console.local:4321"}, false, "http://console.local:4321/mcp"},
	}
	for _, tc := range cases {
		if got := tc.opts.URL(bound, tc.tls); got != tc.want {
			t.Errorf("URL(%+v) = %q, want %q", tc.opts, got, tc.want)
		}
	}
}

func TestRunnerServesHTTPUntilCancelled(t *testing.T) {
	svc, _ := newTestService(t, billingtest.Sample())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listening := make(chan string, 1)
	r := Runner{
		Console:   svc.Console,
		Transport: TransportHTTP,
		HTTP: HTTPOptions{
			Addr:        "127.0.0.1:0",
			OnListening: func(url string) { listening <- url },
		},
	}
	done := make(chan error, 1)
	go func() { done <- r.Do(ctx) }()

	var url string
	select {
	case url = <-listening:
	case err := <-done:
		t.Fatalf("runner stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("runner did not start")
	}
	if !strings.HasPrefix(url, "http://127.0.0.1:") || !strings.HasSuffix(url, "/mcp") {
		t.Fatalf("unexpected url %q", url)
	}

	resp, err := http.Get(strings.TrimSuffix(url, "/mcp") + "/not-mcp")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 off the endpoint path, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runner returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("runner did not stop")
	}
}

func TestRunnerRejectsHalfTLS(t *testing.T) {
	svc, _ := newTestService(t, billingtest.Sample())
	r := Runner{Console: svc.Console, HTTP: HTTPOptions{CertFile: "cert.pem"}}
	if err := r.Do(context.Background()); err == nil {
		t.Fatalf("expected an error with a cert and no key")
	}
}
