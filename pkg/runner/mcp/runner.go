package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"tableflip.dev/wbc/pkg/app"
)

// Transport selects the mechanism used to expose the MCP server.
type Transport string

const (
	// TransportHTTP serves MCP via the streamable HTTP transport.
	TransportHTTP Transport = "http"
	// TransportStdio serves MCP over stdio.
	TransportStdio Transport = "stdio"
)

// ParseTransport accepts "", "http" and "stdio". Empty means HTTP.
func ParseTransport(raw string) (Transport, error) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(raw))); t {
	case "", TransportHTTP:
		return TransportHTTP, nil
	case TransportStdio:
		return TransportStdio, nil
	default:
		return "", fmt.Errorf("unsupported transport %q (expected http or stdio)", raw)
	}
}

// HTTPOptions configure the streamable HTTP transport.
type HTTPOptions struct {
	// Addr defaults to 127.0.0.1:8080. Port 0 picks a free port.
	Addr string
	// Path defaults to /mcp.
	Path     string
	CertFile string
	KeyFile  string
	// OnListening receives the URL clients should use, once the port is
	// bound.
	OnListening func(url string)
}

// EndpointPath returns the HTTP path the server answers on.
func (o HTTPOptions) EndpointPath() string {
	path := strings.TrimSpace(o.Path)
	if path == "" {
		return "/mcp"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func (o HTTPOptions) tls() (bool, error) {
	switch {
	case o.CertFile == "" && o.KeyFile == "":
		return false, nil
	case o.CertFile == "" || o.KeyFile == "":
		return false, errors.New("both http tls cert and key must be provided")
	}
	return true, nil
}

// URL describes where a listener bound at addr is reachable. Wildcard hosts
// are shown as loopback.
func (o HTTPOptions) URL(addr net.Addr, tls bool) string {
	scheme := "http"
	if tls {
		scheme = "https"
	}
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return scheme + "://" + addr.String() + o.EndpointPath()
	}
	host, _, err := net.SplitHostPort(o.Addr)
	if err != nil || host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
		if tcp.IP != nil && !tcp.IP.IsUnspecified() {
			host = tcp.IP.String()
		}
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(tcp.Port)) + o.EndpointPath()
}

// Runner serves the console over MCP.
type Runner struct {
	Console   *app.Service
	Name      string
	Version   string
	Transport Transport
	HTTP      HTTPOptions
}

func (r Runner) newServer() *server.MCPServer {
	name, version := r.Name, r.Version
	if name == "" {
		name = "wbc"
	}
	if version == "" {
		version = "dev"
	}
	srv := server.NewMCPServer(
		name+" MCP",
		version,
		server.WithResourceCapabilities(false, false),
		server.WithToolCapabilities(false),
		server.WithInstructions("Browse water billing locations, preview disconnection candidates, create and assign field tasks, and check billing guards."),
		server.WithResourceRecovery(),
		server.WithRecovery(),
	)
	svc := NewService(r.Console)
	registerResources(srv, svc)
	registerTools(srv, svc)
	return srv
}

// Do serves until ctx is done. The stdio transport ends with its input.
func (r Runner) Do(ctx context.Context) error {
	if r.Console == nil {
		return errors.New("mcp runner requires a console service")
	}
	srv := r.newServer()

	// The server is long lived, so follow session file changes.
	if err := r.Console.WatchSession(ctx); err != nil {
		r.Console.Logger.Warn("session file not watched", zap.Error(err))
	}

	switch r.Transport {
	case "", TransportHTTP:
		return r.serveHTTP(ctx, srv)
	case TransportStdio:
		return server.ServeStdio(srv)
	default:
		return fmt.Errorf("unknown MCP transport %q", r.Transport)
	}
}

func (r Runner) serveHTTP(ctx context.Context, srv *server.MCPServer) error {
	opts := r.HTTP
	tls, err := opts.tls()
	if err != nil {
		return err
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8080"
	}

	mux := http.NewServeMux()
	mux.Handle(opts.EndpointPath(), server.NewStreamableHTTPServer(srv))
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return err
	}
	url := opts.URL(ln.Addr(), tls)
	r.Console.Logger.Info("mcp listening", zap.String("url", url))
	if opts.OnListening != nil {
		opts.OnListening(url)
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	if tls {
		err = hs.ServeTLS(ln, opts.CertFile, opts.KeyFile)
	} else {
		err = hs.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
