package commands

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/runner/mcp"
)

func addMCP(topLevel *cobra.Command, c *console) {
	var (
		transport string
		host      string
		port      int
	)
	ho := mcp.HTTPOptions{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "start the Model Context Protocol server",
		Long: `Launch an MCP server that lets an assistant browse the location tree,
preview and dispatch disconnections, create and assign tasks, and check the
billing guards.

The session cookie comes from the usual configuration. With --session-file
the file is watched and a new cookie is picked up without a restart.`,
		Example: `
wbc mcp --transport stdio --session-file ~/.wbc/session
wbc mcp --http-port 0
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := mcp.ParseTransport(transport)
			if err != nil {
				return err
			}
			if port < 0 || port > 65535 {
				return fmt.Errorf("invalid http-port %d", port)
			}
			console, err := c.service(cmd)
			if err != nil {
				return err
			}

			ho.Addr = net.JoinHostPort(host, strconv.Itoa(port))
			ho.OnListening = func(url string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "MCP HTTP server listening on %s\n", url)
			}
			runner := mcp.Runner{
				Console:   console,
				Name:      "wbc",
				Version:   version,
				Transport: t,
				HTTP:      ho,
			}
			return runner.Do(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&transport, "transport", string(mcp.TransportHTTP), "transport to use: http or stdio")
	cmd.Flags().StringVar(&host, "http-host", "127.0.0.1", "host/interface for HTTP transport")
	cmd.Flags().IntVar(&port, "http-port", 8080, "port for HTTP transport (use 0 for random)")
	cmd.Flags().StringVar(&ho.Path, "http-path", "/mcp", "HTTP endpoint path")
	cmd.Flags().StringVar(&ho.CertFile, "http-tls-cert", "", "TLS certificate file for HTTPS")
	cmd.Flags().StringVar(&ho.KeyFile, "http-tls-key", "", "TLS private key file for HTTPS")

	topLevel.AddCommand(cmd)
}
