package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/vessel/pkg/agent"
	"github.com/cuemby/vessel/pkg/convergence"
	"github.com/cuemby/vessel/pkg/events"
	"github.com/cuemby/vessel/pkg/log"
	"github.com/cuemby/vessel/pkg/protocol"
	"github.com/cuemby/vessel/pkg/security"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Agent node operations",
}

var agentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the agent and connect to the control service",
	Long: `Start the convergence agent: it dials the control service over mTLS,
adopts whatever ClusterStatus or ClusterStatusDiff it is pushed, and
reports this node's observed state back on a periodic loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeUUID, _ := cmd.Flags().GetString("node-uuid")
		hostname, _ := cmd.Flags().GetString("hostname")
		controlAddr, _ := cmd.Flags().GetString("control-addr")
		certDir, _ := cmd.Flags().GetString("cert-dir")

		if hostname == "" {
			h, err := os.Hostname()
			if err != nil {
				return fmt.Errorf("determine hostname: %w", err)
			}
			hostname = h
		}

		tlsConfig, err := agentTLSConfig(certDir, controlAddr)
		if err != nil {
			return fmt.Errorf("configure mTLS: %w", err)
		}

		conn, err := tls.Dial("tcp", controlAddr, tlsConfig)
		if err != nil {
			return fmt.Errorf("dial control service at %s: %w", controlAddr, err)
		}

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		conv := convergence.NewNoopEngine(nodeUUID, hostname)
		responder := agent.NewResponder(nodeUUID, hostname, conv, broker)

		pconn := protocol.NewConnection(conn, protocol.Config{
			Locator: responder.Locator(),
			Logger:  log.WithNodeUUID(nodeUUID),
			OnClose: func(err error) {
				log.Logger.Warn().Err(err).Msg("control connection closed")
			},
		})
		pconn.Start()
		responder.Start(pconn)
		defer responder.Stop()

		fmt.Printf("vessel agent %s connected to control service at %s\n", nodeUUID, controlAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("shutting down...")
		return pconn.Close()
	},
}

func agentTLSConfig(certDir, controlAddr string) (*tls.Config, error) {
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load agent certificate from %s (run 'vessel control issue-cert' first): %w", certDir, err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate from %s: %w", certDir, err)
	}

	host, _, err := net.SplitHostPort(controlAddr)
	if err != nil {
		host = controlAddr
	}
	return security.ClientTLSConfig(cert, caCert.Raw, host)
}

func init() {
	agentCmd.AddCommand(agentStartCmd)

	agentStartCmd.Flags().String("node-uuid", "", "This node's UUID as it appears in the authored Deployment (required)")
	agentStartCmd.Flags().String("hostname", "", "Override the reported hostname (defaults to os.Hostname)")
	agentStartCmd.Flags().String("control-addr", "127.0.0.1:9876", "Control service address")
	agentStartCmd.Flags().String("cert-dir", "", "Directory containing node.crt/node.key/ca.crt (required)")
	agentStartCmd.MarkFlagRequired("node-uuid")
	agentStartCmd.MarkFlagRequired("cert-dir")
}
