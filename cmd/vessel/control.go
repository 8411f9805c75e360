package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/vessel/pkg/clusterstate"
	"github.com/cuemby/vessel/pkg/configstore"
	"github.com/cuemby/vessel/pkg/control"
	"github.com/cuemby/vessel/pkg/log"
	"github.com/cuemby/vessel/pkg/metrics"
	"github.com/cuemby/vessel/pkg/protocol"
	"github.com/cuemby/vessel/pkg/security"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Control service operations",
}

var controlStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the control service",
	Long: `Start the control service: it listens for agent connections over mTLS
and runs the broadcast engine that pushes the authored configuration and
merges back observed cluster state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		batchDelay, _ := cmd.Flags().GetDuration("batching-delay")
		expiration, _ := cmd.Flags().GetDuration("expiration")

		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		store, err := configstore.Open(dataDir)
		if err != nil {
			return fmt.Errorf("open config store: %w", err)
		}
		defer store.Close()

		tlsConfig, err := controlTLSConfig(store, bindAddr)
		if err != nil {
			return fmt.Errorf("configure mTLS: %w", err)
		}

		clusterState := clusterstate.New(expiration)
		engine := control.NewEngine(store, clusterState, batchDelay)
		engine.Start()
		store.OnChange(engine.NotifyChange)

		collector := metrics.NewCollector(clusterState)
		collector.Start()
		metrics.SetVersion(Version)
		metrics.RegisterComponent(metrics.ComponentClusterState, true, "running")
		metrics.RegisterComponent(metrics.ComponentBroadcast, true, "running")
		metrics.RegisterComponent(metrics.ComponentTransport, false, "starting")

		listener, err := tls.Listen("tcp", bindAddr, tlsConfig)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", bindAddr, err)
		}
		metrics.RegisterComponent(metrics.ComponentTransport, true, "ready")

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/health", metrics.HealthHandler())
			mux.HandleFunc("/ready", metrics.ReadyHandler())
			mux.HandleFunc("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()

		go acceptLoop(listener, engine)

		fmt.Printf("vessel control service listening on %s (metrics on %s)\n", bindAddr, metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("shutting down...")
		_ = listener.Close()
		collector.Stop()
		engine.Stop()
		return nil
	},
}

// acceptLoop accepts agent connections and wires each one into the
// broadcast engine exactly the way engine_test.go's attachAgent does:
// reserve a connection ID before the Connection exists so the
// connection's own Locator can be built against its own ID.
func acceptLoop(listener net.Listener, engine *control.Engine) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		id := protocol.NextConnectionID()
		cid := clusterstate.ConnectionID(id)
		logger := log.WithConnection(id)

		pconn := protocol.NewConnection(conn, protocol.Config{
			ID:         id,
			Locator:    engine.BuildLocator(cid),
			Logger:     logger,
			OnActivity: func() { engine.Touch(cid) },
			OnClose: func(err error) {
				engine.RemoveConnection(id)
				logger.Info().Err(err).Msg("agent connection closed")
			},
		})
		pconn.Start()
		engine.AddConnection(pconn)
		logger.Info().Str("action", "AGENT_CONNECTED").Str("remote", conn.RemoteAddr().String()).Msg("agent connected")
	}
}

// controlTLSConfig bootstraps (or loads) the cluster CA and issues the
// control service's own node certificate against it.
func controlTLSConfig(store *configstore.Store, bindAddr string) (*tls.Config, error) {
	ca := security.NewCertAuthority(store)
	if err := ca.LoadFromStore(); err != nil {
		if err := ca.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize CA: %w", err)
		}
		if err := ca.SaveToStore(); err != nil {
			return nil, fmt.Errorf("persist CA: %w", err)
		}
	}

	host, _, err := net.SplitHostPort(bindAddr)
	if err != nil {
		host = bindAddr
	}
	dnsNames := []string{"control", host}
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = append(ips, ip)
	}

	cert, err := ca.IssueNodeCertificate("control", "control", dnsNames, ips)
	if err != nil {
		return nil, fmt.Errorf("issue control certificate: %w", err)
	}
	return security.ServerTLSConfig(cert, ca.GetRootCACert())
}

var controlIssueCertCmd = &cobra.Command{
	Use:   "issue-cert",
	Short: "Issue a node certificate against the control service's CA",
	Long: `Issue a certificate signed by the control service's root CA and write
it, alongside the CA certificate, to --out-dir for an agent or CLI to load.
A stand-in for a live enrollment RPC: mTLS endpoint construction is a
boundary this system treats as externally supplied, not a protocol this
system defines.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		nodeID, _ := cmd.Flags().GetString("node-id")
		role, _ := cmd.Flags().GetString("role")
		outDir, _ := cmd.Flags().GetString("out-dir")

		store, err := configstore.Open(dataDir)
		if err != nil {
			return fmt.Errorf("open config store: %w", err)
		}
		defer store.Close()

		ca := security.NewCertAuthority(store)
		if err := ca.LoadFromStore(); err != nil {
			return fmt.Errorf("load CA (run 'vessel control start' at least once first): %w", err)
		}

		cert, err := ca.IssueNodeCertificate(nodeID, role, []string{nodeID}, nil)
		if err != nil {
			return fmt.Errorf("issue certificate: %w", err)
		}
		if err := security.SaveCertToFile(cert, outDir); err != nil {
			return fmt.Errorf("save certificate: %w", err)
		}
		if err := security.SaveCACertToFile(ca.GetRootCACert(), outDir); err != nil {
			return fmt.Errorf("save CA certificate: %w", err)
		}

		fmt.Printf("issued %s certificate for %s in %s\n", role, nodeID, outDir)
		return nil
	},
}

func init() {
	controlCmd.AddCommand(controlStartCmd)
	controlCmd.AddCommand(controlIssueCertCmd)

	controlIssueCertCmd.Flags().String("data-dir", "./vessel-control-data", "Data directory holding the control service's CA")
	controlIssueCertCmd.Flags().String("node-id", "", "Node identifier the certificate is issued for (required)")
	controlIssueCertCmd.Flags().String("role", "agent", "Role embedded in the certificate (agent|control)")
	controlIssueCertCmd.Flags().String("out-dir", "", "Directory to write node.crt/node.key/ca.crt to (required)")
	controlIssueCertCmd.MarkFlagRequired("node-id")
	controlIssueCertCmd.MarkFlagRequired("out-dir")

	controlStartCmd.Flags().String("bind-addr", "0.0.0.0:9876", "Address agents connect to")
	controlStartCmd.Flags().String("data-dir", "./vessel-control-data", "Data directory for the configuration store and CA")
	controlStartCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus metrics endpoint")
	controlStartCmd.Flags().Duration("batching-delay", control.DefaultBatchingDelay, "Batching delay for coalescing broadcast passes")
	controlStartCmd.Flags().Duration("expiration", 4*protocol.DefaultPingInterval, "Cluster state slot expiration after last activity")
}
