// Command fixsession runs a set of FIX initiator sessions (it dials out)
// defined in a YAML config file, adapted from the teacher's flag-based
// entrypoint into a cobra command with the same startup/shutdown shape:
// load config, wire components, install signal handling, run until
// cancelled.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fixcore/audit"
	"fixcore/codec"
	"fixcore/fixconfig"
	"fixcore/metrics"
	"fixcore/session"
	"fixcore/verify"
)

// Version follows the same major.minor.patch convention the teacher used:
// major for breaking changes, minor for new features, patch for fixes.
var Version = "1.0.0"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "fixsession",
		Short:   "Run FIX session-layer engines for a set of configured counterparties",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := fixconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.LogLevel != "" {
		if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
			log.SetLevel(lvl)
		}
	}

	log.Infof("starting fixsession v%s", Version)
	log.Infof("  sessions configured: %d", len(cfg.Sessions))
	log.Infof("  audit path: %s", cfg.AuditPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down...")
		cancel()
	}()

	auditWriter := audit.NewWriter(cfg.AuditPath, cfg.AuditRetention)
	defer auditWriter.Close()

	registry := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(registry)

	if cfg.MetricsListenAddr != "" {
		go serveMetrics(ctx, cfg.MetricsListenAddr, registry)
	}

	manager := session.NewManager()

	for _, sc := range cfg.Sessions {
		sessCfg := session.Config{
			BeginString:         sc.BeginString,
			SenderCompID:        sc.SenderCompID,
			TargetCompID:        sc.TargetCompID,
			Heartbeat:           sc.Heartbeat(),
			VerifyTestIndicator: sc.VerifyTestIndicator,
			Environment: verify.Environment{
				Production: sc.Production,
				AllowTest:  sc.AllowTest,
			},
		}

		hooks := session.Hooks{
			Audit:   auditWriter,
			Metrics: metricsRegistry.Session(sc.Name),
		}

		addr := sc.Address
		dial := func(ctx context.Context) (session.Transport, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		}

		backend := &loggingBackend{name: sc.Name}

		log.Infof("starting session %s -> %s (%s/%s)", sc.Name, sc.Address, sc.SenderCompID, sc.TargetCompID)
		manager.StartSession(sc.Name, dial, sessCfg, backend, hooks)
	}

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				auditWriter.Cleanup()
			}
		}
	}()

	<-ctx.Done()
	return nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warnf("metrics server: %v", err)
	}
}

// loggingBackend is a minimal Backend that just logs session-layer
// notifications; a real application message handler lives outside this
// engine's scope.
type loggingBackend struct {
	name string
}

func (b *loggingBackend) OnLogon(msg codec.Message) error {
	log.Infof("session %s: logon accepted", b.name)
	return nil
}

func (b *loggingBackend) OnSuccessfulHandshake() {
	log.Infof("session %s: handshake complete", b.name)
}

func (b *loggingBackend) OnOutboundMessage(frame []byte) {}

func (b *loggingBackend) OnApplicationMessage(msg codec.Message) {
	log.Debugf("session %s: application message received", b.name)
}

func (b *loggingBackend) OnInboundMessage(msg codec.Message, isApp bool) {
	log.Debugf("session %s: inbound MsgType=%s isApp=%v", b.name, msg.MsgType, isApp)
}

func (b *loggingBackend) OnResendRequest(begin, end uint64) {
	log.Infof("session %s: counterparty requested resend [%d,%d]", b.name, begin, end)
}

func (b *loggingBackend) OnError(err error) {
	log.Warnf("session %s: %v", b.name, err)
}
