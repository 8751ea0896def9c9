package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cecil-the-coder/ai-provider-kit/internal/sidecar"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/audit"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/guardrails"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/health"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/kubeconfig"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/metrics"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
)

type serveOptions struct {
	policyPath   string
	cedarPath    string
	healthAddr   string
	kafkaBrokers []string
	auditTopic   string
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{
		policyPath: "policy.yaml",
		healthAddr: ":8080",
		auditTopic: "ai-ext-proc-guardrail-events",
	}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sidecar: load policy, watch for changes, serve health/readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.policyPath, "policy-config", opts.policyPath, "path to the per-route prompt-guard policy YAML file")
	fs.StringVar(&opts.cedarPath, "cedar-policy", opts.cedarPath, "path to a Cedar policy set gating guardrail enforcement (optional)")
	fs.StringVar(&opts.healthAddr, "health-addr", opts.healthAddr, "address the health/readiness server listens on")
	fs.StringSliceVar(&opts.kafkaBrokers, "kafka-brokers", nil, "Kafka brokers for the audit trail (optional; omit to disable)")
	fs.StringVar(&opts.auditTopic, "kafka-topic", opts.auditTopic, "Kafka topic for audit events")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	log := logrus.NewEntry(logrus.StandardLogger())

	loader, err := kubeconfig.NewFileLoader(opts.policyPath)
	if err != nil {
		return fmt.Errorf("loading policy config: %w", err)
	}

	var gate policy.Gate = policy.AlwaysAllow{}
	if opts.cedarPath != "" {
		cedarGate, err := policy.NewCedarGate(opts.cedarPath)
		if err != nil {
			return fmt.Errorf("loading cedar policy: %w", err)
		}
		gate = cedarGate
	}

	var auditProducer *audit.Producer
	if len(opts.kafkaBrokers) > 0 {
		auditProducer, err = audit.New(opts.kafkaBrokers, opts.auditTopic)
		if err != nil {
			return fmt.Errorf("connecting audit producer: %w", err)
		}
		defer auditProducer.Close()
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	cfg := &sidecar.Config{
		Loader:  loader,
		Gate:    gate,
		Webhook: guardrails.NewHTTPWebhookClient(),
		Regex:   guardrails.NewRegexAnonymizer(),
		Metrics: collector,
		Audit:   auditProducer,
		Log:     log,
	}
	// The out-of-scope ext_proc gRPC listener constructs one sidecar.Processor
	// per stream from cfg via sidecar.NewProcessor. Build one here against an
	// empty header set as a startup smoke test that policy/gate resolution
	// wires together cleanly before the listener ever sees real traffic.
	if err := sidecar.NewProcessor(cfg).ProcessRequestHeaders(ctx, http.Header{}); err != nil {
		return fmt.Errorf("sidecar wiring smoke test: %w", err)
	}

	watchCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	changed, err := loader.Watch(watchCtx)
	if err != nil {
		return fmt.Errorf("watching policy config: %w", err)
	}
	go func() {
		for range changed {
			log.Info("sidecar: policy config reloaded")
		}
	}()

	srv := health.NewServer(loader)
	httpServer := &http.Server{Addr: opts.healthAddr, Handler: srv.Handler()}
	go func() {
		<-watchCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", opts.healthAddr).Info("sidecar: health server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
