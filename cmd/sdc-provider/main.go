// Command sdc-provider runs an SDC provider: it serves a Medical Device
// Information Base over SOAP, answers WS-Discovery, and pushes reports to
// subscribers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/sdcgo/sdc-core/internal/discovery"
	"github.com/sdcgo/sdc-core/internal/dispatch"
	"github.com/sdcgo/sdc-core/internal/export"
	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/reporting"
	"github.com/sdcgo/sdc-core/internal/runtime"
	"github.com/sdcgo/sdc-core/internal/sdcconfig"
	"github.com/sdcgo/sdc-core/internal/transport"
)

var (
	configPath string
	logLevel   string
	snapshotIn string
)

func main() {
	root := &cobra.Command{
		Use:   "sdc-provider",
		Short: "Run an SDC provider exposing an MDIB over SOAP",
		RunE:  runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().StringVar(&snapshotIn, "import", "", "seed the MDIB from a snapshot file before serving")

	root.AddCommand(exportCmd())
	root.AddCommand(configDumpCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exportCmd re-validates and re-serializes a snapshot file offline,
// without a live provider process, matching the teacher's bd export/bd
// import pair being usable against an on-disk store.
func exportCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Validate and re-serialize an MDIB snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := buildLogger(logLevel)
			if err != nil {
				return err
			}
			defer log.Sync()
			rt := runtime.New(log, nil)

			f, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("open snapshot: %w", err)
			}
			defer f.Close()
			store := mdib.NewStore(rt)
			if err := export.Import(store, f); err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}

			w, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer w.Close()
			return export.Snapshot(store, w)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input snapshot file")
	cmd.Flags().StringVar(&out, "out", "mdib-snapshot.xml", "output file path")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// configDumpCmd prints the effective configuration (defaults + file +
// environment overlay) as YAML, for operators diagnosing a deployment.
func configDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-dump",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sdcconfig.Load(configPath)
			if err != nil {
				return err
			}
			out, err := sdcconfig.Dump(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return cfg.Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := buildLogger(logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("build trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	rt := runtime.New(log, tp.Tracer("sdc-provider"))

	cfg, err := sdcconfig.Load(configPath)
	if err != nil {
		return err
	}

	store := mdib.NewStore(rt)
	if snapshotIn != "" {
		f, err := os.Open(snapshotIn)
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		if err := export.Import(store, f); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}

	manager := reporting.NewManager()
	httpClient := transport.NewClient(rt, 8, 5*time.Second)
	deliverer := dispatch.NewHTTPDeliverer(httpClient)
	pipeline := reporting.NewPipeline(rt, manager, deliverer, nil, cfg.PeriodicReportInterval, cfg.MaxDeliveryFailures)

	getSvc := dispatch.NewGetService(store)
	ctxSvc := dispatch.NewContextService(store)
	setSvc := dispatch.NewSetService(rt, store, pipeline)
	eventSvc := dispatch.NewEventingService(manager, cfg.SubscriptionDefaultTTL, cfg.SubscriptionMaxQueue)
	router := dispatch.NewRouter(getSvc, ctxSvc, setSvc, eventSvc)

	status := &providerStatus{store: store, manager: manager}
	server := transport.NewServer(rt, cfg.BearerToken, status)
	for _, path := range []string{"/GetService", "/SetService", "/ContextService", "/EventingService"} {
		server.RegisterService(path, router.Dispatch)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pipeline.RunPeriodicTicker(ctx)
	go sweepLoop(ctx, manager)

	announcer, err := discovery.NewAnnouncer(rt, discovery.Endpoint{
		Address: "urn:uuid:sdc-provider",
		XAddrs:  "http://" + cfg.ListenAddress,
	}, uint64(time.Now().UnixNano()))
	if err != nil {
		return fmt.Errorf("start discovery announcer: %w", err)
	}
	defer announcer.Close()
	go func() {
		if err := announcer.Hello(ctx, 3); err != nil {
			rt.Log.Warn("discovery hello failed", zap.Error(err))
		}
	}()
	go func() {
		if err := announcer.Serve(ctx); err != nil && ctx.Err() == nil {
			rt.Log.Warn("discovery serve exited", zap.Error(err))
		}
	}()

	httpSrv := &http.Server{Addr: cfg.ListenAddress, Handler: server}
	go func() {
		<-ctx.Done()
		_ = announcer.Bye(context.Background())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	rt.Log.Info("sdc-provider listening", zap.String("address", cfg.ListenAddress))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func sweepLoop(ctx context.Context, manager *reporting.Manager) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			manager.SweepExpired()
		}
	}
}

type providerStatus struct {
	store   *mdib.Store
	manager *reporting.Manager
}

func (p *providerStatus) MdibVersion() uint64        { return p.store.ReadSnapshot().MdibVersion() }
func (p *providerStatus) ActiveSubscriptions() int   { return p.manager.Len() }
func (p *providerStatus) DiscoveryCacheSize() int    { return 0 }
func (p *providerStatus) Ready() bool                { return true }
