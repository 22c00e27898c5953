// Command sdc-consumer discovers an SDC provider, mirrors its MDIB
// locally, and subscribes to reports, logging every change.
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
	"go.uber.org/zap"

	"github.com/sdcgo/sdc-core/internal/consumer"
	"github.com/sdcgo/sdc-core/internal/discovery"
	"github.com/sdcgo/sdc-core/internal/export"
	"github.com/sdcgo/sdc-core/internal/runtime"
	"github.com/sdcgo/sdc-core/internal/sdcconfig"
)

var (
	configPath   string
	logLevel     string
	directXAddr  string
	notifyListen string
	exportOut    string
)

func main() {
	root := &cobra.Command{
		Use:   "sdc-consumer",
		Short: "Discover and mirror an SDC provider's MDIB",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to YAML configuration file")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().StringVar(&directXAddr, "xaddr", "", "connect directly to this provider address, skipping discovery")
	root.Flags().StringVar(&notifyListen, "notify-listen", ":8090", "address this consumer listens on for pushed reports")
	root.Flags().StringVar(&exportOut, "export", "", "write the bootstrapped mirror to this snapshot file and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log, err := cfg.Build()
	if err != nil {
		return err
	}
	defer log.Sync()
	rt := runtime.New(log, nil)

	sdcCfg, err := sdcconfig.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	xaddr := directXAddr
	if xaddr == "" {
		listener, err := discovery.NewListener(rt, sdcCfg.DupSuppressionWindow, 3*sdcCfg.DiscoveryMaxWait)
		if err != nil {
			return fmt.Errorf("start discovery listener: %w", err)
		}
		defer listener.Close()
		found, err := listener.Probe(ctx, "", "", sdcCfg.DiscoveryMaxWait)
		if err != nil {
			return fmt.Errorf("probe: %w", err)
		}
		if len(found) == 0 {
			return fmt.Errorf("no providers discovered within %s", sdcCfg.DiscoveryMaxWait)
		}
		xaddr = found[0].XAddrs
		rt.Log.Info("discovered provider", zap.String("xaddr", xaddr))
	}

	client, err := consumer.Dial(ctx, rt, xaddr, 2*time.Second)
	if err != nil {
		return fmt.Errorf("dial provider: %w", err)
	}
	if err := client.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap mirror: %w", err)
	}
	rt.Log.Info("mirror bootstrapped", zap.Uint64("mdib_version", client.Mirror().ReadSnapshot().MdibVersion()))

	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		if err := export.Snapshot(client.Mirror(), f); err != nil {
			return fmt.Errorf("export mirror: %w", err)
		}
		rt.Log.Info("mirror exported", zap.String("path", exportOut))
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/notify", func(w http.ResponseWriter, r *http.Request) {
		notifyHandler(ctx, rt, client, w, r)
	})
	srv := &http.Server{Addr: notifyListen, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	notifyTo := "http://" + hostFromListen(notifyListen) + "/notify"
	subID, ttl, err := client.Subscribe(ctx, notifyTo, nil, sdcCfg.SubscriptionDefaultTTL)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	rt.Log.Info("subscribed", zap.String("subscription_id", subID), zap.Duration("ttl", ttl))

	rt.Log.Info("sdc-consumer listening for reports", zap.String("address", notifyListen))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func notifyHandler(ctx context.Context, rt *runtime.Runtime, client *consumer.Client, w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	buf := make([]byte, 1<<20)
	n, err := r.Body.Read(buf)
	if err != nil && n == 0 {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	if err := client.ApplyReport(ctx, buf[:n]); err != nil {
		rt.Log.Warn("apply report failed", zap.Error(err))
		http.Error(w, "apply failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func hostFromListen(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
