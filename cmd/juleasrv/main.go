// Command juleasrv is the julea-server binary (spec §6): it loads the
// configuration, links in whichever object/kv backend the [object]/[kv]
// `component = server` sections name, and runs the dispatch loop until
// asked to stop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/SpaceCafe/julea/backend"
	_ "github.com/SpaceCafe/julea/backend/memstore"
	"github.com/SpaceCafe/julea/cmn/config"
	"github.com/SpaceCafe/julea/cmn/nlog"
	"github.com/SpaceCafe/julea/cmn/sigpipe"
	"github.com/SpaceCafe/julea/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	port := flag.Int("port", 4711, "TCP port to listen on")
	daemon := flag.Bool("daemon", false, "accepted for compatibility; this build always runs in the foreground")
	configName := flag.String("config", "julea.config", "configuration file name looked up per JULEA_CONFIG/XDG rules")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	if *daemon {
		nlog.Infof("juleasrv: --daemon accepted but ignored; running in the foreground")
	}

	cfg, err := config.Load(*configName)
	if err != nil {
		nlog.Errorf("juleasrv: load config: %v", err)
		return 1
	}

	var objectBackend backend.ObjectBackend
	if cfg.Object.Component == "server" {
		b, ok := backend.NewObject(cfg.Object.Name)
		if !ok {
			nlog.Errorf("juleasrv: unknown object backend %q", cfg.Object.Name)
			return 1
		}
		if err := b.Init(cfg.Object.Path); err != nil {
			nlog.Errorf("juleasrv: init object backend: %v", err)
			return 1
		}
		defer b.Fini()
		objectBackend = b
	}

	var kvBackend backend.KVBackend
	if cfg.KV.Component == "server" {
		b, ok := backend.NewKV(cfg.KV.Name)
		if !ok {
			nlog.Errorf("juleasrv: unknown kv backend %q", cfg.KV.Name)
			return 1
		}
		if err := b.Init(cfg.KV.Path); err != nil {
			nlog.Errorf("juleasrv: init kv backend: %v", err)
			return 1
		}
		defer b.Fini()
		kvBackend = b
	}

	if objectBackend == nil && kvBackend == nil {
		nlog.Errorf("juleasrv: neither store is configured with component=server on this process")
		return 1
	}

	sigpipe.Ignore()

	srv, err := server.Listen(":"+strconv.Itoa(*port), objectBackend, kvBackend)
	if err != nil {
		nlog.Errorf("juleasrv: %v", err)
		return 1
	}
	nlog.Infof("juleasrv: listening on %s", srv.Addr())

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	select {
	case <-ctx.Done():
		nlog.Infof("juleasrv: signal received, shutting down")
		srv.Shutdown()
		return 0
	case err := <-errCh:
		if err != nil {
			nlog.Errorf("juleasrv: serve: %v", err)
			return 1
		}
		return 0
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		nlog.Warningf("juleasrv: metrics server: %v", err)
	}
}
