package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/pageindex/pkg/pageindex"
	"github.com/calvinalkan/pageindex/pkg/pagestore"

	flag "github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

// watchCmd returns the watch command.
func watchCmd(a *app) *Command {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (host:port)")

	return &Command{
		Flags: fs,
		Usage: "watch [flags]",
		Short: "Keep the index up to date while pages change",
		Long: "Bring the index up to date, then follow changes to the page directory\n" +
			"until interrupted. Optionally serves /metrics for Prometheus.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			addr, _ := fs.GetString("metrics-addr")
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}

			return execWatch(ctx, io, a, addr)
		},
	}
}

func execWatch(ctx context.Context, io *IO, a *app, addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	s, err := a.open(ctx, reg)
	if err != nil {
		return err
	}

	defer func() { _ = s.ix.Close() }()

	err = s.ix.CheckTree(ctx, pageindex.RootPath())
	if err != nil {
		return err
	}

	s.ix.StartBackgroundUpdate(ctx)
	defer s.ix.StopBackgroundUpdate()

	watcher := pagestore.NewWatcher(s.store, s.ix, a.log, a.cfg.Debounce())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Run(gctx)
	})

	if addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			err := srv.Serve(ln)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}

			return err
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		})

		a.log.Info("serving metrics", slog.String("addr", ln.Addr().String()))
		io.Println("metrics on http://" + ln.Addr().String() + "/metrics")
	}

	io.Println("watching " + s.store.Root())

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
