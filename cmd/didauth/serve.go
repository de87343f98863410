package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"xdao.co/didauth/auth"
	"xdao.co/didauth/httpapi"
	"xdao.co/didauth/internal/config"
	"xdao.co/didauth/internal/logging"
	"xdao.co/didauth/registry/backends"

	_ "xdao.co/didauth/registry/grpcregistry"
	_ "xdao.co/didauth/registry/localfs"
	_ "xdao.co/didauth/registry/memory"
	_ "xdao.co/didauth/registry/pgsql"
)

type serveFlags struct {
	listen       string
	publicDir    string
	backend      string
	options      []string
	listBackends bool
}

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP authentication server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.listBackends {
				printBackends(cmd, backends.UsageServer)
				return nil
			}
			cfg, err := loadServeConfig(g, f)
			if err != nil {
				return usageError("%v", err)
			}
			logger, closer, err := logging.New(logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}, cmd.ErrOrStderr())
			if err != nil {
				return usageError("%v", err)
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.listen, "listen", "", "listen address (overrides server.listen)")
	fl.StringVar(&f.publicDir, "public-dir", "", "directory of static files served at / (overrides server.publicDir)")
	fl.StringVar(&f.backend, "backend", "", "registry backend name (overrides registry.backend)")
	fl.StringArrayVar(&f.options, "registry-opt", nil, "registry backend option key=value (repeatable)")
	fl.BoolVar(&f.listBackends, "list-backends", false, "list supported registry backends and exit")
	return cmd
}

func loadServeConfig(g *globalFlags, f *serveFlags) (config.Config, error) {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.listen != "" {
		cfg.Server.Listen = f.listen
	}
	if f.publicDir != "" {
		cfg.Server.PublicDir = f.publicDir
	}
	if f.backend != "" {
		cfg.Registry.Backend = f.backend
	}
	opts, err := parseKeyValues("registry-opt", f.options)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Registry.Options == nil {
		cfg.Registry.Options = map[string]string{}
	}
	for k, v := range opts {
		cfg.Registry.Options[k] = v
	}
	return cfg, nil
}

func printBackends(cmd *cobra.Command, usage backends.Usage) {
	out := cmd.OutOrStdout()
	for _, b := range backends.List(usage) {
		if b.Description == "" {
			fmt.Fprintf(out, "%s\n", b.Name)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
	}
}

// serve opens the registry and runs the HTTP server until ctx is done.
func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	reg, closeRegistry, err := backends.Open(cfg.Registry.Backend, backends.UsageServer, backends.Options(cfg.Registry.Options))
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer func() {
		if err := closeRegistry(); err != nil {
			logger.Warn().Err(err).Msg("close registry")
		}
	}()

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := httpapi.NewHandler(httpapi.Options{
		Auth:           auth.New(reg, logger),
		Logger:         logger,
		Metrics:        httpapi.NewMetrics(promReg),
		PublicDir:      cfg.Server.PublicDir,
		WelcomeMessage: cfg.Server.WelcomeMessage,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	logger.Info().
		Str("addr", ln.Addr().String()).
		Str("backend", cfg.Registry.Backend).
		Msg("didauth listening")
	return runHTTP(ctx, ln, handler, cfg.Server.ShutdownTimeout, logger)
}

// runHTTP serves handler on ln and shuts down gracefully once ctx is done.
func runHTTP(ctx context.Context, ln net.Listener, handler http.Handler, shutdownTimeout time.Duration, logger zerolog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
