// Command didauth-registryd serves a user registry over gRPC so that several
// didauth servers can share one store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"xdao.co/didauth/internal/config"
	"xdao.co/didauth/internal/logging"
	"xdao.co/didauth/registry"
	"xdao.co/didauth/registry/backends"
	"xdao.co/didauth/registry/grpcregistry"

	_ "xdao.co/didauth/registry/localfs"
	_ "xdao.co/didauth/registry/memory"
	_ "xdao.co/didauth/registry/pgsql"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	listen       string
	backend      string
	localfsDir   string
	databaseURL  string
	logLevel     string
	logFormat    string
	listBackends bool
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	f := &flags{}
	usage := false
	cmd := &cobra.Command{
		Use:           "didauth-registryd",
		Short:         "gRPC user registry daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.listBackends {
				for _, b := range backends.List(backends.UsageDaemon) {
					if b.Description == "" {
						fmt.Fprintf(out, "%s\n", b.Name)
						continue
					}
					fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
				}
				return nil
			}
			if err := config.LoadDotEnv(); err != nil {
				usage = true
				return err
			}
			logger, closer, err := logging.New(logging.Options{Level: f.logLevel, Format: f.logFormat}, errOut)
			if err != nil {
				usage = true
				return err
			}
			defer closer.Close()

			reg, closeRegistry, err := backends.Open(f.backend, backends.UsageDaemon, backendOptions(f, os.Getenv))
			if err != nil {
				usage = true
				return err
			}
			defer closeRegistry()

			lis, err := net.Listen("tcp", f.listen)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().Str("addr", lis.Addr().String()).Str("backend", f.backend).Msg("didauth-registryd listening")
			return serveRegistry(ctx, lis, reg, logger)
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		usage = true
		return err
	})

	fl := cmd.Flags()
	fl.StringVar(&f.listen, "listen", "127.0.0.1:7777", "listen address")
	fl.StringVar(&f.backend, "backend", "localfs", "registry backend name")
	fl.StringVar(&f.localfsDir, "localfs-dir", "", "localfs backend: registry directory (or DIDAUTH_LOCALFS_DIR)")
	fl.StringVar(&f.databaseURL, "database-url", "", "pgsql backend: connection URL (or DATABASE_URL)")
	fl.StringVar(&f.logLevel, "log-level", "info", "log level")
	fl.StringVar(&f.logFormat, "log-format", "json", "log format (json or console)")
	fl.BoolVar(&f.listBackends, "list-backends", false, "list supported backends and exit")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(errOut, err)
		if usage {
			return 2
		}
		return 1
	}
	return 0
}

// backendOptions builds backend options from flags, falling back to the
// environment variables the server understands.
func backendOptions(f *flags, getenv func(string) string) backends.Options {
	opts := backends.Options{}
	dir := f.localfsDir
	if dir == "" {
		dir = getenv("DIDAUTH_LOCALFS_DIR")
	}
	if dir != "" {
		opts["dir"] = dir
	}
	url := f.databaseURL
	if url == "" {
		url = getenv("DATABASE_URL")
	}
	if url != "" {
		opts["database_url"] = url
	}
	return opts
}

// serveRegistry exposes reg on lis until ctx is done, then stops gracefully.
func serveRegistry(ctx context.Context, lis net.Listener, reg registry.Registry, logger zerolog.Logger) error {
	s := grpc.NewServer()
	grpcregistry.RegisterRegistryServer(s, &grpcregistry.Server{Registry: reg})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		s.GracefulStop()
		return nil
	})
	return g.Wait()
}
