package pgsql

import (
	"context"

	"xdao.co/didauth/registry"
	"xdao.co/didauth/registry/backends"
)

func init() {
	backends.MustRegister(backends.Backend{
		Name:        "pgsql",
		Description: "PostgreSQL registry (users table)",
		Usage:       backends.UsageServer | backends.UsageDaemon,
		Open: func(opts backends.Options) (registry.Registry, func() error, error) {
			url, err := opts.Require("pgsql", "database_url")
			if err != nil {
				return nil, nil, err
			}
			ctx := context.Background()
			reg, err := Connect(ctx, url)
			if err != nil {
				return nil, nil, err
			}
			if opts.Get("migrate") != "false" {
				if err := reg.Migrate(ctx); err != nil {
					reg.Close()
					return nil, nil, err
				}
			}
			return reg, func() error { reg.Close(); return nil }, nil
		},
	})
}
