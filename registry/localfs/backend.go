package localfs

import (
	"xdao.co/didauth/registry"
	"xdao.co/didauth/registry/backends"
)

func init() {
	backends.MustRegister(backends.Backend{
		Name:        "localfs",
		Description: "Local filesystem registry (directory)",
		Usage:       backends.UsageServer | backends.UsageDaemon,
		Open: func(opts backends.Options) (registry.Registry, func() error, error) {
			dir, err := opts.Require("localfs", "dir")
			if err != nil {
				return nil, nil, err
			}
			reg, err := New(dir)
			return reg, nil, err
		},
	})
}
