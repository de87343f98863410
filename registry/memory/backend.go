package memory

import (
	"xdao.co/didauth/registry"
	"xdao.co/didauth/registry/backends"
)

func init() {
	backends.MustRegister(backends.Backend{
		Name:        "memory",
		Description: "In-process registry (lost on exit)",
		Usage:       backends.UsageServer | backends.UsageDaemon,
		Open: func(backends.Options) (registry.Registry, func() error, error) {
			return New(), nil, nil
		},
	})
}
