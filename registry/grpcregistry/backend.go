package grpcregistry

import (
	"fmt"
	"time"

	"xdao.co/didauth/registry"
	"xdao.co/didauth/registry/backends"
)

func init() {
	backends.MustRegister(backends.Backend{
		Name:        "grpc",
		Description: "gRPC registry client (talks to didauth-registryd)",
		Usage:       backends.UsageServer,
		Open: func(opts backends.Options) (registry.Registry, func() error, error) {
			target, err := opts.Require("grpc", "target")
			if err != nil {
				return nil, nil, err
			}
			dialTimeout, err := durationOption(opts, "dial_timeout", 5*time.Second)
			if err != nil {
				return nil, nil, err
			}
			timeout, err := durationOption(opts, "timeout", 0)
			if err != nil {
				return nil, nil, err
			}
			client, err := Dial(target, DialOptions{Timeout: dialTimeout})
			if err != nil {
				return nil, nil, err
			}
			client.Timeout = timeout
			return client, client.Close, nil
		},
	})
}

func durationOption(opts backends.Options, key string, def time.Duration) (time.Duration, error) {
	v := opts.Get(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("backend %q: option %q: %w", "grpc", key, err)
	}
	return d, nil
}
