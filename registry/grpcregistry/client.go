// Package grpcregistry serves a registry.Registry over gRPC and provides a
// client that implements registry.Registry against such a server.
package grpcregistry

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/didauth/registry"
)

// Client implements registry.Registry over a Registry gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client RegistryClient

	// Timeout applies per RPC when non-zero, in addition to the caller's context.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		dialOpts = append(dialOpts, grpc.WithBlock())
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewRegistryClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Exists(ctx context.Context, nameOrDID string) (bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Exists(ctx, wrapperspb.String(nameOrDID))
	if err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) Insert(ctx context.Context, did, name string) error {
	if err := registry.Validate(did, name); err != nil {
		return err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	_, err := c.client.Insert(ctx, userToStruct(registry.User{DID: did, Name: name}))
	return mapRPC(err)
}

func (c *Client) FindByDID(ctx context.Context, did string) (registry.User, bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.FindByDID(ctx, wrapperspb.String(did))
	if err != nil {
		err = mapRPC(err)
		if errors.Is(err, registry.ErrNotFound) {
			return registry.User{}, false, nil
		}
		return registry.User{}, false, err
	}
	u, err := userFromStruct(reply)
	if err != nil || u.DID != did {
		return registry.User{}, false, registry.ErrCorrupt
	}
	return u, true, nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
