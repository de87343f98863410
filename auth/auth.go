// Package auth orchestrates the register and login flows over the signature
// verifier and a user registry.
//
// The service holds no crypto logic and no state of its own: each call is one
// verify.Check followed by registry calls, with no retries.
//
// Login is not replay resistant: any message signed by the DID is accepted,
// so a captured (did, message, sign) triple can be replayed indefinitely.
package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"xdao.co/didauth/autherr"
	"xdao.co/didauth/internal/logging"
	"xdao.co/didauth/registry"
	"xdao.co/didauth/verify"
)

// RegisterRequest is a signed enrollment. Message is the exact text the
// Signature token was produced over.
type RegisterRequest struct {
	DID       string
	Name      string
	Message   string
	Signature string
}

// LoginRequest proves control of DID by a signature over any Message.
type LoginRequest struct {
	DID       string
	Message   string
	Signature string
}

// Service implements Register and Login. Logger may be the zero value, which
// discards output.
type Service struct {
	Registry registry.Registry
	Logger   zerolog.Logger
}

// New returns a Service backed by reg.
func New(reg registry.Registry, logger zerolog.Logger) *Service {
	return &Service{Registry: reg, Logger: logger}
}

// Register verifies the signed enrollment and records (DID, name).
//
// The name is checked with Exists before Insert; the registry's own
// uniqueness errors still decide races between concurrent registrations.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	log := s.Logger.With().Str("op", "register").Str("did_fp", logging.FingerprintDID(req.DID)).Logger()

	if req.DID == "" {
		return autherr.New(autherr.KindInvalidArgument, "DIDAUTH-AUTH-001", "did is required")
	}
	if req.Name == "" {
		return autherr.New(autherr.KindInvalidArgument, "DIDAUTH-AUTH-002", "name is required")
	}
	if err := verify.Check(req.DID, req.Signature, req.Message); err != nil {
		log.Info().Str("rule", autherr.RuleID(err)).Msg("register rejected")
		return err
	}

	exists, err := s.Registry.Exists(ctx, req.Name)
	if err != nil {
		log.Error().Err(err).Msg("registry exists failed")
		return err
	}
	if exists {
		log.Info().Msg("register rejected: name taken")
		return autherr.New(autherr.KindAlreadyRegistered, "DIDAUTH-AUTH-101", "already registered")
	}

	if err := s.Registry.Insert(ctx, req.DID, req.Name); err != nil {
		if !registry.IsDuplicate(err) {
			log.Error().Err(err).Msg("registry insert failed")
			return err
		}
		if errors.Is(err, registry.ErrDuplicateDID) {
			log.Info().Msg("register rejected: did taken")
			return autherr.Wrap(autherr.KindDuplicateDID, "DIDAUTH-AUTH-102", "did already registered", err)
		}
		log.Info().Msg("register rejected: name taken")
		return autherr.Wrap(autherr.KindAlreadyRegistered, "DIDAUTH-AUTH-101", "already registered", err)
	}
	log.Info().Msg("registered")
	return nil
}

// Login verifies the signed request and returns the registered user.
func (s *Service) Login(ctx context.Context, req LoginRequest) (registry.User, error) {
	log := s.Logger.With().Str("op", "login").Str("did_fp", logging.FingerprintDID(req.DID)).Logger()

	if req.DID == "" {
		return registry.User{}, autherr.New(autherr.KindInvalidArgument, "DIDAUTH-AUTH-001", "did is required")
	}
	if err := verify.Check(req.DID, req.Signature, req.Message); err != nil {
		log.Info().Str("rule", autherr.RuleID(err)).Msg("login rejected")
		return registry.User{}, err
	}

	u, ok, err := s.Registry.FindByDID(ctx, req.DID)
	if err != nil {
		log.Error().Err(err).Msg("registry lookup failed")
		return registry.User{}, err
	}
	if !ok {
		log.Info().Msg("login rejected: not registered")
		return registry.User{}, autherr.New(autherr.KindNotRegistered, "DIDAUTH-AUTH-201", "not registered")
	}
	log.Info().Msg("logged in")
	return u, nil
}
