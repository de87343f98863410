// Package httpapi is the HTTP boundary of the auth service.
//
// Routes:
//
//	POST /users/register  {name, did, message, sign} -> 200 "ok" | 400 reason
//	POST /users/login     {did, message, sign}       -> 200 {"user":{did,name}} | 400 reason
//	GET  /welcome-message                             -> 200 WelcomeMessage
//	GET  /healthz                                     -> 200 "ok"
//	GET  /metrics                                     -> Prometheus exposition
//	GET  /                                            -> static files from PublicDir, if set
//
// Static files are served with permissive CORS headers so that browser
// clients on other origins can load the client scripts.
//
// Rejections carry the rule identifier in the X-Didauth-Rule header. Errors
// that are not structured rejections are answered with a fixed 500 body.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"xdao.co/didauth/auth"
	"xdao.co/didauth/internal/logging"
	"xdao.co/didauth/model"
)

const (
	HeaderRule      = "X-Didauth-Rule"
	HeaderRequestID = "X-Request-Id"

	defaultMaxBodyBytes   = 64 << 10
	defaultRequestTimeout = 10 * time.Second
	defaultWelcome        = "Welcome to didauth!"
)

type Options struct {
	Auth    *auth.Service
	Logger  zerolog.Logger
	Metrics *Metrics

	// PublicDir, when set, is served at "/".
	PublicDir      string
	WelcomeMessage string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

type server struct {
	opts Options
}

// NewHandler returns the routed handler for opts.
func NewHandler(opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.WelcomeMessage == "" {
		opts.WelcomeMessage = defaultWelcome
	}
	s := &server{opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/register", s.handleRegister)
	mux.HandleFunc("POST /users/login", s.handleLogin)
	mux.HandleFunc("GET /welcome-message", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, opts.WelcomeMessage)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.handler())
	}
	if opts.PublicDir != "" {
		mux.Handle("GET /", withCORS(http.FileServer(http.Dir(opts.PublicDir))))
	}
	return s.withRequestContext(mux)
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req model.RegisterRequest
	if !s.decode(w, r, "register", start, &req) {
		return
	}
	err := s.opts.Auth.Register(r.Context(), auth.RegisterRequest{
		DID:       req.DID,
		Name:      req.Name,
		Message:   req.Message,
		Signature: req.Sign,
	})
	if err != nil {
		s.fail(w, r, "register", start, err)
		return
	}
	s.opts.Metrics.observe("register", "ok", start)
	writeText(w, http.StatusOK, "ok")
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req model.LoginRequest
	if !s.decode(w, r, "login", start, &req) {
		return
	}
	u, err := s.opts.Auth.Login(r.Context(), auth.LoginRequest{
		DID:       req.DID,
		Message:   req.Message,
		Signature: req.Sign,
	})
	if err != nil {
		s.fail(w, r, "login", start, err)
		return
	}
	s.opts.Metrics.observe("login", "ok", start)
	writeJSON(w, http.StatusOK, model.LoginResponse{User: model.User{DID: u.DID, Name: u.Name}})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, op string, start time.Time, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		s.opts.Metrics.observe(op, "bad_request", start)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeText(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, op string, start time.Time, err error) {
	ce := model.FromError(err)
	if ce.Code == model.ErrInternal {
		s.opts.Metrics.observe(op, "error", start)
		zerolog.Ctx(r.Context()).Error().Err(err).Str("op", op).Msg("request failed")
		writeText(w, http.StatusInternalServerError, ce.Message)
		return
	}
	s.opts.Metrics.observe(op, "rejected", start)
	if ce.Rule != "" {
		w.Header().Set(HeaderRule, ce.Rule)
	}
	writeText(w, http.StatusBadRequest, ce.Message)
}

// withRequestContext assigns a request ID, bounds the request with the
// configured timeout, attaches a request-scoped logger and writes one access
// log line per request.
func (s *server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		logger := s.opts.Logger.With().Str("request_id", id).Logger()
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
		defer cancel()
		ctx = logger.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info().
			Str("method", r.Method).
			Str("path", logging.Redact(r.URL.Path)).
			Int("status", rec.status).
			Str("rule", rec.Header().Get(HeaderRule)).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Range")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
