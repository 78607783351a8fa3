package httpx

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/droidstream/signal/pkg/logger"
	"golang.org/x/crypto/acme/autocert"
)

type Server struct {
	http.Server

	opts Options
	log  *logger.Logger
}

type (
	Options struct {
		Https       bool
		HttpsDomain string
		HttpsCert   string
		HttpsKey    string
		Logger      *logger.Logger
	}
	Option = func(*Options)
)

func WithLogger(log *logger.Logger) Option { return func(o *Options) { o.Logger = log } }

// WithTLS enables HTTPS. When no explicit cert/key pair is given and the
// domain is set, certificates are obtained through ACME (autocert).
func WithTLS(domain, cert, key string) Option {
	return func(o *Options) {
		o.Https = true
		o.HttpsDomain = domain
		o.HttpsCert = cert
		o.HttpsKey = key
	}
}

func NewServer(address string, handler func(*Server) http.Handler, options ...Option) *Server {
	opts := Options{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	server := &Server{
		Server: http.Server{
			Addr:        address,
			IdleTimeout: 120 * time.Second,
			ReadTimeout: 60 * time.Second,
		},
		opts: opts,
		log:  opts.Logger,
	}
	server.Handler = handler(server)

	if opts.Https && opts.HttpsCert == "" && opts.HttpsDomain != "" {
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(opts.HttpsDomain),
			Cache:      autocert.DirCache("certs"),
		}
		server.TLSConfig = &tls.Config{GetCertificate: manager.GetCertificate}
	}
	return server
}

func (s *Server) Run() { go s.run() }

func (s *Server) run() {
	s.log.Info().Msgf("Starting %s server on %s", s.protocol(), s.Addr)
	var err error
	if s.opts.Https {
		err = s.ListenAndServeTLS(s.opts.HttpsCert, s.opts.HttpsKey)
	} else {
		err = s.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		s.log.Error().Err(err).Msgf("%s server stopped", s.protocol())
	}
}

func (s *Server) Shutdown(ctx context.Context) error { return s.Server.Shutdown(ctx) }

func (s *Server) protocol() string {
	if s.opts.Https {
		return "https"
	}
	return "http"
}

func (s *Server) String() string { return s.protocol() + "::" + s.Addr }
