// Package signal implements the broker that pairs browser clients with
// emulator workers and relays their WebRTC negotiation messages.
package signal

import (
	"context"
	"net/http"

	"github.com/droidstream/signal/pkg/auth"
	"github.com/droidstream/signal/pkg/config"
	"github.com/droidstream/signal/pkg/logger"
	"github.com/droidstream/signal/pkg/monitoring"
	"github.com/droidstream/signal/pkg/network/httpx"
	"github.com/droidstream/signal/pkg/service"
	"github.com/droidstream/signal/pkg/turn"
)

// Signal bundles the hub with its HTTP server and the optional
// monitoring server into one start/stop unit.
type Signal struct {
	conf     config.Config
	log      *logger.Logger
	services service.Group
}

func New(conf config.Config, log *logger.Logger) *Signal {
	hub := NewHub(
		conf.Broker,
		auth.New(conf.Auth, log),
		turn.NewCloudflare(conf.Turn, log),
		log,
	)

	opts := []httpx.Option{httpx.WithLogger(log)}
	if conf.Server.Https {
		opts = append(opts, httpx.WithTLS(conf.Server.HttpsDomain, conf.Server.HttpsCert, conf.Server.HttpsKey))
	}
	srv := httpx.NewServer(
		conf.Server.Address,
		func(*httpx.Server) http.Handler { return hub.Handler() },
		opts...,
	)

	s := &Signal{conf: conf, log: log}
	s.services.Add(hub, srv)
	if conf.Monitoring.IsEnabled() {
		s.services.Add(monitoring.New(conf.Monitoring, "sig", log))
	}
	return s
}

func (s *Signal) Start() { s.services.Start() }

func (s *Signal) Shutdown(ctx context.Context) error { return s.services.Shutdown(ctx) }
