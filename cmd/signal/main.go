package main

import (
	"context"

	"github.com/droidstream/signal/pkg/config"
	"github.com/droidstream/signal/pkg/logger"
	"github.com/droidstream/signal/pkg/os"
	"github.com/droidstream/signal/pkg/signal"
)

var Version = "?"

func main() {
	conf, err := config.NewConfig()
	if err != nil {
		panic(err)
	}
	conf.ParseFlags()

	log := logger.NewConsole(conf.Broker.Debug, "sig", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	s := signal.New(conf, log)
	s.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := s.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
