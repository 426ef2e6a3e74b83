package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/zcnbind/internal/config"
	"github.com/danmuck/zcnbind/internal/host"
	"github.com/danmuck/zcnbind/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "cmd/bindhost/config.toml", "host config path")
	flag.Parse()

	logging.ConfigureRuntime()
	cfg, err := config.LoadHostConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load host config")
	}
	log.Info().Str("path", *configPath).Msg("loaded host config")

	svc, err := host.NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bindhost: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "bindhost: %v\n", err)
		os.Exit(1)
	}
}
