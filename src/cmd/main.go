package main

import (
	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/logger"
	"loadhub-core-svc/src/internal/server"

	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

func main() {
	cfg := config.Load()
	logger.Init(cfg)

	log.Infof("Application %s is starting....", cfg.App.Name)

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		log.WithError(err).Fatalf("Error running server: %v", err)
	}
}
