package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sensebox/ttn-osem-integration/internal/api"
	"github.com/sensebox/ttn-osem-integration/internal/backend"
	"github.com/sensebox/ttn-osem-integration/internal/backend/amqp"
	"github.com/sensebox/ttn-osem-integration/internal/backend/gcppubsub"
	"github.com/sensebox/ttn-osem-integration/internal/backend/mqtt"
	"github.com/sensebox/ttn-osem-integration/internal/config"
	"github.com/sensebox/ttn-osem-integration/internal/monitoring"
	"github.com/sensebox/ttn-osem-integration/internal/storage"
	"github.com/sensebox/ttn-osem-integration/internal/uplink"
)

func run(cmd *cobra.Command, args []string) error {
	var server *uplink.Server

	tasks := []func() error{
		setLogLevel,
		setSyslog,
		printStartMessage,
		setupStorage,
		setupMonitoring,
		startUplinkServer(&server),
		setupAPI,
	}

	for _, t := range tasks {
		if err := t(); err != nil {
			log.Fatal(err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	exitChan := make(chan struct{})
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	log.WithField("signal", <-sigChan).Info("signal received")
	go func() {
		log.Warning("stopping ttn-osem-integration")
		if server != nil {
			if err := server.Stop(); err != nil {
				log.Fatal(err)
			}
		}
		exitChan <- struct{}{}
	}()
	select {
	case <-exitChan:
	case s := <-sigChan:
		log.WithField("signal", s).Info("signal received, stopping immediately")
	}

	return nil
}

func setLogLevel() error {
	log.SetLevel(log.Level(uint8(config.C.General.LogLevel)))
	return nil
}

func printStartMessage() error {
	log.WithFields(log.Fields{
		"version": version,
		"backend": config.C.Integration.Backend.Type,
		"api":     config.C.Integration.API.Bind,
	}).Info("starting ttn-osem-integration")
	return nil
}

func setupStorage() error {
	if err := storage.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup storage error")
	}
	return nil
}

func setupMonitoring() error {
	if err := monitoring.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup monitoring error")
	}
	return nil
}

func newUplinkBackend(c config.Config) (backend.Uplink, error) {
	switch c.Integration.Backend.Type {
	case "", "none":
		return nil, nil
	case "mqtt":
		return mqtt.NewBackend(c)
	case "amqp":
		return amqp.NewBackend(c)
	case "gcp_pub_sub":
		return gcppubsub.NewBackend(c)
	default:
		return nil, fmt.Errorf("unexpected uplink backend type: %s", c.Integration.Backend.Type)
	}
}

func startUplinkServer(server **uplink.Server) func() error {
	return func() error {
		b, err := newUplinkBackend(config.C)
		if err != nil {
			return errors.Wrap(err, "uplink-backend setup failed")
		}
		if b == nil {
			log.Info("no uplink backend configured, only the http api is enabled")
			return nil
		}

		*server = uplink.NewServer(b)
		return (*server).Start()
	}
}

func setupAPI() error {
	if err := api.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup api error")
	}
	return nil
}
