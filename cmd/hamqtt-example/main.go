// Command hamqtt-example exposes files on the local machine to Home Assistant: a binary sensor is on while its file
// exists, and a button can remove a file.
//
//	hamqtt-example -config hamqtt.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nlowe/hamqtt"
	"github.com/nlowe/hamqtt/internal/config"
	hamqttlog "github.com/nlowe/hamqtt/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stderr, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}

		_, _ = fmt.Fprintf(os.Stderr, "hamqtt-example: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stderr io.Writer, args []string) error {
	flags := flag.NewFlagSet("hamqtt-example", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "hamqtt.yaml", "Path to the YAML configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if err = cfg.Validate(); err != nil {
		return err
	}

	hamqttlog.To(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	log := hamqttlog.ForComponent("example")

	deviceConfig, err := cfg.DeviceConfig()
	if err != nil {
		return err
	}

	opts := []hamqtt.Option{hamqtt.WithConnectTimeout(cfg.ConnectTimeout)}
	if cfg.WatchHomeAssistant {
		opts = append(opts, hamqtt.WithHomeAssistantStatus())
	}

	device := hamqtt.NewDevice(deviceConfig, transportFor(cfg.Broker.Transport), opts...)
	if err = registerEntities(device, cfg); err != nil {
		return err
	}

	log.With(slog.Any("config", deviceConfig), slog.Int("entities", len(device.Entities()))).Info("Starting Up")
	if err = device.Connect(ctx); err != nil {
		return err
	}

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		log.Info("Disconnecting from mqtt")
		if err := device.Disconnect(shutdownCtx); err != nil {
			log.With(hamqttlog.Error(err)).Error("Failed to disconnect from mqtt")
		}
	}()

	err = device.Run(ctx, cfg.TickInterval)
	log.Info("Goodbye!")
	return err
}
