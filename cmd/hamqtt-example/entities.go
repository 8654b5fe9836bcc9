package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/nlowe/hamqtt"
	"github.com/nlowe/hamqtt/internal/config"
	hamqttlog "github.com/nlowe/hamqtt/log"
	"github.com/nlowe/hamqtt/platform"
)

func registerEntities(device *hamqtt.Device, cfg *config.Config) error {
	for _, s := range cfg.BinarySensors {
		sensor, err := platform.NewBinarySensor(s.Platform(), fileExists(s.Path))
		if err != nil {
			return fmt.Errorf("binary sensor %q: %w", s.Name, err)
		}

		if err = device.Register(sensor); err != nil {
			return err
		}
	}

	for _, b := range cfg.Buttons {
		button, err := platform.NewButton(b.Platform(), removeFile(b.UniqueID, b.Remove))
		if err != nil {
			return fmt.Errorf("button %q: %w", b.Name, err)
		}

		if err = device.Register(button); err != nil {
			return err
		}
	}

	return nil
}

func fileExists(path string) func() bool {
	return func() bool {
		_, err := os.Stat(path)
		return err == nil
	}
}

func removeFile(id, path string) func() {
	log := hamqttlog.ForComponent("example").With(hamqttlog.Entity(id))

	return func() {
		if path == "" {
			log.Info("Button pressed")
			return
		}

		err := os.Remove(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.With(slog.String("path", path)).Debug("Button pressed, nothing to remove")
		case err != nil:
			log.With(slog.String("path", path), hamqttlog.Error(err)).Error("Failed to remove file")
		default:
			log.With(slog.String("path", path)).Info("Removed file")
		}
	}
}
