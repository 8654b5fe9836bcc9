package main

import (
	"crypto/tls"
	"log/slog"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nlowe/hamqtt/internal/config"
	hamqttlog "github.com/nlowe/hamqtt/log"
	"github.com/nlowe/hamqtt/mqtt"
	autopahoadapter "github.com/nlowe/hamqtt/mqtt/adapter/autopaho"
	pahomqttadapter "github.com/nlowe/hamqtt/mqtt/adapter/pahomqtt"
)

func transportFor(name string) mqtt.Transport {
	log := hamqttlog.ForComponent("mqtt")

	if name == config.TransportPahoMQTT {
		return &pahomqttadapter.Transport{
			Configure: func(o *pahomqtt.ClientOptions) {
				o.SetConnectionAttemptHandler(func(broker *url.URL, tlsCfg *tls.Config) *tls.Config {
					log.With(slog.String("broker", broker.Redacted())).Debug("Attempting mqtt connection")
					return tlsCfg
				})
			},
		}
	}

	return &autopahoadapter.Transport{
		Base: autopaho.ClientConfig{
			// SessionExpiryInterval - Seconds that a session will survive after disconnection. Subscriptions and
			// queued QoS 1 messages are kept by the broker for that long.
			SessionExpiryInterval: 60,

			ClientConfig: paho.ClientConfig{
				OnServerDisconnect: func(d *paho.Disconnect) {
					if d.Properties == nil {
						return
					}

					log.With(
						slog.Group(
							"properties",
							slog.String("reference", d.Properties.ServerReference),
							slog.String("reason", d.Properties.ReasonString),
							slog.Any("user", d.Properties.User),
						),
					).Warn("Server sent disconnect properties")
				},
			},
		},
	}
}
