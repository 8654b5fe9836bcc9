package hamqtt

import "net/url"

// Origin provides information about the software providing devices over MQTT to Home Assistant. Home Assistant logs it
// when an item is discovered or updated, and requires it for device-based discovery.
type Origin struct {
	// The name of the application that is the origin of the discovered MQTT item.
	Name string `json:"name"`
	// Software version of the application that supplies the discovered MQTT item.
	SoftwareVersion string `json:"sw,omitempty"`
	// Support URL of the application that supplies the discovered MQTT item.
	SupportURL *url.URL `json:"url,omitempty"`
}

// OriginFor derives an Origin from the device itself: its name, software version and origin URL.
func OriginFor(cfg Config) Origin {
	return Origin{
		Name:            cfg.Name,
		SoftwareVersion: cfg.SoftwareVersion,
		SupportURL:      cfg.OriginURL,
	}
}
