// Package discovery contains constants and utilities for constructing Home Assistant Device Discovery MQTT Payloads.
// The constants in this package use the long-form field names, which Home Assistant accepts alongside the
// abbreviations.
//
// See https://www.home-assistant.io/integrations/mqtt/#device-discovery-payload for the payload layout.
package discovery
