package discovery

import (
	"strings"

	"github.com/nlowe/hamqtt/mqtt"
)

// Constants for the top level of a device discovery payload.
const (
	FieldDevice            = "device"
	FieldOrigin            = "origin"
	FieldComponents        = "cmps"
	FieldAvailabilityTopic = "availability_topic"

	// DeviceTopic is the topic segment between the discovery prefix and the device ID.
	DeviceTopic = "device"
	// ConfigTopic is the final segment of a device discovery topic.
	ConfigTopic = "config"

	// IDSep is used as a replacement for tokens that are not allowed in an ID string.
	IDSep = "_"
)

var (
	// IDSanitizer is a strings.Replacer that sanitizes an ID for use in an MQTT Topic.
	IDSanitizer = strings.NewReplacer(
		" ", IDSep,
		":", IDSep,
		".", IDSep,
		"!", IDSep,
		"?", IDSep,
		"#", IDSep,
		"+", IDSep,
		mqtt.TopicSeparator, IDSep,
	)
)

// SanitizeID lower-cases id and replaces every token IDSanitizer knows about.
func SanitizeID(id string) string {
	return IDSanitizer.Replace(strings.ToLower(strings.TrimSpace(id)))
}

// ConfigTopicFor returns the topic the discovery payload for deviceID is published to.
func ConfigTopicFor(prefix, deviceID string) string {
	return mqtt.JoinTopic(prefix, DeviceTopic, deviceID, ConfigTopic)
}
