package discovery

// Constants for configuring how Home Assistant interacts with MQTT values specified in device discovery payloads.
const (
	FieldQoS              = "qos"
	FieldQualityOfService = FieldQoS
)
