package discovery

// Constants for component (entity) discovery fields shared by all platforms.
const (
	FieldPlatform         = "p"
	FieldName             = "name"
	FieldUniqueID         = "unique_id"
	FieldIcon             = "icon"
	FieldDeviceClass      = "device_class"
	FieldPicture          = "entity_picture"
	FieldEnabledByDefault = "enabled_by_default"

	FieldStateTopic   = "state_topic"
	FieldCommandTopic = "command_topic"
)

// Platform names.
const (
	PlatformBinarySensor = "binary_sensor"
	PlatformButton       = "button"
)
