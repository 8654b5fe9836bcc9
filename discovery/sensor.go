package discovery

// Binary Sensor Constants
const (
	FieldExpireAfter = "expire_after"
	FieldForceUpdate = "force_update"
	FieldOffDelay    = "off_delay"
)
