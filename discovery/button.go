package discovery

// Button Constants
const (
	FieldPayloadPress = "payload_press"
)
