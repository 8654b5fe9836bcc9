package hass

// Command is a payload Home Assistant writes to an entity's command topic.
type Command string

// PressPayload is what Home Assistant sends to a button's command topic when it is pressed. Matching is case-sensitive.
const PressPayload Command = "PRESS"

// Matches reports whether payload is exactly this command.
func (c Command) Matches(payload []byte) bool {
	return string(payload) == string(c)
}
