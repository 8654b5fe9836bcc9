package mqtt

import "strings"

const TopicSeparator = "/"

// TrimTopic trims TopicSeparator from the start and end of the specified topic.
func TrimTopic(topic string) string {
	return strings.Trim(topic, TopicSeparator)
}

// JoinTopic joins non-empty component parts with TopicSeparator, trimming each part as it is appended. Parts that are
// empty after trimming are skipped entirely, so the result never starts or ends with TopicSeparator.
func JoinTopic(parts ...string) string {
	var result strings.Builder

	for _, part := range parts {
		part = TrimTopic(part)
		if part == "" {
			continue
		}

		if result.Len() > 0 {
			result.WriteString(TopicSeparator)
		}
		result.WriteString(part)
	}

	return result.String()
}
