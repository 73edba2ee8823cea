package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "ssc"

// Topics builds the monitor's MQTT topic names under a common prefix.
//
//	topics := mqtt.NewTopics("ssc")
//	topics.State("R1")     // "ssc/state/R1"
//	topics.SystemStatus()  // "ssc/system/status"
type Topics struct {
	prefix string
}

// NewTopics returns a Topics rooted at prefix. Surrounding slashes are
// trimmed and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string {
	return t.prefix
}

// State returns the retained snapshot topic for one receiver.
func (t Topics) State(receiverKey string) string {
	return t.prefix + "/state/" + receiverKey
}

// SystemStatus returns the online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// AllStates returns a wildcard matching every receiver state topic.
func (t Topics) AllStates() string {
	return t.prefix + "/state/+"
}
