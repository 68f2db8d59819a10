package mqtt

import "strings"

// DefaultTopicPrefix is the root of every lumen topic.
const DefaultTopicPrefix = "lumen"

// Topics builds lumen topic names under Prefix.
//
//	topics := mqtt.Topics{Prefix: "lumen"}
//	topics.BrightnessState() // "lumen/state/brightness"
//
// A zero Topics uses DefaultTopicPrefix.
type Topics struct {
	Prefix string
}

func (t Topics) join(parts ...string) string {
	prefix := strings.TrimSuffix(t.Prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + strings.Join(parts, "/")
}

// SystemStatus returns the retained online/offline topic used for the LWT.
//
// Example: lumen/system/status
func (t Topics) SystemStatus() string {
	return t.join("system", "status")
}

// BrightnessState returns the retained topic carrying the last decision.
//
// Example: lumen/state/brightness
func (t Topics) BrightnessState() string {
	return t.join("state", "brightness")
}

// OverrideEvent returns the topic on which learned overrides are announced.
//
// Example: lumen/event/override
func (t Topics) OverrideEvent() string {
	return t.join("event", "override")
}
