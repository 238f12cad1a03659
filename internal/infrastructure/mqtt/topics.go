package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the lab core MQTT namespace.
//
// All parameter topics use the flat scheme:
// labcore/{category}/{instrument}/{parameter}. Instrument segments may be
// dotted paths ("psu.ch2") since instrument names never contain '/'.
const (
	// TopicPrefix is the base for all lab core topics.
	TopicPrefix = "labcore"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "labcore/system"
)

// Topics provides builders for lab core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.ParameterState("psu.ch2", "voltage")
//	// Returns: "labcore/state/psu.ch2/voltage"
type Topics struct{}

// ParameterState returns the topic for parameter state updates.
// State messages are published retained so late subscribers see the
// latest value immediately.
//
// Example: labcore/state/psu.ch2/voltage
func (Topics) ParameterState(instrument, parameter string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, instrument, parameter)
}

// ParameterCommand returns the topic external clients publish to in order
// to set a parameter.
//
// Example: labcore/command/psu.ch2/voltage/set
func (Topics) ParameterCommand(instrument, parameter string) string {
	return fmt.Sprintf("%s/command/%s/%s/set", TopicPrefix, instrument, parameter)
}

// SnapshotCaptured returns the topic announcing a stored snapshot.
//
// Example: labcore/snapshot/psu
func (Topics) SnapshotCaptured(instrument string) string {
	return fmt.Sprintf("%s/snapshot/%s", TopicPrefix, instrument)
}

// SystemStatus returns the system status topic.
//
// Example: labcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllParameterStates returns a pattern matching all parameter state updates.
//
// Pattern: labcore/state/+/+
func (Topics) AllParameterStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllParameterCommands returns a pattern matching all set commands.
//
// Pattern: labcore/command/+/+/set
func (Topics) AllParameterCommands() string {
	return fmt.Sprintf("%s/command/+/+/set", TopicPrefix)
}

// AllTopics returns a pattern matching all lab core topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: labcore/#
func (Topics) AllTopics() string {
	return "labcore/#"
}

// ParseCommandTopic extracts the instrument path and parameter name from a
// command topic. Returns ok=false for topics that are not well-formed set
// commands.
//
//	"labcore/command/psu.ch2/voltage/set" -> ("psu.ch2", "voltage", true)
func ParseCommandTopic(topic string) (instrument, parameter string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 {
		return "", "", false
	}
	if parts[0] != TopicPrefix || parts[1] != "command" || parts[4] != "set" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
