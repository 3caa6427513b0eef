package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Switchboard event hierarchy.
//
// All topics follow the scheme: switchboard/{category}/{id}/{aspect}
const (
	// TopicPrefix is the base for all Switchboard topics.
	TopicPrefix = "switchboard"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "switchboard/system"
)

// Topics provides builders for Switchboard MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("hall_light")
//	// Returns: "switchboard/device/hall_light/state"
type Topics struct{}

// DeviceState returns the topic for device state events.
//
// Example: switchboard/device/hall_light/state
func (Topics) DeviceState(name string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, name)
}

// HostStatus returns the topic for host connectivity events.
//
// The host identifier should come from HostID, which strips characters
// that are not valid in topic segments.
//
// Example: switchboard/host/lights.local-8080/status
func (Topics) HostStatus(hostID string) string {
	return fmt.Sprintf("%s/host/%s/status", TopicPrefix, hostID)
}

// SystemStatus returns the hub's own status topic, used for the online
// announcement and the Last Will and Testament.
//
// Example: switchboard/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching all device state events.
//
// Pattern: switchboard/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", TopicPrefix)
}

// AllHostStatuses returns a pattern matching all host status events.
//
// Pattern: switchboard/host/+/status
func (Topics) AllHostStatuses() string {
	return fmt.Sprintf("%s/host/+/status", TopicPrefix)
}

// AllTopics returns a pattern matching all Switchboard topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: switchboard/#
func (Topics) AllTopics() string {
	return "switchboard/#"
}

// HostID converts a host URL into a stable topic segment.
//
// The scheme prefix is stripped and the characters '/' and ':' are
// replaced with '-', since both delimit MQTT topic levels or are
// otherwise awkward in topic names.
//
// Example: "http://lights.local:8080" becomes "lights.local-8080"
func HostID(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+len("://"):]
	}
	url = strings.TrimSuffix(url, "/")
	replacer := strings.NewReplacer("/", "-", ":", "-")
	return replacer.Replace(url)
}
