package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every gpioled topic.
//
// Hierarchy:
//
//	gpioled/state/{device}     retained level snapshot
//	gpioled/command/{device}   on/off requests
//	gpioled/ack/{device}       command results
//	gpioled/system/status      retained online/offline status (also the LWT)
const TopicPrefix = "gpioled"

// Topics provides builders for gpioled MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.State("led") // "gpioled/state/led"
type Topics struct{}

// State returns the retained state topic of a device.
func (Topics) State(device string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, device)
}

// Command returns the command topic of a device.
func (Topics) Command(device string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, device)
}

// Ack returns the acknowledgement topic of a device.
func (Topics) Ack(device string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, device)
}

// SystemStatus returns the system status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllStates matches every device state topic.
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+"
}

// AllCommands matches every device command topic.
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// All matches every gpioled topic.
func (Topics) All() string {
	return TopicPrefix + "/#"
}

// DeviceFromTopic extracts the device name from a state, command or ack
// topic. ok is false for any other topic.
func DeviceFromTopic(topic string) (device string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix || parts[2] == "" {
		return "", false
	}
	switch parts[1] {
	case "state", "command", "ack":
		return parts[2], true
	}
	return "", false
}
