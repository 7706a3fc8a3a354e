// Package mqttctl bridges the LED device to an MQTT broker.
//
// State is published retained on gpioled/state/{device} whenever the level
// changes or the device loads or unloads. JSON commands on
// gpioled/command/{device} are executed through a regular interface
// session and answered on gpioled/ack/{device}:
//
//	gpioled/command/led  {"id":"c1","command":"on"}
//	gpioled/ack/led      {"command_id":"c1","status":"accepted",...}
package mqttctl
