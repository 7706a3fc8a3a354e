// Package audit records device activity in the audit_logs table and
// queries it back for the HTTP API.
//
// Recorder subscribes to the device event bus and writes entries on its own
// goroutine so neither the write path nor the toggler waits on SQLite.
// Other callers (the API and the MQTT bridge) add entries with Record to
// attribute a command to a user or a remote request.
package audit
