// Package chardev provides device identities, interface registration and the
// user-visible node through which an interface is driven.
//
// The pieces mirror the character-device lifecycle:
//   - Allocator reserves a (major, minor) Identity
//   - Registrar binds Handlers to that identity, yielding an Interface
//   - Publisher exposes the Interface as a Node, a unixpacket socket
//
// Teardown is the reverse: Node.Unpublish, Registrar.Unregister, then
// Allocator.Release.
//
// # Wire Protocol
//
// Each connection to a node is one Session. Each packet a client sends is
// one write invocation, answered by the node with a single Status byte.
// Dial returns a Client speaking this protocol.
//
// Thread Safety: all exported types are safe for concurrent use.
package chardev
