package hwdesc

import (
	"strings"

	"github.com/nerrad567/gpioled/internal/gpio"
)

// Resolver maps symbolic hardware description paths to pins.
type Resolver interface {
	// ResolveNode looks up the node at an absolute path such as "/gpioled".
	ResolveNode(path string) (Node, error)

	// ResolveNamedPin returns the pin referenced by entry index of the named
	// property on node.
	ResolveNamedPin(node Node, property string, index int) (gpio.PinID, error)
}

// Node is a read-only reference to a description node.
type Node interface {
	// Path returns the absolute path the node was resolved from.
	Path() string
}

// cleanPath validates an absolute node path and returns it without the
// leading slash. The root node maps to ".".
func cleanPath(p string) (string, bool) {
	if !strings.HasPrefix(p, "/") {
		return "", false
	}
	rel := strings.Trim(p, "/")
	if rel == "" {
		return ".", true
	}
	for _, part := range strings.Split(rel, "/") {
		if part == "" || part == "." || part == ".." {
			return "", false
		}
	}
	return rel, true
}
