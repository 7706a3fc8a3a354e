package hwdesc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gpioled/internal/gpio"
)

// Description is the YAML hardware description format.
//
//	nodes:
//	  - path: /gpioled
//	    compatible: gpioled
//	    properties:
//	      led-gpios: [17]
//
// Property values are pin identifiers; the entry index selects one.
type Description struct {
	Nodes []NodeDescription `yaml:"nodes"`
}

// NodeDescription describes one node.
type NodeDescription struct {
	Path       string           `yaml:"path"`
	Compatible string           `yaml:"compatible,omitempty"`
	Properties map[string][]int `yaml:"properties"`
}

// File resolves nodes from a parsed Description.
//
// Thread Safety: immutable after construction, safe for concurrent use.
type File struct {
	nodes map[string]*fileNode
}

// fileNode is a node of a File.
type fileNode struct {
	file *File
	desc NodeDescription
}

func (n *fileNode) Path() string { return n.desc.Path }

// LoadFile reads and parses a YAML hardware description.
//
// Parameters:
//   - path: Path to the description file
//
// Returns:
//   - *File: Resolver over the description
//   - error: If the file cannot be read, parsed or contains duplicate nodes
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("%w: reading hardware description %s: %w", ErrConfiguration, path, err)
	}
	return ParseFile(data)
}

// ParseFile parses a YAML hardware description.
func ParseFile(data []byte) (*File, error) {
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("%w: parsing hardware description: %w", ErrConfiguration, err)
	}
	return NewFile(desc)
}

// NewFile builds a resolver from an in-memory Description.
func NewFile(desc Description) (*File, error) {
	f := &File{nodes: make(map[string]*fileNode, len(desc.Nodes))}
	for i, nd := range desc.Nodes {
		key, ok := canonicalPath(nd.Path)
		if !ok {
			return nil, fmt.Errorf("%w: node %d: invalid path %q", ErrConfiguration, i, nd.Path)
		}
		if _, dup := f.nodes[key]; dup {
			return nil, fmt.Errorf("%w: duplicate node %q", ErrConfiguration, key)
		}
		nd.Path = key
		f.nodes[key] = &fileNode{file: f, desc: nd}
	}
	return f, nil
}

// ResolveNode implements Resolver.
func (f *File) ResolveNode(path string) (Node, error) {
	key, ok := canonicalPath(path)
	if !ok {
		return nil, configError(ErrNodeNotFound, "invalid node path %q", path)
	}
	n, ok := f.nodes[key]
	if !ok {
		return nil, configError(ErrNodeNotFound, "%s", path)
	}
	return n, nil
}

// ResolveNamedPin implements Resolver.
func (f *File) ResolveNamedPin(node Node, property string, index int) (gpio.PinID, error) {
	n, ok := node.(*fileNode)
	if !ok || n.file != f {
		return gpio.InvalidPin, configError(ErrNodeNotFound, "node %q does not belong to this description", pathOf(node))
	}

	values, ok := n.desc.Properties[property]
	if !ok {
		return gpio.InvalidPin, configError(ErrPropertyNotFound, "%s:%s", n.desc.Path, property)
	}
	if index < 0 || index >= len(values) {
		return gpio.InvalidPin, configError(ErrPropertyNotFound, "%s:%s[%d]: only %d entries", n.desc.Path, property, index, len(values))
	}

	pin := gpio.PinID(values[index])
	if !pin.Valid() {
		return gpio.InvalidPin, configError(ErrMalformedProperty, "%s:%s[%d]: negative pin %d", n.desc.Path, property, index, values[index])
	}
	return pin, nil
}

// canonicalPath returns p with one leading slash and no trailing slash.
func canonicalPath(p string) (string, bool) {
	rel, ok := cleanPath(p)
	if !ok {
		return "", false
	}
	if rel == "." {
		return "/", true
	}
	return "/" + rel, true
}
