package hwdesc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path"
	"sync"

	"github.com/nerrad567/gpioled/internal/gpio"
)

// DefaultDeviceTreeRoot is where Linux exposes the live device tree.
const DefaultDeviceTreeRoot = "/proc/device-tree"

// defaultGPIOCells is assumed when the controller cannot be found or does
// not declare #gpio-cells: one offset cell and one flags cell.
const defaultGPIOCells = 2

// cellSize is the width of one device tree cell in bytes.
const cellSize = 4

// DeviceTree resolves nodes in a device tree laid out as a filesystem.
//
// Thread Safety: safe for concurrent use.
type DeviceTree struct {
	fsys fs.FS

	once     sync.Once
	phandles map[uint32]string
}

// NewDeviceTree creates a resolver over fsys, which must be rooted at the
// device tree root (for example os.DirFS("/proc/device-tree")).
func NewDeviceTree(fsys fs.FS) *DeviceTree {
	return &DeviceTree{fsys: fsys}
}

// dtNode is a node of a DeviceTree.
type dtNode struct {
	tree *DeviceTree
	path string
	dir  string
}

func (n *dtNode) Path() string { return n.path }

// ResolveNode implements Resolver.
func (d *DeviceTree) ResolveNode(p string) (Node, error) {
	dir, ok := cleanPath(p)
	if !ok {
		return nil, configError(ErrNodeNotFound, "invalid node path %q", p)
	}

	info, err := fs.Stat(d.fsys, dir)
	if err != nil || !info.IsDir() {
		return nil, configError(ErrNodeNotFound, "%s", p)
	}
	return &dtNode{tree: d, path: p, dir: dir}, nil
}

// ResolveNamedPin implements Resolver.
//
// The property is a list of GPIO specifiers, each a controller phandle
// followed by #gpio-cells argument cells of which the first is the line
// offset. A zero phandle marks an empty entry one cell wide.
func (d *DeviceTree) ResolveNamedPin(node Node, property string, index int) (gpio.PinID, error) {
	n, ok := node.(*dtNode)
	if !ok || n.tree != d {
		return gpio.InvalidPin, configError(ErrNodeNotFound, "node %q does not belong to this device tree", pathOf(node))
	}
	if index < 0 {
		return gpio.InvalidPin, configError(ErrPropertyNotFound, "%s:%s[%d]", n.path, property, index)
	}

	cells, err := d.readCells(path.Join(n.dir, property))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return gpio.InvalidPin, configError(ErrPropertyNotFound, "%s:%s", n.path, property)
		}
		return gpio.InvalidPin, configError(ErrMalformedProperty, "%s:%s: %v", n.path, property, err)
	}

	entry := 0
	for i := 0; i < len(cells); entry++ {
		phandle := cells[i]
		if phandle == 0 {
			if entry == index {
				return gpio.InvalidPin, configError(ErrPropertyNotFound, "%s:%s[%d] is empty", n.path, property, index)
			}
			i++
			continue
		}

		width := d.gpioCells(phandle)
		if width < 1 || i+1+width > len(cells) {
			return gpio.InvalidPin, configError(ErrMalformedProperty,
				"%s:%s: entry %d needs %d cells, %d left", n.path, property, entry, width+1, len(cells)-i)
		}
		if entry == index {
			offset := cells[i+1]
			if offset > math.MaxInt32 {
				return gpio.InvalidPin, configError(ErrMalformedProperty, "%s:%s[%d]: offset %d out of range", n.path, property, index, offset)
			}
			return gpio.PinID(offset), nil
		}
		i += 1 + width
	}

	return gpio.InvalidPin, configError(ErrPropertyNotFound, "%s:%s[%d]: only %d entries", n.path, property, index, entry)
}

// readCells reads a property file as big-endian 32-bit cells.
func (d *DeviceTree) readCells(name string) ([]uint32, error) {
	data, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data)%cellSize != 0 {
		return nil, fmt.Errorf("length %d is not a whole number of cells", len(data))
	}

	cells := make([]uint32, len(data)/cellSize)
	for i := range cells {
		cells[i] = binary.BigEndian.Uint32(data[i*cellSize:])
	}
	return cells, nil
}

// gpioCells returns the #gpio-cells of the controller with the given
// phandle, or defaultGPIOCells when it cannot be determined.
func (d *DeviceTree) gpioCells(phandle uint32) int {
	d.once.Do(d.indexPhandles)

	dir, ok := d.phandles[phandle]
	if !ok {
		return defaultGPIOCells
	}
	cells, err := d.readCells(path.Join(dir, "#gpio-cells"))
	if err != nil || len(cells) != 1 || cells[0] > math.MaxInt32 {
		return defaultGPIOCells
	}
	return int(cells[0])
}

// indexPhandles walks the tree once and records the directory of every node
// carrying a phandle property.
func (d *DeviceTree) indexPhandles() {
	d.phandles = make(map[uint32]string)
	//nolint:errcheck // the callback swallows every error
	fs.WalkDir(d.fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped rather than failing the lookup.
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		switch entry.Name() {
		case "phandle", "linux,phandle":
		default:
			return nil
		}
		cells, readErr := d.readCells(p)
		if readErr != nil || len(cells) != 1 {
			return nil
		}
		if _, seen := d.phandles[cells[0]]; !seen {
			d.phandles[cells[0]] = path.Dir(p)
		}
		return nil
	})
}

// pathOf returns node's path, tolerating nil.
func pathOf(node Node) string {
	if node == nil {
		return "<nil>"
	}
	return node.Path()
}
