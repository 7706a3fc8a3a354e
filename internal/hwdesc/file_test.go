package hwdesc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gpioled/internal/gpio"
)

const testDescription = `
nodes:
  - path: /gpioled
    compatible: gpioled
    properties:
      led-gpios: [17, 27]
      bad-gpios: [-3]
  - path: /other/
    properties: {}
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte(testDescription), 0o600); err != nil {
		t.Fatalf("writing description: %v", err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	node, err := f.ResolveNode("/gpioled")
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}
	pin, err := f.ResolveNamedPin(node, "led-gpios", 1)
	if err != nil {
		t.Fatalf("ResolveNamedPin() error = %v", err)
	}
	if pin != 27 {
		t.Errorf("ResolveNamedPin() = %d, want 27", pin)
	}

	if _, err := f.ResolveNode("/other"); err != nil {
		t.Errorf("ResolveNode(/other) error = %v", err)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{name: "missing file", missing: true},
		{name: "invalid yaml", content: "nodes: [\n"},
		{name: "duplicate node", content: "nodes:\n  - path: /a\n  - path: /a/\n"},
		{name: "relative path", content: "nodes:\n  - path: a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if !tt.missing {
				if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
					t.Fatalf("writing description: %v", err)
				}
			}
			if _, err := LoadFile(path); !errors.Is(err, ErrConfiguration) {
				t.Errorf("LoadFile() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestFile_ResolveNamedPin(t *testing.T) {
	f, err := ParseFile([]byte(testDescription))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	node, err := f.ResolveNode("/gpioled")
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}

	tests := []struct {
		name     string
		property string
		index    int
		want     gpio.PinID
		wantErr  error
	}{
		{name: "first", property: "led-gpios", index: 0, want: 17},
		{name: "missing property", property: "reset-gpios", wantErr: ErrPropertyNotFound},
		{name: "past end", property: "led-gpios", index: 2, wantErr: ErrPropertyNotFound},
		{name: "negative index", property: "led-gpios", index: -1, wantErr: ErrPropertyNotFound},
		{name: "negative pin", property: "bad-gpios", wantErr: ErrMalformedProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ResolveNamedPin(node, tt.property, tt.index)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrConfiguration) {
					t.Fatalf("ResolveNamedPin() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveNamedPin() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveNamedPin() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFile_ResolveNode_NotFound(t *testing.T) {
	f, err := NewFile(Description{})
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if _, err := f.ResolveNode("/gpioled"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("ResolveNode() error = %v, want ErrNodeNotFound", err)
	}
}

func TestFile_RejectsDeviceTreeNode(t *testing.T) {
	f, err := ParseFile([]byte(testDescription))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	dt := NewDeviceTree(testTree(cells(1, 17, 0)))
	node, err := dt.ResolveNode("/gpioled")
	if err != nil {
		t.Fatalf("ResolveNode() error = %v", err)
	}

	var _ Resolver = f
	if _, err := f.ResolveNamedPin(node, "led-gpios", 0); !errors.Is(err, ErrConfiguration) {
		t.Errorf("ResolveNamedPin() error = %v, want ErrConfiguration", err)
	}
}
