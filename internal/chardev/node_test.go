package chardev

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// echoHandlers accepts writes of 'y', rejects 'n' and fails on 'x'.
type echoHandlers struct {
	mu       sync.Mutex
	opens    int
	releases int
	writes   [][]byte
	openErr  error
}

func (h *echoHandlers) Open(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.openErr != nil {
		return h.openErr
	}
	h.opens++
	s.SetContext(h)
	return nil
}

func (h *echoHandlers) Write(s *Session, p []byte) (int, error) {
	if s.Context() != h {
		return 0, errors.New("session context not attached")
	}
	h.mu.Lock()
	h.writes = append(h.writes, append([]byte(nil), p...))
	h.mu.Unlock()

	switch p[0] {
	case 'y':
		return 1, nil
	case 'n':
		return 0, fmt.Errorf("rejected: %w", ErrInvalidArgument)
	default:
		return 0, errors.New("boom")
	}
}

func (h *echoHandlers) Release(s *Session) {
	s.SetContext(nil)
	h.mu.Lock()
	h.releases++
	h.mu.Unlock()
}

func (h *echoHandlers) counts() (opens, releases, writes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opens, h.releases, len(h.writes)
}

// publishTest registers h and publishes it in a temp dir.
func publishTest(t *testing.T, h Handlers) (*Registrar, *Interface, *Node) {
	t.Helper()

	reg := NewRegistrar()
	iface, err := reg.Register(Identity{Major: 254}, h)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	node, err := NewPublisher(t.TempDir()).Publish(iface, "led")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	t.Cleanup(func() { node.Unpublish() }) //nolint:errcheck // test cleanup
	return reg, iface, node
}

func dialTest(t *testing.T, path string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, path)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // test cleanup
	return c
}

func TestPublish_NodeMode(t *testing.T) {
	_, _, node := publishTest(t, &echoHandlers{})

	info, err := os.Stat(node.Path())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		t.Errorf("node mode = %v, want socket", info.Mode())
	}
	if info.Mode().Perm() != NodeMode {
		t.Errorf("node perm = %v, want %v", info.Mode().Perm(), NodeMode)
	}
}

func TestPublish_Collision(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "led"), nil, 0o600); err != nil {
		t.Fatalf("creating existing file: %v", err)
	}

	iface, err := NewRegistrar().Register(Identity{Major: 254}, &echoHandlers{})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := NewPublisher(dir).Publish(iface, "led"); !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("Publish() error = %v, want ErrPublishFailed", err)
	}

	// The existing file is left alone and nothing else appears.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "led" {
		t.Errorf("dir entries = %v, want only the pre-existing led", entries)
	}
}

func TestPublish_InvalidName(t *testing.T) {
	iface, err := NewRegistrar().Register(Identity{Major: 254}, &echoHandlers{})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	for _, name := range []string{"", "a/b", "..", "."} {
		if _, err := NewPublisher(t.TempDir()).Publish(iface, name); !errors.Is(err, ErrPublishFailed) {
			t.Errorf("Publish(%q) error = %v, want ErrPublishFailed", name, err)
		}
	}
}

func TestNode_WriteStatuses(t *testing.T) {
	h := &echoHandlers{}
	_, _, node := publishTest(t, h)
	c := dialTest(t, node.Path())

	tests := []struct {
		name    string
		data    []byte
		wantN   int
		wantErr error
	}{
		{name: "accepted", data: []byte("y"), wantN: 1},
		{name: "rejected", data: []byte("n"), wantErr: ErrInvalidArgument},
		{name: "handler failure", data: []byte("x"), wantErr: ErrInternal},
		{name: "empty", data: nil, wantErr: ErrFault},
		{name: "accepted again", data: []byte("yes"), wantN: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := c.Write(tt.data)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("Write(%q) error = %v, want %v", tt.data, err, tt.wantErr)
			}
			if n != tt.wantN {
				t.Errorf("Write(%q) = %d, want %d", tt.data, n, tt.wantN)
			}
		})
	}

	_, _, writes := h.counts()
	if writes != 4 {
		t.Errorf("handler writes = %d, want 4 (empty write never sent)", writes)
	}
}

func TestNode_SessionLifecycle(t *testing.T) {
	h := &echoHandlers{}
	_, _, node := publishTest(t, h)

	c := dialTest(t, node.Path())
	if _, err := c.Write([]byte("y")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	waitFor(t, func() bool {
		_, releases, _ := h.counts()
		return releases == 1
	})
	opens, releases, _ := h.counts()
	if opens != 1 || releases != 1 {
		t.Errorf("opens, releases = %d, %d; want 1, 1", opens, releases)
	}
}

func TestNode_UnpublishClosesSessions(t *testing.T) {
	h := &echoHandlers{}
	_, _, node := publishTest(t, h)

	clients := []*Client{dialTest(t, node.Path()), dialTest(t, node.Path())}
	for _, c := range clients {
		if _, err := c.Write([]byte("y")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if got := node.Sessions(); got != 2 {
		t.Fatalf("Sessions() = %d, want 2", got)
	}

	if err := node.Unpublish(); err != nil {
		t.Fatalf("Unpublish() error = %v", err)
	}

	// Release handlers ran before Unpublish returned.
	if _, releases, _ := h.counts(); releases != 2 {
		t.Errorf("releases after Unpublish = %d, want 2", releases)
	}
	if _, err := os.Lstat(node.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("node still present after Unpublish: %v", err)
	}
	for _, c := range clients {
		if _, err := c.Write([]byte("y")); err == nil {
			t.Error("Write() after Unpublish succeeded")
		}
	}
	if err := node.Unpublish(); err != nil {
		t.Errorf("second Unpublish() error = %v", err)
	}
}

func TestNode_OpenRefused(t *testing.T) {
	h := &echoHandlers{openErr: ErrNoDevice}
	_, _, node := publishTest(t, h)

	c := dialTest(t, node.Path())
	if _, err := c.Write([]byte("y")); err == nil {
		t.Fatal("Write() on refused session succeeded")
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
