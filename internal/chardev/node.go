package chardev

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultNodeDir is where nodes are published unless configured otherwise.
	DefaultNodeDir = "/run/gpioled"

	// NodeMode is the permission of a published node.
	NodeMode os.FileMode = 0o660

	// maxPacket bounds a single write packet; longer packets are truncated.
	maxPacket = 4096

	// acceptRetryDelay is the pause after a failed accept.
	acceptRetryDelay = 50 * time.Millisecond
)

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher makes interfaces visible as nodes under a directory.
//
// A node is a unixpacket socket. Each connection is one session, each
// packet one write, and each write is answered with a one-byte Status.
type Publisher struct {
	dir    string
	logger Logger
}

// NewPublisher creates a publisher rooted at dir.
func NewPublisher(dir string) *Publisher {
	if dir == "" {
		dir = DefaultNodeDir
	}
	return &Publisher{dir: dir, logger: noopLogger{}}
}

// SetLogger sets the logger for the publisher and the nodes it creates.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Dir returns the directory nodes are created in.
func (p *Publisher) Dir() string {
	return p.dir
}

// Publish creates the node <dir>/<name> serving iface.
//
// An existing file at the node path is never replaced.
//
// Returns:
//   - *Node: The published node; Unpublish removes it
//   - error: ErrPublishFailed wrapping the cause
func (p *Publisher) Publish(iface *Interface, name string) (*Node, error) {
	if iface == nil {
		return nil, fmt.Errorf("%w: nil interface", ErrPublishFailed)
	}
	if name == "" || strings.ContainsRune(name, '/') || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: invalid node name %q", ErrPublishFailed, name)
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil { //nolint:gosec // node directory must be traversable by clients
		return nil, fmt.Errorf("%w: creating %s: %w", ErrPublishFailed, p.dir, err)
	}

	path := filepath.Join(p.dir, name)
	if _, err := os.Lstat(path); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", ErrPublishFailed, path)
	}

	listener, err := net.ListenUnix("unixpacket", &net.UnixAddr{Name: path, Net: "unixpacket"})
	if err != nil {
		return nil, fmt.Errorf("%w: listening on %s: %w", ErrPublishFailed, path, err)
	}
	if err := os.Chmod(path, NodeMode); err != nil {
		listener.Close() //nolint:errcheck,gosec // already failing
		return nil, fmt.Errorf("%w: chmod %s: %w", ErrPublishFailed, path, err)
	}

	n := &Node{
		iface:    iface,
		path:     path,
		listener: listener,
		logger:   p.logger,
		conns:    make(map[*net.UnixConn]struct{}),
		done:     make(chan struct{}),
	}
	go n.acceptLoop()

	p.logger.Info("node published", "path", path, "identity", iface.Identity().String())
	return n, nil
}

// Node is a published interface.
type Node struct {
	iface    *Interface
	path     string
	listener *net.UnixListener
	logger   Logger

	mu      sync.Mutex
	conns   map[*net.UnixConn]struct{}
	closing bool

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Path returns the filesystem path of the node.
func (n *Node) Path() string {
	return n.path
}

// Sessions returns the number of live sessions.
func (n *Node) Sessions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.conns)
}

// Unpublish removes the node. It stops accepting sessions, closes every
// live session and waits until all their Release handlers have returned.
// Calling Unpublish again returns the first result.
func (n *Node) Unpublish() error {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		n.closing = true
		conns := make([]*net.UnixConn, 0, len(n.conns))
		for c := range n.conns {
			conns = append(conns, c)
		}
		n.mu.Unlock()

		close(n.done)
		var errs []error
		if err := n.listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing listener: %w", err))
		}
		for _, c := range conns {
			c.Close() //nolint:errcheck,gosec // unblocks the session's read
		}
		n.wg.Wait()

		if err := os.Remove(n.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", n.path, err))
		}
		n.stopErr = errors.Join(errs...)

		n.logger.Info("node unpublished", "path", n.path)
	})
	return n.stopErr
}

// acceptLoop accepts connections until the listener is closed.
func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.AcceptUnix()
		if err != nil {
			select {
			case <-n.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			n.logger.Warn("node accept failed", "path", n.path, "error", err)
			time.Sleep(acceptRetryDelay)
			continue
		}

		n.mu.Lock()
		if n.closing {
			n.mu.Unlock()
			conn.Close() //nolint:errcheck,gosec // node is going away
			return
		}
		n.conns[conn] = struct{}{}
		n.wg.Add(1)
		n.mu.Unlock()

		go n.serve(conn)
	}
}

// serve runs one session on conn.
func (n *Node) serve(conn *net.UnixConn) {
	defer n.wg.Done()
	defer func() {
		n.mu.Lock()
		delete(n.conns, conn)
		n.mu.Unlock()
		conn.Close() //nolint:errcheck,gosec // session over
	}()

	sess, err := n.iface.Open()
	if err != nil {
		n.logger.Debug("session open refused", "path", n.path, "error", err)
		conn.Write([]byte{byte(StatusOf(err))}) //nolint:errcheck,gosec // best-effort notice before close
		return
	}
	defer sess.Close() //nolint:errcheck // Close never fails

	buf := make([]byte, maxPacket)
	for {
		size, err := conn.Read(buf)
		if err != nil {
			// io.EOF on hangup (including an empty packet) or net.ErrClosed on Unpublish.
			return
		}

		_, werr := sess.Write(buf[:size])
		status := StatusOf(werr)
		if status == StatusInternal {
			n.logger.Warn("write handler failed", "path", n.path, "error", werr)
		}
		if _, err := conn.Write([]byte{byte(status)}); err != nil {
			return
		}
	}
}
