package api

import (
	"context"
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gpioled/internal/auth"
)

const (
	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// maxTicketsPerSubject bounds the unused tickets one subject may hold.
	maxTicketsPerSubject = 8
)

// ticket is one pending WebSocket authentication. It carries the identity
// of the caller that requested it onto the connection.
type ticket struct {
	subject   string
	role      auth.Role
	expiresAt time.Time
}

// ticketStore holds single-use WebSocket tickets, so the JWT never appears
// in a URL.
type ticketStore struct {
	clock clock.Clock

	mu      sync.Mutex
	pending map[string]ticket
}

func newTicketStore(clk clock.Clock) *ticketStore {
	return &ticketStore{clock: clk, pending: make(map[string]ticket)}
}

// issue mints a ticket for subject. ok is false when the subject already
// holds maxTicketsPerSubject unexpired tickets.
func (ts *ticketStore) issue(subject string, role auth.Role) (id string, ok bool) {
	now := ts.clock.Now()

	ts.mu.Lock()
	defer ts.mu.Unlock()
	held := 0
	for _, t := range ts.pending {
		if t.subject == subject && now.Before(t.expiresAt) {
			held++
		}
	}
	if held >= maxTicketsPerSubject {
		return "", false
	}

	id = rand.Text()
	ts.pending[id] = ticket{subject: subject, role: role, expiresAt: now.Add(ticketTTL)}
	return id, true
}

// consume removes id and returns its ticket if it had not expired.
func (ts *ticketStore) consume(id string) (ticket, bool) {
	now := ts.clock.Now()

	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.pending[id]
	if !ok {
		return ticket{}, false
	}
	delete(ts.pending, id)
	return t, now.Before(t.expiresAt)
}

// sweep drops expired tickets and returns how many remain.
func (ts *ticketStore) sweep() int {
	now := ts.clock.Now()

	ts.mu.Lock()
	defer ts.mu.Unlock()
	for id, t := range ts.pending {
		if !now.Before(t.expiresAt) {
			delete(ts.pending, id)
		}
	}
	return len(ts.pending)
}

// sweepLoop runs sweep every ticketTTL until ctx is cancelled.
func (ts *ticketStore) sweepLoop(ctx context.Context) {
	ticker := ts.clock.Ticker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.sweep()
		}
	}
}

// handleWSTicket issues a single-use ticket for the WebSocket endpoint.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, r, "authentication required")
		return
	}

	id, ok := s.tickets.issue(claims.Subject, claims.Role)
	if !ok {
		writeError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "too many unused WebSocket tickets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     id,
		"expires_in": int(ticketTTL.Seconds()),
	})
}
