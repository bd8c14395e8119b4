// Package confirm implements short-lived, single-use confirmations for
// destructive commands.
package confirm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Token is the reply that confirms a pending request.
const Token = "yes"

var (
	// ErrTimeout is returned by Wait when no confirmation arrived in time.
	ErrTimeout = errors.New("confirmation timed out")
	// ErrAlreadyPending is returned by Begin while the same actor already
	// has an unresolved confirmation in the same channel.
	ErrAlreadyPending = errors.New("confirmation already pending")
)

type key struct {
	actorID   string
	channelID string
}

// Pending is one outstanding confirmation.
type Pending struct {
	ID        string
	ActorID   string
	ChannelID string
	ExpiresAt time.Time

	registry  *Registry
	confirmed chan struct{}
	once      sync.Once
}

// Registry tracks outstanding confirmations by actor and channel.
type Registry struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[key]*Pending
}

// NewRegistry creates a Registry whose confirmations expire after timeout.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		timeout: timeout,
		pending: make(map[key]*Pending),
	}
}

// Timeout is the wait window of new confirmations.
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

// Begin opens a confirmation for actorID in channelID.
func (r *Registry) Begin(actorID, channelID string) (*Pending, error) {
	k := key{actorID: actorID, channelID: channelID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[k]; ok {
		return nil, ErrAlreadyPending
	}
	p := &Pending{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		ChannelID: channelID,
		ExpiresAt: time.Now().Add(r.timeout),
		registry:  r,
		confirmed: make(chan struct{}),
	}
	r.pending[k] = p
	return p, nil
}

// Offer hands a chat message to the registry. It reports whether the message
// was consumed as a confirmation. Messages from other actors, other channels
// or with any content other than Token are left alone.
func (r *Registry) Offer(actorID, channelID, content string) bool {
	if strings.ToLower(strings.TrimSpace(content)) != Token {
		return false
	}
	k := key{actorID: actorID, channelID: channelID}

	r.mu.Lock()
	p, ok := r.pending[k]
	if ok {
		delete(r.pending, k)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	p.once.Do(func() { close(p.confirmed) })
	return true
}

// Len returns the number of outstanding confirmations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// release frees the slot held by p. It reports false when Offer already took it.
func (r *Registry) release(p *Pending) bool {
	k := key{actorID: p.ActorID, channelID: p.ChannelID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[k] != p {
		return false
	}
	delete(r.pending, k)
	return true
}

// Wait blocks until the confirmation is given, the window elapses or ctx is
// done. It returns nil only when confirmed. The registry slot is always freed.
func (p *Pending) Wait(ctx context.Context) error {
	timer := time.NewTimer(time.Until(p.ExpiresAt))
	defer timer.Stop()

	select {
	case <-p.confirmed:
		return nil
	case <-timer.C:
		// Offer may have taken the slot just before the timer fired.
		if !p.registry.release(p) {
			return nil
		}
		return ErrTimeout
	case <-ctx.Done():
		if !p.registry.release(p) {
			return nil
		}
		return ctx.Err()
	}
}
