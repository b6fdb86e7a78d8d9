package usecase

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"docchat/internal/domain"
)

// NewSessionID returns a fresh conversation token: a ULID whose 48-bit
// timestamp prefix is followed by 80 bits of crypto/rand entropy.
func NewSessionID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// MessageIDs hands out message ids of the form "<role>-<ULID>". The entropy
// source is monotonic, so ids issued within the same millisecond still sort
// in issue order and never repeat.
type MessageIDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewMessageIDs creates a message id generator.
func NewMessageIDs() *MessageIDs {
	return &MessageIDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new id for a message authored by role at t.
func (g *MessageIDs) Next(role domain.Role, t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return string(role) + "-" + ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}
