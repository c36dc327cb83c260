// Package models defines the dashboard entities mirrored between the local
// store and the remote store, and the ID type that distinguishes provisional
// from server-assigned identities.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Kind tells which id space an ID belongs to.
type Kind int

const (
	KindNone Kind = iota
	KindProvisional
	KindConfirmed
)

func (k Kind) String() string {
	switch k {
	case KindProvisional:
		return "provisional"
	case KindConfirmed:
		return "confirmed"
	default:
		return "none"
	}
}

const provisionalPrefix = "temp_"

// ID is either Provisional(localSeq), minted locally for a record the remote
// store has not acknowledged yet, or Confirmed(serverID). The zero value is
// unset.
type ID struct {
	seq    int64
	server string
}

func Provisional(seq int64) ID {
	return ID{seq: seq}
}

func Confirmed(serverID string) ID {
	return ID{server: serverID}
}

// ParseID decodes the text form produced by String.
func ParseID(s string) ID {
	if s == "" {
		return ID{}
	}
	if rest, ok := strings.CutPrefix(s, provisionalPrefix); ok {
		if seq, err := strconv.ParseInt(rest, 10, 64); err == nil && seq > 0 {
			return Provisional(seq)
		}
	}
	return Confirmed(s)
}

func (id ID) Kind() Kind {
	switch {
	case id.server != "":
		return KindConfirmed
	case id.seq > 0:
		return KindProvisional
	default:
		return KindNone
	}
}

func (id ID) IsZero() bool {
	return id.Kind() == KindNone
}

// Server returns the server id of a confirmed ID.
func (id ID) Server() (string, bool) {
	return id.server, id.Kind() == KindConfirmed
}

// Seq returns the local sequence of a provisional ID.
func (id ID) Seq() (int64, bool) {
	return id.seq, id.Kind() == KindProvisional
}

func (id ID) String() string {
	switch id.Kind() {
	case KindConfirmed:
		return id.server
	case KindProvisional:
		return provisionalPrefix + strconv.FormatInt(id.seq, 10)
	default:
		return ""
	}
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	*id = ParseID(string(b))
	return nil
}

// AnyProvisional reports whether any of ids is provisional.
func AnyProvisional(ids ...ID) bool {
	for _, id := range ids {
		if id.Kind() == KindProvisional {
			return true
		}
	}
	return false
}

// Minter hands out provisional ids derived from a monotonic millisecond
// timestamp. Ids minted within the same millisecond still differ.
type Minter struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMinter(now func() time.Time) *Minter {
	if now == nil {
		now = time.Now
	}
	return &Minter{now: now}
}

func (m *Minter) Next() ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.now().UnixMilli()
	if seq <= m.last {
		seq = m.last + 1
	}
	m.last = seq
	return Provisional(seq)
}

// GoString helps test failure output.
func (id ID) GoString() string {
	return fmt.Sprintf("models.ID{%s:%q}", id.Kind(), id.String())
}
