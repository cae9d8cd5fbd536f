// Package payload holds the per-publisher "current value" slot shared
// between a publisher's publish calls and its ping endpoint.
package payload

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Payload is the wire shape of a ping response: the bytes view, the
// human-readable string view and the UTC instant the publisher last
// updated either.
type Payload struct {
	VecPayload []byte    `json:"vec_payload"`
	StrPayload string    `json:"str_payload"`
	Timestamp  time.Time `json:"timestamp"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	type alias Payload
	a := alias(p)
	a.Timestamp = a.Timestamp.UTC()
	return json.Marshal(a)
}

// Slot is a mutable, concurrency-safe holder for the latest Payload.
// The publisher's publish() is the sole writer; the ping endpoint's
// per-connection loop is the reader.
type Slot struct {
	mu      sync.RWMutex
	payload Payload
}

func NewSlot(initial Payload) *Slot {
	return &Slot{payload: initial}
}

func (s *Slot) Update(vec []byte, str string) {
	s.mu.Lock()
	s.payload = Payload{VecPayload: vec, StrPayload: str, Timestamp: time.Now().UTC()}
	s.mu.Unlock()
}

func (s *Slot) Snapshot() Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payload
}
