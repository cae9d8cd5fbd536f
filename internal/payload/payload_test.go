package payload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlotSnapshotReflectsLatestUpdate(t *testing.T) {
	s := NewSlot(Payload{})
	s.Update([]byte("v1"), "v1")
	first := s.Snapshot()
	assert.Equal(t, []byte("v1"), first.VecPayload)

	s.Update([]byte("v2"), "v2")
	second := s.Snapshot()
	assert.Equal(t, []byte("v2"), second.VecPayload)
	assert.True(t, second.Timestamp.After(first.Timestamp) || second.Timestamp.Equal(first.Timestamp))
}

func TestMarshalJSONForcesUTCTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+4", 4*60*60)
	p := Payload{VecPayload: []byte("x"), StrPayload: "x", Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, loc)}

	body, err := p.MarshalJSON()
	assert.NoError(t, err)
	assert.Contains(t, string(body), "2026-01-01T08:00:00Z")
}
