package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	in := sample{Name: "chat/general", Count: 3}
	require.NoError(t, w.WriteFrame(in))

	r := NewReader(&buf)
	var out sample
	require.NoError(t, r.ReadFrame(&out))
	assert.Equal(t, in, out)
}

func TestReadFrameMultipleMessagesPreserveOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(sample{Name: "a", Count: 1}))
	require.NoError(t, w.WriteFrame(sample{Name: "b", Count: 2}))

	r := NewReader(&buf)
	var first, second sample
	require.NoError(t, r.ReadFrame(&first))
	require.NoError(t, r.ReadFrame(&second))
	assert.Equal(t, "a", first.Name)
	assert.Equal(t, "b", second.Name)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	r := NewReader(&buf)
	var out sample
	err := r.ReadFrame(&out)
	assert.Error(t, err)
}
