package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesCodecRoundTrip(t *testing.T) {
	var c BytesCodec
	vec, str := c.Encode([]byte("hello"))
	assert.Equal(t, []byte("hello"), vec)
	assert.Equal(t, "hello", str)

	out, err := c.Decode(vec)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), out)
}

func TestBytesCodecDecodeCopiesInput(t *testing.T) {
	var c BytesCodec
	src := []byte("mutate me")
	out, err := c.Decode(src)
	require.NoError(t, err)
	src[0] = 'X'
	assert.Equal(t, byte('m'), out[0], "decode must not alias the caller's slice")
}

func TestStringCodecRoundTrip(t *testing.T) {
	var c StringCodec
	vec, str := c.Encode("chat/general")
	assert.Equal(t, "chat/general", str)

	out, err := c.Decode(vec)
	require.NoError(t, err)
	assert.Equal(t, "chat/general", out)
}
