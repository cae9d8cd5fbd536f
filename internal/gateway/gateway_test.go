package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteSplitsKindAndAgoraPath(t *testing.T) {
	kind, path, err := route("/ping/chat/general")
	require.NoError(t, err)
	assert.Equal(t, "ping", kind)
	assert.Equal(t, "chat/general", path)
}

func TestRouteRejectsUnknownKind(t *testing.T) {
	_, _, err := route("/grpc/chat/general")
	assert.Error(t, err)
}

func TestRouteRejectsMalformedPath(t *testing.T) {
	cases := []string{"/", "/ping", "/ping/"}
	for _, p := range cases {
		_, _, err := route(p)
		assert.Errorf(t, err, "path %q should be rejected", p)
	}
}

func TestLocalSocketPathDisambiguatesKinds(t *testing.T) {
	assert.Contains(t, localSocketPath("ping", "chat/general"), "ping.sock")
	assert.Contains(t, localSocketPath("rawstream", "chat/general/bytes"), "rawstream.sock")
}
