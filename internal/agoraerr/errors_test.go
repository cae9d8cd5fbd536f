package agoraerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesTaggedKind(t *testing.T) {
	err := NotFound("metaserver::State", "GetPublisherInfo", "publisher not registered at %s", "chat/general")
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))
}

func TestIsFollowsWrappedErrors(t *testing.T) {
	inner := Transport("gateway::Gateway", "handleConn", errors.New("dial failed"))
	wrapped := fmt.Errorf("accept loop: %w", inner)
	assert.True(t, Is(wrapped, KindTransport))
}

func TestIsRejectsPlainErrors(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindInternal))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Serialisation("wire::Reader", "ReadFrame", errors.New("unexpected EOF"))
	assert.Contains(t, err.Error(), "Agora wire::Reader::ReadFrame Error")
	assert.Contains(t, err.Error(), "unexpected EOF")
}
