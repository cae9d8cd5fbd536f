package metaserver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlyu1/agora/internal/agoraerr"
	"github.com/nlyu1/agora/internal/connhandle"
	"github.com/nlyu1/agora/internal/ping"
)

// fakePinger is a Pinger whose Ping either succeeds or returns a fixed
// error, letting tests drive confirmation and sweep outcomes without a
// real socket.
type fakePinger struct {
	failPing bool
	closed   bool
}

func (f *fakePinger) Ping(context.Context) (ping.Response, error) {
	if f.failPing {
		return ping.Response{}, errors.New("no route to host")
	}
	return ping.Response{}, nil
}

func (f *fakePinger) Close() error {
	f.closed = true
	return nil
}

func newTestState(pingers map[string]*fakePinger) *State {
	dial := func(path string, conn connhandle.ConnectionHandle) (Pinger, error) {
		p, ok := pingers[path]
		if !ok {
			return nil, errors.New("no such publisher")
		}
		return p, nil
	}
	return NewState(dial, nil)
}

func TestRegisterPublisherRejectsMalformedPaths(t *testing.T) {
	s := newTestState(nil)
	conn := connhandle.New("127.0.0.1", 8001)

	cases := []string{"", "/leading", "trailing/", "double//slash", "has..dotdot", "empty//seg", " padded "}
	for _, p := range cases {
		_, err := s.RegisterPublisher("pub", p, conn)
		assert.Truef(t, agoraerr.Is(err, agoraerr.KindValidation), "path %q: expected validation error, got %v", p, err)
	}
}

func TestRegisterPublisherRejectsDuplicatePath(t *testing.T) {
	s := newTestState(nil)
	conn := connhandle.New("127.0.0.1", 8001)

	_, err := s.RegisterPublisher("pub-a", "chat/general", conn)
	require.NoError(t, err)

	_, err = s.RegisterPublisher("pub-b", "chat/general", conn)
	assert.True(t, agoraerr.Is(err, agoraerr.KindConflict))
}

func TestRegisterPublisherRejectsPublisherAsParent(t *testing.T) {
	s := newTestState(nil)
	conn := connhandle.New("127.0.0.1", 8001)

	_, err := s.RegisterPublisher("pub-a", "chat", conn)
	require.NoError(t, err)

	_, err = s.RegisterPublisher("pub-b", "chat/general", conn)
	assert.True(t, agoraerr.Is(err, agoraerr.KindConflict))
}

func TestConfirmPublisherSucceedsAndEnrolsInSweep(t *testing.T) {
	pingers := map[string]*fakePinger{"chat/general": {}}
	s := newTestState(pingers)
	conn := connhandle.New("127.0.0.1", 8001)

	_, err := s.RegisterPublisher("pub", "chat/general", conn)
	require.NoError(t, err)

	require.NoError(t, s.ConfirmPublisher(context.Background(), "chat/general"))

	info, err := s.GetPublisherInfo(context.Background(), "chat/general")
	require.NoError(t, err)
	assert.Equal(t, "pub", info.Name)
}

func TestConfirmPublisherRollsBackOnFailedPing(t *testing.T) {
	pingers := map[string]*fakePinger{"chat/general": {failPing: true}}
	s := newTestState(pingers)
	conn := connhandle.New("127.0.0.1", 8001)

	_, err := s.RegisterPublisher("pub", "chat/general", conn)
	require.NoError(t, err)

	err = s.ConfirmPublisher(context.Background(), "chat/general")
	assert.True(t, agoraerr.Is(err, agoraerr.KindTransport))

	_, err = s.GetPublisherInfo(context.Background(), "chat/general")
	assert.True(t, agoraerr.Is(err, agoraerr.KindNotFound), "registration should have been rolled back")
}

func TestConfirmPublisherRollsBackWhenDialFails(t *testing.T) {
	s := newTestState(nil)
	conn := connhandle.New("127.0.0.1", 8001)

	_, err := s.RegisterPublisher("pub", "chat/general", conn)
	require.NoError(t, err)

	err = s.ConfirmPublisher(context.Background(), "chat/general")
	assert.True(t, agoraerr.Is(err, agoraerr.KindTransport))

	_, err = s.GetPublisherInfo(context.Background(), "chat/general")
	assert.True(t, agoraerr.Is(err, agoraerr.KindNotFound))
}

func TestGetPublisherInfoDistinguishesRegisteredFromConfirmed(t *testing.T) {
	pingers := map[string]*fakePinger{}
	s := newTestState(pingers)
	conn := connhandle.New("127.0.0.1", 8001)

	_, err := s.RegisterPublisher("pub", "chat/general", conn)
	require.NoError(t, err)

	_, err = s.GetPublisherInfo(context.Background(), "chat/general")
	assert.True(t, agoraerr.Is(err, agoraerr.KindNotFound))

	_, err = s.GetPublisherInfo(context.Background(), "never/registered")
	assert.True(t, agoraerr.Is(err, agoraerr.KindNotFound))
}

func TestRemovePublisherPrunesTreeAndClosesPinger(t *testing.T) {
	pingers := map[string]*fakePinger{"chat/general": {}}
	s := newTestState(pingers)
	conn := connhandle.New("127.0.0.1", 8001)

	_, err := s.RegisterPublisher("pub", "chat/general", conn)
	require.NoError(t, err)
	require.NoError(t, s.ConfirmPublisher(context.Background(), "chat/general"))

	info, err := s.RemovePublisher("chat/general")
	require.NoError(t, err)
	assert.Equal(t, "pub", info.Name)
	assert.Equal(t, `"agora"`, s.PathTreeRepr())
	assert.True(t, pingers["chat/general"].closed)

	_, err = s.RemovePublisher("chat/general")
	assert.True(t, agoraerr.Is(err, agoraerr.KindNotFound))
}

func TestPruneStalePublishersRemovesUnresponsivePublishersOnly(t *testing.T) {
	pingers := map[string]*fakePinger{
		"chat/alive": {},
		"chat/dead":  {},
	}
	s := newTestState(pingers)
	conn := connhandle.New("127.0.0.1", 8001)

	for path := range pingers {
		_, err := s.RegisterPublisher("pub-"+path, path, conn)
		require.NoError(t, err)
		require.NoError(t, s.ConfirmPublisher(context.Background(), path))
	}

	pingers["chat/dead"].failPing = true

	stale := s.PruneStalePublishers(context.Background())
	assert.ElementsMatch(t, []string{"chat/dead"}, stale)

	_, err := s.GetPublisherInfo(context.Background(), "chat/alive")
	assert.NoError(t, err)

	_, err = s.GetPublisherInfo(context.Background(), "chat/dead")
	assert.True(t, agoraerr.Is(err, agoraerr.KindNotFound))
}
