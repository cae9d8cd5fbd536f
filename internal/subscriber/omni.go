package subscriber

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/codec"
	"github.com/nlyu1/agora/internal/metaserver"
)

// OmniSubscriber is a type-erased subscriber consuming a publisher's
// string view, useful for generic tooling (such as the metaclient
// REPL's monitor command) that has no compiled-in knowledge of the
// publisher's domain type.
type OmniSubscriber = Subscriber[string]

// NewOmni resolves rawPath's string view.
func NewOmni(ctx context.Context, rawPath string, metaClient *metaserver.Client, log *logrus.Entry) (*OmniSubscriber, error) {
	return New[string](ctx, rawPath, codec.StringCodec{}, "string", metaClient, log)
}

// NewBytes resolves rawPath's byte view with the identity codec; callers
// with a richer domain type should call New directly with their own
// codec.Codec[T] implementation instead.
func NewBytes(ctx context.Context, rawPath string, metaClient *metaserver.Client, log *logrus.Entry) (*Subscriber[[]byte], error) {
	return New[[]byte](ctx, rawPath, codec.BytesCodec{}, "bytes", metaClient, log)
}
