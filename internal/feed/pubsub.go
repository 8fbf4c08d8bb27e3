package feed

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/freshcut/chickenshop/pkg/logger"
)

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// PubSubSource relays change messages published by the backend to a Pub/Sub
// topic. Message bodies use the same JSON shape as the NOTIFY payload.
type PubSubSource struct {
	sub  receiver
	out  Dispatcher
	logg *logger.Logger
}

func NewPubSubSource(sub *pubsub.Subscriber, out Dispatcher, logg *logger.Logger) (*PubSubSource, error) {
	if sub == nil {
		return nil, errors.New("changes subscription required")
	}
	return newPubSubSource(sub, out, logg)
}

func newPubSubSource(sub receiver, out Dispatcher, logg *logger.Logger) (*PubSubSource, error) {
	if out == nil {
		return nil, errors.New("dispatcher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &PubSubSource{sub: sub, out: out, logg: logg}, nil
}

// Run receives until ctx is cancelled.
func (s *PubSubSource) Run(ctx context.Context) error {
	err := s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.process(s.logg.WithField(ctx, "message_id", msg.ID), msg.Data)
		// changes are hints; a bad message is dropped rather than redelivered
		msg.Ack()
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *PubSubSource) process(ctx context.Context, data []byte) {
	c, err := Decode(data)
	if err != nil {
		s.logg.WarnErr(ctx, "dropping malformed change message", err)
		return
	}
	s.out.Dispatch(ctx, c)
}
