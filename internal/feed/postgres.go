package feed

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/freshcut/chickenshop/pkg/logger"
)

const listenerPingInterval = 90 * time.Second

// Dispatcher receives decoded changes from a source.
type Dispatcher interface {
	Dispatch(ctx context.Context, c Change)
}

// PostgresSource relays LISTEN/NOTIFY payloads from the backend's row change
// triggers into a Dispatcher.
type PostgresSource struct {
	dsn          string
	channel      string
	minReconnect time.Duration
	maxReconnect time.Duration
	out          Dispatcher
	logg         *logger.Logger
}

func NewPostgresSource(dsn, channel string, minReconnect, maxReconnect time.Duration, out Dispatcher, logg *logger.Logger) (*PostgresSource, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn required")
	}
	if channel == "" {
		return nil, errors.New("notify channel required")
	}
	if out == nil {
		return nil, errors.New("dispatcher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &PostgresSource{
		dsn:          dsn,
		channel:      channel,
		minReconnect: minReconnect,
		maxReconnect: maxReconnect,
		out:          out,
		logg:         logg,
	}, nil
}

// Run listens until ctx is cancelled. Notifications lost while reconnecting
// are covered by the watchers' polling.
func (s *PostgresSource) Run(ctx context.Context) error {
	ctx = s.logg.WithField(ctx, "channel", s.channel)
	listener := pq.NewListener(s.dsn, s.minReconnect, s.maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			s.logg.WarnErr(ctx, "change feed connection lost", err)
		case pq.ListenerEventReconnected:
			s.logg.Info(ctx, "change feed reconnected")
		}
	})
	defer listener.Close()

	if err := listener.Listen(s.channel); err != nil {
		return err
	}
	s.logg.Info(ctx, "change feed listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			s.handle(ctx, n)
		case <-time.After(listenerPingInterval):
			if err := listener.Ping(); err != nil {
				s.logg.WarnErr(ctx, "change feed ping failed", err)
			}
		}
	}
}

func (s *PostgresSource) handle(ctx context.Context, n *pq.Notification) {
	// nil after a reconnect
	if n == nil {
		return
	}
	c, err := Decode([]byte(n.Extra))
	if err != nil {
		s.logg.WarnErr(ctx, "dropping malformed change notification", err)
		return
	}
	s.out.Dispatch(ctx, c)
}
