package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
)

const defaultRetryDelay = 5 * time.Second

// Listener holds a dedicated postgres connection, LISTENs on a channel and
// passes each decoded counter update to its sink.
type Listener struct {
	connString string
	channel    string
	sink       func(feedback.CounterUpdate)
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewListener(connString, channel string, sink func(feedback.CounterUpdate), logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		connString: connString,
		channel:    channel,
		sink:       sink,
		retryDelay: defaultRetryDelay,
		logger:     logger.Named("realtime"),
	}
}

// Run listens until ctx is cancelled, reconnecting after errors.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info("listener starting", zap.String("channel", l.channel))
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info("listener stopping")
			return
		}
		l.logger.Warn("listen error, reconnecting", zap.Duration("delay", l.retryDelay), zap.Error(err))

		select {
		case <-time.After(l.retryDelay):
		case <-ctx.Done():
			l.logger.Info("listener stopping")
			return
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info("listening", zap.String("channel", l.channel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		u, err := DecodeUpdate(n.Payload)
		if err != nil {
			l.logger.Warn("bad counter payload", zap.String("payload", n.Payload), zap.Error(err))
			continue
		}
		l.sink(u)
	}
}

// DecodeUpdate parses a NOTIFY payload.
func DecodeUpdate(payload string) (feedback.CounterUpdate, error) {
	var u feedback.CounterUpdate
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return feedback.CounterUpdate{}, err
	}
	if u.RecipeID <= 0 {
		return feedback.CounterUpdate{}, fmt.Errorf("missing recipe_id")
	}
	return u, nil
}
