package feedclient

import (
	"context"
	"errors"
	"time"

	"go-leavehub/internal/notification"
	"go-leavehub/internal/realtime"

	"go.uber.org/zap"
)

// TokenSource yields a fresh credential for each connect attempt. Tokens
// expire, so the reconciler never caches one across reconnects.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Puller fetches the full durable log, most-recent-first.
type Puller interface {
	Pull(ctx context.Context) ([]notification.NotificationResponse, error)
}

// ReadMarker marks one notification read on the server.
type ReadMarker interface {
	MarkRead(ctx context.Context, id string) error
}

// Stream is one live push connection.
type Stream interface {
	// Next blocks until a frame arrives or the stream breaks.
	Next(ctx context.Context) (realtime.Envelope, error)
	Close() error
}

// Streamer opens push streams.
type Streamer interface {
	Open(ctx context.Context, token string) (Stream, error)
}

// Reconciler keeps a Feed correct against the server: the push stream is a
// latency optimization, the periodic full pull is the correctness mechanism.
// Any gap in the stream (startup, disconnect, reconnect) is closed by an
// immediate re-pull.
type Reconciler struct {
	feed     *Feed
	puller   Puller
	streamer Streamer
	tokens   TokenSource
	marker   ReadMarker

	retryDelay time.Duration
	logger     *zap.Logger
}

func NewReconciler(
	puller Puller,
	streamer Streamer,
	tokens TokenSource,
	marker ReadMarker,
	logger ...*zap.Logger,
) *Reconciler {
	l := zap.L().Named("feedclient.reconciler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("feedclient.reconciler")
	}
	return &Reconciler{
		feed:       NewFeed(),
		puller:     puller,
		streamer:   streamer,
		tokens:     tokens,
		marker:     marker,
		retryDelay: 2 * time.Second,
		logger:     l,
	}
}

func (r *Reconciler) Feed() *Feed {
	return r.feed
}

// Run pulls the baseline and then services the push stream until ctx is
// cancelled. Every stream failure triggers a full reconciliation pull before
// the next connect attempt.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.pull(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.consumeStream(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("push stream lost, reconciling", zap.Error(err))
		}

		// Close the gap between the last delivered frame and now.
		if err := r.pull(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("reconciliation pull failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
}

func (r *Reconciler) consumeStream(ctx context.Context) error {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return err
	}

	stream, err := r.streamer.Open(ctx, token)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		env, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		if r.feed.Merge(env) {
			r.logger.Debug("pushed notification merged",
				zap.String("notification_id", env.Notification.ID),
				zap.String("kind", env.Kind.String()),
			)
		}
	}
}

func (r *Reconciler) pull(ctx context.Context) error {
	list, err := r.puller.Pull(ctx)
	if err != nil {
		return err
	}
	r.feed.ApplyPull(list)
	r.logger.Debug("feed reconciled",
		zap.Int("total", len(list)),
		zap.Int("unread", r.feed.Unread()),
	)
	return nil
}

// MarkRead flips the local state optimistically and rolls it back if the
// server call fails, so the unread badge never drifts from what the server
// will report on the next pull.
func (r *Reconciler) MarkRead(ctx context.Context, id string) error {
	flipped := r.feed.markReadLocal(id)

	if err := r.marker.MarkRead(ctx, id); err != nil {
		if flipped {
			r.feed.markUnreadLocal(id)
		}
		return err
	}
	return nil
}
