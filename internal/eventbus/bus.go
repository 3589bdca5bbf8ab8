package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/platzio/platz-engine/internal/metrics"
	"github.com/platzio/platz-engine/internal/store"
	"github.com/platzio/platz-engine/pkg/durations"
)

// SubscriberBuffer is the per-subscriber channel capacity. A subscriber
// whose buffer overflows is cut: its channel is closed and it must rescan
// the tables it cares about before resubscribing.
const SubscriberBuffer = 1024

type subscriber struct {
	table string // empty subscribes to all tables
	ch    chan Event
}

type Bus struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func New(pool *pgxpool.Pool) *Bus {
	return &Bus{pool: pool, subs: map[*subscriber]struct{}{}}
}

// Subscribe returns a channel of change events, scoped to one table or to
// all changes when table is empty. The channel is closed when the
// subscriber lags or the context ends; a closed channel means events were
// lost and the caller must fall back to a full scan.
func (b *Bus) Subscribe(ctx context.Context, table string) <-chan Event {
	sub := &subscriber{table: table, ch: make(chan Event, SubscriberBuffer)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.drop(sub)
	}()
	return sub.ch
}

func (b *Bus) drop(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *Bus) publish(ev Event) {
	b.mu.Lock()
	var lagged []*subscriber
	for sub := range b.subs {
		if sub.table != "" && sub.table != ev.Table {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			lagged = append(lagged, sub)
		}
	}
	for _, sub := range lagged {
		logrus.WithField("table", sub.table).Warn("event bus subscriber lagged, cutting")
		metrics.SubscribersLagged.Inc()
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
	metrics.EventsPublished.WithLabelValues(ev.Table, string(ev.Operation)).Inc()
}

// Run listens for database notifications until the context ends. The listen
// connection is re-established on retryable errors with a short backoff;
// subscribers survive reconnects.
func (b *Bus) Run(ctx context.Context) error {
	for {
		if err := b.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.WithError(err).Error("notification listener failed, reconnecting")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(durations.NotifyListenRetrySleep):
		}
	}
}

func (b *Bus) listen(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+store.NotificationChannel); err != nil {
		return err
	}
	logrus.WithField("channel", store.NotificationChannel).Info("listening for database events")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := ParseEvent(notification.Payload)
		if err != nil {
			// Bad payloads are dropped, not retried: reconnecting
			// would not make them parse.
			logrus.WithError(err).WithField("payload", notification.Payload).
				Error("dropping unparseable notification")
			continue
		}
		b.publish(ev)
	}
}
