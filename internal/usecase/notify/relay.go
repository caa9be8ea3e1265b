package notify

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/errs"
	"scholarflow/internal/ports"
)

const defaultEventBatch = 100

// Relay hands persisted events to publishers. Each publisher keeps its own
// cursor, so one failing sink does not hold the others back; a failed event
// is retried on the next sync.
type Relay struct {
	events     ports.EventLog
	cache      ports.Cache
	publishers []ports.Publisher
	batch      int
}

func NewRelay(events ports.EventLog, cache ports.Cache, publishers []ports.Publisher, batch int) *Relay {
	if batch <= 0 {
		batch = defaultEventBatch
	}
	return &Relay{events: events, cache: cache, publishers: publishers, batch: batch}
}

type PublisherSync struct {
	Publisher    string
	CursorBefore uint64
	CursorAfter  uint64
	Delivered    int
	Err          error
}

type SyncResult struct {
	Publishers []PublisherSync
}

func (r SyncResult) Delivered() int {
	total := 0
	for _, p := range r.Publishers {
		total += p.Delivered
	}
	return total
}

func (r *Relay) SyncOnce(ctx context.Context) (SyncResult, error) {
	if ctx == nil {
		return SyncResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return SyncResult{}, err
	}
	if r.events == nil {
		return SyncResult{}, errors.New("event log is required")
	}
	if r.cache == nil {
		return SyncResult{}, errors.New("cursor cache is required")
	}

	var result SyncResult
	for _, publisher := range r.publishers {
		sync, err := r.syncPublisher(ctx, publisher)
		if err != nil {
			return result, err
		}
		result.Publishers = append(result.Publishers, sync)
	}
	return result, nil
}

func (r *Relay) syncPublisher(ctx context.Context, publisher ports.Publisher) (PublisherSync, error) {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.notify"),
		slog.String("publisher", publisher.Name()),
	)

	key := relayCursorKey(publisher.Name())
	cursorBefore, err := r.getUintCache(ctx, key)
	if err != nil {
		return PublisherSync{}, err
	}
	out := PublisherSync{
		Publisher:    publisher.Name(),
		CursorBefore: cursorBefore,
		CursorAfter:  cursorBefore,
	}

	events, err := r.events.ListAfter(ctx, cursorBefore, r.batch)
	if err != nil {
		return PublisherSync{}, err
	}
	for _, evt := range events {
		if err := publisher.Publish(ctx, evt); err != nil {
			out.Err = err
			logging.Warn(logCtx, "event delivery failed, will retry",
				slog.Uint64("event_id", evt.ID),
				slog.String("event_type", string(evt.Type)),
				slog.Any("err", errs.Loggable(err)),
			)
			break
		}
		out.CursorAfter = evt.ID
		out.Delivered++
	}

	if out.CursorAfter > cursorBefore {
		if err := r.cache.Set(ctx, key, strconv.FormatUint(out.CursorAfter, 10), 0); err != nil {
			return PublisherSync{}, err
		}
	}
	return out, nil
}

// Run syncs every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.notify"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			logging.Error(logCtx, "event relay sync failed", slog.Any("err", errs.Loggable(err)))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Relay) getUintCache(ctx context.Context, key string) (uint64, error) {
	value, found, err := r.cache.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !found || strings.TrimSpace(value) == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errs.Wrapf(err, "parse cursor %s", key)
	}
	return parsed, nil
}

func relayCursorKey(publisher string) string {
	return "relay:" + publisher + ":cursor:event_id"
}
