// Package worker drains the durable sync queue against per-collection
// handlers whenever connectivity allows, with bounded retries,
// exponential backoff and single-flight coordination.
package worker

import (
	"context"
	"sync"
	"time"

	"planik/internal/events"
	"planik/internal/metrics"
	"planik/internal/models"

	"github.com/rs/zerolog"
)

// QueueStore is the mutation-queue surface the orchestrator needs.
// *database.DB satisfies it.
type QueueStore interface {
	ListSyncable(ctx context.Context, maxRetries int) ([]*models.QueueItem, error)
	GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error)
	MarkSyncing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	RemoveQueueItem(ctx context.Context, id string) error
	IncrementRetry(ctx context.Context, id string) (int, error)
	CountPending(ctx context.Context) (int, error)
	PurgeExceeding(ctx context.Context, maxRetries int) (int, error)
}

// ConnectivityChecker gates draining. *connectivity.Monitor satisfies it.
type ConnectivityChecker interface {
	IsOnline() bool
	Check(ctx context.Context) bool
}

// DeadLetter receives items whose retry budget is spent.
type DeadLetter interface {
	Push(ctx context.Context, item *models.QueueItem) error
}

// Result summarizes one drain pass.
type Result struct {
	Total        int
	Synced       int
	Failed       int
	LastSyncTime time.Time
}

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	Retry         RetryPolicy
	Clock         Clock
	DeadLetter    DeadLetter
	DrainInterval time.Duration

	// PurgeExhausted removes retry-exhausted items from the queue after
	// each drain instead of leaving them visible in the failed state.
	PurgeExhausted bool
}

// inflight lets concurrent Sync calls share one drain's outcome.
type inflight struct {
	done   chan struct{}
	result *Result
	err    error
}

type Orchestrator struct {
	queue    QueueStore
	registry *Registry
	monitor  ConnectivityChecker
	bus      *events.EventBus
	opts     Options
	logger   *zerolog.Logger

	mu      sync.Mutex
	current *inflight
}

func NewOrchestrator(queue QueueStore, registry *Registry, monitor ConnectivityChecker, bus *events.EventBus, opts Options, logger *zerolog.Logger) *Orchestrator {
	if opts.Retry.MaxRetries == 0 {
		opts.Retry.MaxRetries = models.DefaultMaxRetries
	}
	if opts.Retry.InitialDelay == 0 {
		opts.Retry.InitialDelay = models.DefaultInitialDelay
	}
	if opts.Retry.MaxDelay == 0 {
		opts.Retry.MaxDelay = models.DefaultMaxDelay
	}
	if opts.Retry.BackoffFactor == 0 {
		opts.Retry.BackoffFactor = 2
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.DrainInterval == 0 {
		opts.DrainInterval = models.DefaultDrainInterval
	}

	lg := logger.With().Str("component", "orchestrator").Logger()
	return &Orchestrator{
		queue:    queue,
		registry: registry,
		monitor:  monitor,
		bus:      bus,
		opts:     opts,
		logger:   &lg,
	}
}

// Sync triggers a drain. If one is already running the call attaches to
// it and returns its result instead of starting a second pass.
func (o *Orchestrator) Sync(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.current != nil {
		cur := o.current
		o.mu.Unlock()
		select {
		case <-cur.done:
			return cur.result, cur.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	cur := &inflight{done: make(chan struct{})}
	o.current = cur
	o.mu.Unlock()

	result, err := o.drain(ctx)

	cur.result, cur.err = result, err
	o.mu.Lock()
	o.current = nil
	o.mu.Unlock()
	close(cur.done)

	return result, err
}

// Start runs the background triggers until ctx is done: a periodic timer
// that drains when items are waiting, and a connectivity subscription
// that drains on the transition back online.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.bus != nil {
		o.bus.Subscribe(events.EventConnectivityChanged, func(ev *events.Event) error {
			if ctx.Err() != nil {
				return nil
			}
			var payload events.ConnectivityPayload
			if err := ev.Decode(&payload); err != nil {
				o.logger.Error().Err(err).Msg("decode connectivity event")
				return nil
			}
			metrics.IncConnectivity(payload.Online)
			if payload.Online {
				go func() {
					if _, err := o.Sync(ctx); err != nil {
						o.logger.Error().Err(err).Msg("drain after reconnect")
					}
				}()
			}
			return nil
		})
	}

	o.logger.Info().Dur("interval", o.opts.DrainInterval).Msg("orchestrator started")
	defer o.logger.Info().Msg("orchestrator stopped")

	ticker := time.NewTicker(o.opts.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !o.monitor.IsOnline() {
				continue
			}
			pending, err := o.queue.CountPending(ctx)
			if err != nil {
				o.logger.Error().Err(err).Msg("count pending")
				continue
			}
			if pending == 0 {
				continue
			}
			if _, err := o.Sync(ctx); err != nil {
				o.logger.Error().Err(err).Msg("periodic drain")
			}
		}
	}
}

func (o *Orchestrator) drain(ctx context.Context) (*Result, error) {
	started := o.opts.Clock.Now()
	result := &Result{}

	// Cheap flag first; a probe is pointless when the platform says offline.
	if !o.monitor.IsOnline() {
		o.logger.Debug().Msg("drain skipped: offline")
		return result, nil
	}

	// Re-verify with an active probe so a stale online flag does not
	// trigger a futile pass. Check flips state and notifies on failure.
	if !o.monitor.Check(ctx) {
		o.logger.Info().Msg("drain skipped: probe failed")
		return result, nil
	}

	items, err := o.queue.ListSyncable(ctx, o.opts.Retry.MaxRetries)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return result, nil
	}

	result.Total = len(items)
	o.publishProgress(result, true, nil)
	o.logger.Info().Int("total", result.Total).Msg("drain started")

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		// Soft cancellation: connectivity dropped mid-loop. The remaining
		// items keep their states and the next trigger resumes from here.
		if !o.monitor.IsOnline() {
			o.logger.Info().Int("remaining", result.Total-result.Synced-result.Failed).Msg("drain interrupted: went offline")
			break
		}

		if item.RetryCount > 0 {
			if err := o.opts.Clock.Sleep(ctx, o.opts.Retry.JitteredDelay(item.RetryCount)); err != nil {
				break
			}
		}

		if err := o.processItem(ctx, item, result); err != nil {
			return nil, err
		}
		o.publishProgress(result, true, nil)
	}

	if o.opts.PurgeExhausted {
		purged, err := o.queue.PurgeExceeding(ctx, o.opts.Retry.MaxRetries)
		if err != nil {
			o.logger.Error().Err(err).Msg("purge exhausted items")
		} else if purged > 0 {
			o.logger.Info().Int("purged", purged).Msg("purged retry-exhausted items")
		}
	}

	now := o.opts.Clock.Now()
	result.LastSyncTime = now
	o.publishProgress(result, false, &now)

	if pending, err := o.queue.CountPending(ctx); err == nil {
		metrics.SetPending(pending)
	}
	metrics.ObserveDrain(now.Sub(started).Seconds())
	o.logger.Info().
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Msg("drain finished")
	return result, nil
}

// processItem pushes one item through its handler. Handler failures are
// contained in the item's queue state; storage failures abort the drain.
func (o *Orchestrator) processItem(ctx context.Context, item *models.QueueItem, result *Result) error {
	handler, err := o.registry.Lookup(item.Collection)
	if err != nil {
		// Missing registration is a deployment error: fail the item
		// without touching its retry budget so it is not retried blindly.
		o.logger.Error().
			Str("collection", item.Collection).
			Str("item_id", item.ID).
			Msg("no handler registered")
		if err := o.queue.MarkFailed(ctx, item.ID, err.Error()); err != nil {
			return err
		}
		result.Failed++
		metrics.IncItem(item.Collection, "unroutable")
		return nil
	}

	if err := o.queue.MarkSyncing(ctx, item.ID); err != nil {
		return err
	}

	// The snapshot from ListSyncable may be stale: a mutation enqueued
	// while earlier items drained (or slept) merges into the still-pending
	// row. MarkSyncing ends that window, so the row re-read here is the
	// payload the handler must push; using the snapshot would deliver the
	// old edit and then remove the merged one unseen.
	item, err = o.queue.GetQueueItem(ctx, item.ID)
	if err != nil {
		return err
	}

	if handlerErr := handler.Apply(ctx, item); handlerErr != nil {
		o.logger.Warn().
			Err(handlerErr).
			Str("item_id", item.ID).
			Str("collection", item.Collection).
			Str("operation", item.Operation).
			Int("retry_count", item.RetryCount).
			Msg("handler failed")

		if err := o.queue.MarkFailed(ctx, item.ID, handlerErr.Error()); err != nil {
			return err
		}
		if item.RetryCount < o.opts.Retry.MaxRetries {
			if _, err := o.queue.IncrementRetry(ctx, item.ID); err != nil {
				return err
			}
		} else if o.opts.DeadLetter != nil {
			if err := o.opts.DeadLetter.Push(ctx, item); err != nil {
				o.logger.Error().Err(err).Str("item_id", item.ID).Msg("dead letter push")
			}
		}
		result.Failed++
		metrics.IncItem(item.Collection, "failed")
		return nil
	}

	if err := o.queue.RemoveQueueItem(ctx, item.ID); err != nil {
		return err
	}
	result.Synced++
	metrics.IncItem(item.Collection, "synced")
	return nil
}

func (o *Orchestrator) publishProgress(result *Result, inProgress bool, lastSync *time.Time) {
	if o.bus == nil {
		return
	}
	_ = o.bus.PublishJSON(events.EventSyncProgress, models.Progress{
		Total:        result.Total,
		Synced:       result.Synced,
		Failed:       result.Failed,
		InProgress:   inProgress,
		LastSyncTime: lastSync,
	})
}
