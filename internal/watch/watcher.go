// File: internal/watch/watcher.go
//
// Package watch polls the booking grid for slots opening up. The portal has
// no notification mechanism of its own; cancellations simply appear as open
// cells on the next render, so the only way to catch one is to keep looking.
package watch

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/courtbook/internal/portal"
)

// Checker is the slice of the portal driver the watcher consumes.
type Checker interface {
	CheckAvailability(ctx context.Context, date time.Time, activity string) (portal.Availability, error)
}

// Event reports slots that were not open on the previous poll of a date.
type Event struct {
	Date     time.Time
	Activity string
	Opened   []portal.Slot
	// CheckedAt is when the poll that found them completed.
	CheckedAt time.Time
}

// Watcher polls one or more dates for an activity and emits an Event
// whenever new slots appear. Polls across all watched dates share one rate
// limiter so adding dates never multiplies the load on the portal, and they
// are mutually exclusive: the checker is a stateful protocol machine (one
// driver over one substrate) that must never see interleaved operations.
type Watcher struct {
	checker  Checker
	interval time.Duration
	limiter  *rate.Limiter
	log      *zap.Logger
	now      func() time.Time

	// mu serializes checker calls across the per-date goroutines.
	mu sync.Mutex
}

// New creates a Watcher. maxChecksPerMinute caps the aggregate poll rate
// regardless of how short the interval is or how many dates are watched.
func New(checker Checker, interval time.Duration, maxChecksPerMinute float64, logger *zap.Logger) *Watcher {
	return &Watcher{
		checker:  checker,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(maxChecksPerMinute/60.0), 1),
		log:      logger.Named("watch"),
		now:      time.Now,
	}
}

// Run watches every date until the context is cancelled, sending events to
// out. The first poll of each date establishes the baseline and emits
// nothing. Run returns the first poll error; transient transport errors are
// retried on the next tick rather than returned.
func (w *Watcher) Run(ctx context.Context, dates []time.Time, activity string, out chan<- Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, date := range dates {
		g.Go(func() error {
			return w.watchDate(ctx, date, activity, out)
		})
	}
	return g.Wait()
}

func (w *Watcher) watchDate(ctx context.Context, date time.Time, activity string, out chan<- Event) error {
	log := w.log.With(
		zap.String("date", date.Format(portal.PortalDateFormat)),
		zap.String("activity", activity))

	var baseline map[string]bool
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}

		avail, err := w.poll(ctx, date, activity)
		switch {
		case err == nil:
			seen := slotKeys(avail.Slots)
			if baseline == nil {
				log.Info("Baseline established.", zap.Int("open_slots", len(avail.Slots)))
			} else if opened := newSlots(avail.Slots, baseline); len(opened) > 0 {
				log.Info("New slots opened.", zap.Int("count", len(opened)))
				select {
				case out <- Event{Date: date, Activity: activity, Opened: opened, CheckedAt: w.now()}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			baseline = seen

		case isRetryable(err):
			log.Warn("Poll failed; will retry on the next tick.", zap.Error(err))

		default:
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll runs one availability check while holding the watcher mutex. The
// driver walks the portal through a date/activity postback sequence, so two
// dates polling at once would corrupt each other's view state.
func (w *Watcher) poll(ctx context.Context, date time.Time, activity string) (portal.Availability, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checker.CheckAvailability(ctx, date, activity)
}

// isRetryable: transport hiccups and transient protocol-state misses are
// worth another tick; authentication and configuration problems are not
// going to fix themselves.
func isRetryable(err error) bool {
	return portal.IsTransient(err)
}

func slotKeys(slots []portal.Slot) map[string]bool {
	keys := make(map[string]bool, len(slots))
	for _, s := range slots {
		keys[s.Key()] = true
	}
	return keys
}

// newSlots returns the slots absent from the baseline, ordered by start
// time then court for stable output.
func newSlots(slots []portal.Slot, baseline map[string]bool) []portal.Slot {
	var opened []portal.Slot
	for _, s := range slots {
		if !baseline[s.Key()] {
			opened = append(opened, s)
		}
	}
	sort.SliceStable(opened, func(i, j int) bool {
		mi, iok := portal.ClockMinutes(opened[i].StartTime)
		mj, jok := portal.ClockMinutes(opened[j].StartTime)
		if iok && jok && mi != mj {
			return mi < mj
		}
		return opened[i].CourtLabel < opened[j].CourtLabel
	})
	return opened
}
