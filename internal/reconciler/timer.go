package reconciler

import (
	"context"
	"sync/atomic"
	"time"

	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/common/utils"
	"scheduler-webhook/internal/triggers"
)

// localTimer is a periodic or one-shot timer owned by one reconciler
type localTimer struct {
	source   triggers.Source
	armedAt  time.Time
	period   time.Duration
	stopFunc func()
	fired    atomic.Bool
}

func (t *localTimer) stop() {
	t.stopFunc()
}

func (t *localTimer) nextFire(now time.Time) (time.Time, bool) {
	if t.source == triggers.SourceOnce {
		if t.fired.Load() {
			return time.Time{}, false
		}
		return t.armedAt.Add(t.period), true
	}
	elapsed := now.Sub(t.armedAt)
	n := elapsed/t.period + 1
	return t.armedAt.Add(n * t.period), true
}

// armLocked starts the timer for cfg's local mode. liveMu must be held.
func (r *Reconciler) armLocked(cfg triggers.Config) {
	r.timerGen++
	gen := r.timerGen

	switch cfg.Mode() {
	case triggers.ModeInterval:
		period := time.Duration(cfg.FixedIntervalSeconds) * r.deps.TimerUnit
		ticker := time.NewTicker(period)
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					r.fire(gen, triggers.SourceInterval)
				}
			}
		}()
		r.timer = &localTimer{
			source:  triggers.SourceInterval,
			armedAt: time.Now(),
			period:  period,
			stopFunc: func() {
				ticker.Stop()
				close(done)
			},
		}
		r.logger.Info("Interval timer armed", logging.Duration("interval", period))

	case triggers.ModeOnce:
		delay := time.Duration(cfg.OnceDelaySeconds) * r.deps.TimerUnit
		t := time.AfterFunc(delay, func() {
			r.fire(gen, triggers.SourceOnce)
		})
		r.timer = &localTimer{
			source:   triggers.SourceOnce,
			armedAt:  time.Now(),
			period:   delay,
			stopFunc: func() { t.Stop() },
		}
		r.logger.Info("One-shot timer armed", logging.Duration("delay", delay))
	}
}

func (r *Reconciler) stopTimer() {
	r.liveMu.Lock()
	defer r.liveMu.Unlock()
	r.stopTimerLocked()
}

func (r *Reconciler) stopTimerLocked() {
	if r.timer != nil {
		r.timer.stop()
		r.timer = nil
	}
	// Invalidate fires that already left the timer but have not yet taken liveMu.
	r.timerGen++
}

// fire emits one local activation. It runs under a read lock on liveMu, so
// Close blocks until an in-progress emit returns and no fire starts after
// the trigger closed or was re-armed.
func (r *Reconciler) fire(gen uint64, source triggers.Source) {
	r.liveMu.RLock()
	defer r.liveMu.RUnlock()

	if r.closed || gen != r.timerGen {
		return
	}
	if source == triggers.SourceOnce && r.timer != nil {
		r.timer.fired.Store(true)
	}

	cfg := r.Config()
	now := time.Now()
	event := &triggers.ActivationEvent{
		MsgID:       utils.GenerateEventID(string(source), r.id),
		TriggerID:   r.id,
		TriggerName: cfg.DisplayName(),
		Source:      source,
		Payload:     now.UnixMilli(),
		Timestamp:   now,
	}
	r.fires.Add(1)

	if r.deps.Emitter == nil {
		r.logger.Warn("Local timer fired without an emitter", logging.Err(triggers.ErrNoEmitter))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()
	ctx = logging.ContextWithTriggerID(ctx, r.id)

	if err := r.deps.Emitter.Emit(ctx, event); err != nil {
		r.logger.Warn("Failed to emit local activation",
			logging.Err(err),
			logging.Field{Key: "source", Value: string(source)},
			logging.Field{Key: "msgid", Value: event.MsgID},
		)
	}
}
