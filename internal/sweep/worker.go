// Package sweep периодически переводит планы рассрочки с просроченными платежами в статус overdue.
package sweep

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Sweeper пересчитывает статусы просроченных планов и возвращает число изменённых.
type Sweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// Worker запускает обход по таймеру.
type Worker struct {
	sweeper  Sweeper
	lock     Lock
	interval time.Duration
	logger   *zap.Logger
}

// NewWorker создаёт обходчик. Без lock обход выполняется без координации реплик.
func NewWorker(s Sweeper, lock Lock, interval time.Duration, logger *zap.Logger) *Worker {
	if lock == nil {
		lock = noLock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		sweeper:  s,
		lock:     lock,
		interval: interval,
		logger:   logger,
	}
}

// Run выполняет обход сразу и далее с заданным интервалом до отмены контекста.
func (w *Worker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return errors.New("sweep interval must be positive")
	}

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("overdue sweep stopped")
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	locked, err := w.lock.Acquire(ctx)
	if err != nil {
		w.logger.Error("acquire sweep lock", zap.Error(err))
		return
	}
	if !locked {
		w.logger.Debug("overdue sweep is running elsewhere, skipping")
		return
	}
	defer func() {
		if err := w.lock.Release(context.WithoutCancel(ctx)); err != nil {
			w.logger.Error("release sweep lock", zap.Error(err))
		}
	}()

	start := time.Now()
	updated, err := w.sweeper.SweepOverdue(ctx)
	if err != nil {
		w.logger.Error("overdue sweep failed", zap.Int("updated", updated), zap.Error(err))
		return
	}
	w.logger.Info("overdue sweep completed",
		zap.Int("updated", updated),
		zap.Duration("duration", time.Since(start)),
	)
}
