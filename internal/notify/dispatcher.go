package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

type task struct {
	name    string
	orderID int64
	ctx     context.Context
	fn      func(ctx context.Context) error
}

// commit後の副作用を固定数のworkerで実行する。
// 呼び出し元はキューに積むだけで待たない
type Dispatcher struct {
	tasks   chan task
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(workers int, queue int, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 100
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	d := &Dispatcher{
		tasks:   make(chan task, queue),
		timeout: timeout,
		log:     log,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer d.wg.Done()
			for t := range d.tasks {
				d.run(t)
			}
		}()
	}
	return d
}

// リクエストのcontextがキャンセルされても通知は続ける（値だけ引き継ぐ）
func (d *Dispatcher) Submit(ctx context.Context, name string, orderID int64, fn func(ctx context.Context) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn().Str("task", name).Int64("order_id", orderID).Msg("dispatcher closed, task dropped")
		return ErrDispatcherClosed
	}

	select {
	case d.tasks <- task{name: name, orderID: orderID, ctx: context.WithoutCancel(ctx), fn: fn}:
		return nil
	default:
		d.log.Warn().Str("task", name).Int64("order_id", orderID).Msg("notification queue full, task dropped")
		return fmt.Errorf("queue full: %s", name)
	}
}

func (d *Dispatcher) run(t task) {
	ctx, cancel := context.WithTimeout(t.ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("task", t.name).Int64("order_id", t.orderID).Interface("panic", r).Msg("notification task panicked")
		}
	}()

	if err := t.fn(ctx); err != nil {
		d.log.Error().Err(err).Str("task", t.name).Int64("order_id", t.orderID).Msg("notification task failed")
		return
	}
	d.log.Debug().Str("task", t.name).Int64("order_id", t.orderID).Msg("notification task done")
}

// キューに残っている分を処理してから終わる
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
