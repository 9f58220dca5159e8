// Time-based operators for rxlite
// 时间操作符实现：DebounceTime、ThrottleTime，定时器均来自注入的调度器
package rxlite

import (
	"sync"
	"time"
)

// ============================================================================
// DebounceTime
// ============================================================================

// DebounceTime 防抖：源静默window之后才发射最后一个值
//
// 每个值都会取消上一个定时器并重新计时；上游完成时立即冲刷待发射的值。
func DebounceTime(window time.Duration, options ...Option) Operator {
	config := newConfig(options)

	return Lift("debounceTime", func(subscriber Subscriber) Observer {
		d := &debouncer{
			window:     window,
			scheduler:  config.Scheduler,
			subscriber: subscriber,
		}
		subscriber.Add(d.cancel)
		return d.onItem
	}, options...)
}

type debouncer struct {
	window     time.Duration
	scheduler  Scheduler
	subscriber Subscriber

	mu         sync.Mutex
	pending    interface{}
	hasPending bool
	timer      Disposable
	generation uint64
}

func (d *debouncer) onItem(item Item) {
	switch item.Kind {
	case KindNext:
		d.mu.Lock()
		d.stopTimerLocked()
		d.pending = item.Value
		d.hasPending = true
		d.generation++
		gen := d.generation
		d.timer = d.scheduler.ScheduleWithDelay(func() { d.fire(gen) }, d.window)
		d.mu.Unlock()

	case KindComplete:
		value, ok := d.takePending()
		if ok {
			d.subscriber.OnNext(value)
		}
		d.subscriber.OnComplete()

	case KindError:
		d.takePending()
		d.subscriber.OnError(item.Error)
	}
}

// fire 定时器到期；过期的定时器（已被新值替换）直接忽略
func (d *debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.generation || !d.hasPending {
		d.mu.Unlock()
		return
	}
	value := d.pending
	d.pending = nil
	d.hasPending = false
	d.timer = nil
	d.mu.Unlock()

	d.subscriber.OnNext(value)
}

func (d *debouncer) takePending() (interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopTimerLocked()
	d.generation++
	value, ok := d.pending, d.hasPending
	d.pending = nil
	d.hasPending = false
	return value, ok
}

func (d *debouncer) cancel() {
	d.takePending()
}

func (d *debouncer) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Dispose()
		d.timer = nil
	}
}

// ============================================================================
// ThrottleTime
// ============================================================================

// ThrottleTime 节流：立即发射窗口内的第一个值，随后window时间内丢弃源值
//
// 窗口到期只重新打开闸门，不会补发被丢弃的值。
func ThrottleTime(window time.Duration, options ...Option) Operator {
	config := newConfig(options)

	return Lift("throttleTime", func(subscriber Subscriber) Observer {
		t := &throttler{
			window:     window,
			scheduler:  config.Scheduler,
			subscriber: subscriber,
		}
		subscriber.Add(t.cancel)
		return t.onItem
	}, options...)
}

type throttler struct {
	window     time.Duration
	scheduler  Scheduler
	subscriber Subscriber

	mu       sync.Mutex
	silenced bool
	timer    Disposable
}

func (t *throttler) onItem(item Item) {
	switch item.Kind {
	case KindNext:
		t.mu.Lock()
		if t.silenced {
			t.mu.Unlock()
			return
		}
		t.silenced = true
		t.timer = t.scheduler.ScheduleWithDelay(t.reopen, t.window)
		t.mu.Unlock()

		t.subscriber.OnNext(item.Value)

	default:
		t.cancel()
		forward(t.subscriber, item)
	}
}

func (t *throttler) reopen() {
	t.mu.Lock()
	t.silenced = false
	t.timer = nil
	t.mu.Unlock()
}

func (t *throttler) cancel() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Dispose()
		t.timer = nil
	}
	t.mu.Unlock()
}
