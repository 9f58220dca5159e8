package rxlite

import (
	"sync"
	"testing"
	"time"
)

// recorder 记录收到的全部通知
type recorder struct {
	mu    sync.Mutex
	items []Item
	times []time.Duration
	clock func() time.Duration
	done  chan struct{}
	once  sync.Once
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

// newTimedRecorder 同时记录每个通知到达时的虚拟时间
func newTimedRecorder(scheduler *TestScheduler) *recorder {
	r := newRecorder()
	r.clock = scheduler.Now
	return r
}

func (r *recorder) observer() Observer {
	return func(item Item) {
		r.mu.Lock()
		r.items = append(r.items, item)
		if r.clock != nil {
			r.times = append(r.times, r.clock())
		}
		r.mu.Unlock()

		if item.IsTerminal() {
			r.once.Do(func() { close(r.done) })
		}
	}
}

func (r *recorder) values() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	var values []interface{}
	for _, item := range r.items {
		if item.Kind == KindNext {
			values = append(values, item.Value)
		}
	}
	return values
}

// valueTimes 每个值到达的虚拟时间
func (r *recorder) valueTimes() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var times []time.Duration
	for i, item := range r.items {
		if item.Kind == KindNext {
			times = append(times, r.times[i])
		}
	}
	return times
}

func (r *recorder) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		if item.Kind == KindError {
			return item.Error
		}
	}
	return nil
}

func (r *recorder) completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		if item.Kind == KindComplete {
			return true
		}
	}
	return false
}

func (r *recorder) terminalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, item := range r.items {
		if item.IsTerminal() {
			count++
		}
	}
	return count
}

// terminalTime 终止通知到达的虚拟时间，没有终止时返回-1
func (r *recorder) terminalTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, item := range r.items {
		if item.IsTerminal() {
			return r.times[i]
		}
	}
	return -1
}

func (r *recorder) wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(timeout):
		t.Fatalf("等待终止通知超时")
	}
}

const ms = time.Millisecond

// takeFirst 只转发前count个值然后完成
func takeFirst(count int) Operator {
	return Lift("takeFirst", func(subscriber Subscriber) Observer {
		seen := 0
		return func(item Item) {
			if item.Kind != KindNext {
				forward(subscriber, item)
				return
			}
			seen++
			subscriber.OnNext(item.Value)
			if seen >= count {
				subscriber.OnComplete()
			}
		}
	})
}

// naturals 无限的同步序列0, 1, 2...
func naturals(yield func(interface{}) bool) {
	for i := 0; ; i++ {
		if !yield(i) {
			return
		}
	}
}

// subscribeWithin 在goroutine中订阅，订阅调用没有在timeout内返回时测试失败
func subscribeWithin(t *testing.T, timeout time.Duration, source Observable, observer Observer) {
	t.Helper()
	returned := make(chan struct{})
	go func() {
		source.Subscribe(observer)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(timeout):
		t.Fatal("订阅没有返回，上游没有停止")
	}
}
