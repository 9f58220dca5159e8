// Subscription implementation for rxlite
// 订阅实现：终止保护、清理函数与幂等取消
package rxlite

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// subscriber 同时是生产者看到的Subscriber和订阅者拿到的Subscription
type subscriber struct {
	id       string
	observer Observer
	logger   zerolog.Logger

	// stopped 之后不再投递任何通知
	stopped atomic.Bool

	mu        sync.Mutex
	disposed  bool
	teardowns []Teardown
}

func newSubscriber(observer Observer, logger zerolog.Logger) *subscriber {
	if observer == nil {
		observer = func(Item) {}
	}
	return &subscriber{
		id:       uuid.NewString(),
		observer: observer,
		logger:   logger,
	}
}

func (s *subscriber) ID() string {
	return s.id
}

// OnNext 取消订阅之后不再投递。取消发生在投递所在的goroutine（回调内或同一调度循环）时
// 立即生效；在其他goroutine上取消时，已经通过检查的那一次投递仍会完成。
func (s *subscriber) OnNext(value interface{}) {
	if s.stopped.Load() {
		return
	}
	s.observer(CreateItem(value))
}

func (s *subscriber) OnError(err error) {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.observer(CreateErrorItem(err))
	s.dispose()
}

func (s *subscriber) OnComplete() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.observer(CompleteItem())
	s.dispose()
}

func (s *subscriber) Add(teardown Teardown) {
	if teardown == nil {
		return
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		teardown()
		return
	}
	s.teardowns = append(s.teardowns, teardown)
	s.mu.Unlock()
}

func (s *subscriber) Unsubscribe() {
	if s.stopped.CompareAndSwap(false, true) {
		s.logger.Debug().Str("subscription", s.id).Msg("unsubscribed")
	}
	s.dispose()
}

func (s *subscriber) IsUnsubscribed() bool {
	return s.stopped.Load()
}

// dispose 按注册顺序执行清理函数，只执行一次
func (s *subscriber) dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	teardowns := s.teardowns
	s.teardowns = nil
	s.mu.Unlock()

	for _, teardown := range teardowns {
		teardown()
	}
}

// forward 把通知原样转发给下游
func forward(subscriber Subscriber, item Item) {
	switch item.Kind {
	case KindNext:
		subscriber.OnNext(item.Value)
	case KindError:
		subscriber.OnError(item.Error)
	case KindComplete:
		subscriber.OnComplete()
	}
}

// callbackObserver 把三个可选回调组合成Observer；没有错误回调时错误被静默丢弃
func callbackObserver(onNext OnNext, onError OnError, onComplete OnComplete, logger zerolog.Logger) Observer {
	return func(item Item) {
		switch item.Kind {
		case KindNext:
			if onNext != nil {
				onNext(item.Value)
			}
		case KindError:
			if onError != nil {
				onError(item.Error)
				return
			}
			logger.Debug().Err(item.Error).Msg("error dropped: no error handler")
		case KindComplete:
			if onComplete != nil {
				onComplete()
			}
		}
	}
}
