// Subject implementations for rxlite
// Subject实现：PublishSubject、BehaviorSubject、ReplaySubject
package rxlite

import (
	"sync"

	"github.com/rs/zerolog"
)

// ============================================================================
// Subject 接口
// ============================================================================

// Subject 既是Observable也是观察者，把推入的通知多播给当前所有订阅者
type Subject interface {
	Observable

	OnNext(value interface{})
	OnError(err error)
	OnComplete()

	// AsObserver 返回可以直接传给Subscribe的观察者
	AsObserver() Observer
	HasObservers() bool
	ObserverCount() int
}

// ============================================================================
// subjectBase 通用多播实现
// ============================================================================

// subjectBase 维护观察者列表与终止状态
//
// 分发时先在锁内复制观察者快照，再在锁外逐个投递；投递过程中取消订阅的
// 观察者由其自身的终止保护跳过，其余观察者既不会漏掉也不会重复。
type subjectBase struct {
	Observable

	mu        sync.Mutex
	observers []*subjectObserver
	terminal  *Item
	logger    zerolog.Logger

	// record 在分发前记录值，调用时持有锁
	record func(value interface{})
	// replay 返回新订阅者需要先收到的值，调用时持有锁
	replay func(terminated bool) []interface{}
}

// subjectObserver 回放尚未结束时，新到达的通知先进入backlog，回放完成后按序补发
type subjectObserver struct {
	subscriber Subscriber
	replaying  bool
	backlog    []Item
}

func newSubjectBase(kind string, options []Option) *subjectBase {
	config := newConfig(options)
	s := &subjectBase{
		logger: config.logger().With().Str("subject", kind).Logger(),
	}
	s.Observable = NewObservable(s.attach, options...)
	return s
}

// attach 订阅时执行：登记观察者并补发回放值；已终止时直接补发终止通知
func (s *subjectBase) attach(subscriber Subscriber) Teardown {
	s.mu.Lock()
	terminated := s.terminal != nil
	var replayed []interface{}
	if s.replay != nil {
		replayed = s.replay(terminated)
	}
	if terminated {
		terminal := *s.terminal
		s.mu.Unlock()

		for _, value := range replayed {
			if subscriber.IsUnsubscribed() {
				return nil
			}
			subscriber.OnNext(value)
		}
		forward(subscriber, terminal)
		return nil
	}
	entry := &subjectObserver{subscriber: subscriber, replaying: len(replayed) > 0}
	s.observers = append(s.observers, entry)
	s.mu.Unlock()

	if entry.replaying {
		for _, value := range replayed {
			if subscriber.IsUnsubscribed() {
				break
			}
			subscriber.OnNext(value)
		}
		s.drain(entry)
	}
	return func() { s.detach(entry) }
}

// drain 补发回放期间积压的通知，直到积压为空
func (s *subjectBase) drain(entry *subjectObserver) {
	for {
		s.mu.Lock()
		backlog := entry.backlog
		entry.backlog = nil
		if len(backlog) == 0 {
			entry.replaying = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		for _, item := range backlog {
			forward(entry.subscriber, item)
		}
	}
}

func (s *subjectBase) detach(entry *subjectObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, observer := range s.observers {
		if observer == entry {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

// snapshotLocked 返回可以立即投递的订阅者；仍在回放的订阅者把通知放入积压
func (s *subjectBase) snapshotLocked(item Item) []Subscriber {
	observers := make([]Subscriber, 0, len(s.observers))
	for _, entry := range s.observers {
		if entry.replaying {
			entry.backlog = append(entry.backlog, item)
			continue
		}
		observers = append(observers, entry.subscriber)
	}
	return observers
}

// OnNext 把值推送给当前所有订阅者；终止后调用无效
func (s *subjectBase) OnNext(value interface{}) {
	s.mu.Lock()
	if s.terminal != nil {
		s.mu.Unlock()
		return
	}
	if s.record != nil {
		s.record(value)
	}
	observers := s.snapshotLocked(CreateItem(value))
	s.mu.Unlock()

	for _, observer := range observers {
		observer.OnNext(value)
	}
}

// OnError 以错误终止Subject
func (s *subjectBase) OnError(err error) {
	s.terminate(CreateErrorItem(err))
}

// OnComplete 以完成终止Subject
func (s *subjectBase) OnComplete() {
	s.terminate(CompleteItem())
}

func (s *subjectBase) terminate(item Item) {
	s.mu.Lock()
	if s.terminal != nil {
		s.mu.Unlock()
		return
	}
	s.terminal = &item
	observers := s.snapshotLocked(item)
	count := len(s.observers)
	s.observers = nil
	s.mu.Unlock()

	s.logger.Debug().Stringer("kind", item.Kind).Int("observers", count).Msg("subject terminated")

	for _, observer := range observers {
		forward(observer, item)
	}
}

// AsObserver 返回转发到Subject的观察者
func (s *subjectBase) AsObserver() Observer {
	return func(item Item) {
		switch item.Kind {
		case KindNext:
			s.OnNext(item.Value)
		case KindError:
			s.OnError(item.Error)
		case KindComplete:
			s.OnComplete()
		}
	}
}

// HasObservers 是否存在活跃订阅者
func (s *subjectBase) HasObservers() bool {
	return s.ObserverCount() > 0
}

// ObserverCount 活跃订阅者数量
func (s *subjectBase) ObserverCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// IsTerminated 是否已经收到终止通知
func (s *subjectBase) IsTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal != nil
}

// ============================================================================
// PublishSubject
// ============================================================================

// PublishSubject 只向订阅者推送订阅之后到达的值
type PublishSubject struct {
	*subjectBase
}

// NewPublishSubject 创建PublishSubject
func NewPublishSubject(options ...Option) *PublishSubject {
	return &PublishSubject{subjectBase: newSubjectBase("publish", options)}
}

// ============================================================================
// BehaviorSubject
// ============================================================================

// BehaviorSubject 持有当前值，新订阅者先收到当前值
type BehaviorSubject struct {
	*subjectBase
	current interface{}
}

// NewBehaviorSubject 创建带初始值的BehaviorSubject
func NewBehaviorSubject(initial interface{}, options ...Option) *BehaviorSubject {
	s := &BehaviorSubject{
		subjectBase: newSubjectBase("behavior", options),
		current:     initial,
	}
	s.record = func(value interface{}) {
		s.current = value
	}
	s.replay = func(terminated bool) []interface{} {
		if terminated {
			return nil
		}
		return []interface{}{s.current}
	}
	return s
}

// Value 返回当前值
func (s *BehaviorSubject) Value() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ============================================================================
// ReplaySubject
// ============================================================================

// ReplaySubject 缓存最近的值并回放给新订阅者，终止后仍然回放
//
// 缓存大小由WithCapacity指定，小于等于0表示不限制。
type ReplaySubject struct {
	*subjectBase
	capacity int
	buffer   []interface{}
}

// NewReplaySubject 创建ReplaySubject
func NewReplaySubject(options ...Option) *ReplaySubject {
	config := newConfig(options)
	s := &ReplaySubject{
		subjectBase: newSubjectBase("replay", options),
		capacity:    config.Capacity,
	}
	s.record = func(value interface{}) {
		s.buffer = append(s.buffer, value)
		if s.capacity > 0 && len(s.buffer) > s.capacity {
			s.buffer = append(s.buffer[:0:0], s.buffer[len(s.buffer)-s.capacity:]...)
		}
	}
	s.replay = func(bool) []interface{} {
		return append([]interface{}(nil), s.buffer...)
	}
	return s
}

// Values 返回当前缓存的副本
func (s *ReplaySubject) Values() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interface{}(nil), s.buffer...)
}

var (
	_ Subject = (*PublishSubject)(nil)
	_ Subject = (*BehaviorSubject)(nil)
	_ Subject = (*ReplaySubject)(nil)
)
