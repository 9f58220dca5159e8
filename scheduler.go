// Scheduler implementations for rxlite
// 调度器实现：立即、新goroutine、单线程事件循环、虚拟时间测试调度器
package rxlite

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 立即在当前goroutine中执行任务，延迟任务交给系统定时器
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler() Scheduler {
	return &immediateScheduler{}
}

// Schedule 立即执行任务
func (s *immediateScheduler) Schedule(action func()) Disposable {
	action()
	return NewBaseDisposable(nil)
}

// ScheduleWithDelay 延迟执行任务
func (s *immediateScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	timer := time.AfterFunc(delay, action)
	return NewBaseDisposable(func() {
		timer.Stop()
	})
}

// ============================================================================
// 新线程调度器 - New Thread Scheduler
// ============================================================================

// newThreadScheduler 为每个任务创建新的goroutine
type newThreadScheduler struct{}

// NewNewThreadScheduler 创建新线程调度器
func NewNewThreadScheduler() Scheduler {
	return &newThreadScheduler{}
}

// Schedule 在新goroutine中执行任务
func (s *newThreadScheduler) Schedule(action func()) Disposable {
	return s.ScheduleWithDelay(action, 0)
}

// ScheduleWithDelay 延迟在新goroutine中执行任务
func (s *newThreadScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			action()
		}
	}()

	return NewBaseDisposable(cancel)
}

// ============================================================================
// 事件循环调度器 - Event Loop Scheduler
// ============================================================================

// EventLoopScheduler 所有任务在同一个goroutine中按提交顺序串行执行
//
// 延迟任务到期后进入同一个队列，因此定时器回调之间、定时器回调与普通任务之间
// 都不会并发执行。
type EventLoopScheduler struct {
	mu       sync.Mutex
	queue    []*loopTask
	wake     chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	disposed int32
}

type loopTask struct {
	action    func()
	cancelled atomic.Bool
}

// NewEventLoopScheduler 创建并启动事件循环调度器
func NewEventLoopScheduler() *EventLoopScheduler {
	s := &EventLoopScheduler{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule 把任务追加到循环队列
func (s *EventLoopScheduler) Schedule(action func()) Disposable {
	task := &loopTask{action: action}
	s.enqueue(task)
	return NewBaseDisposable(func() {
		task.cancelled.Store(true)
	})
}

// ScheduleWithDelay 到期后把任务追加到循环队列
func (s *EventLoopScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}

	task := &loopTask{action: action}
	timer := time.AfterFunc(delay, func() {
		if !task.cancelled.Load() {
			s.enqueue(task)
		}
	})

	return NewBaseDisposable(func() {
		task.cancelled.Store(true)
		timer.Stop()
	})
}

// Dispose 停止事件循环，队列中未执行的任务被丢弃
func (s *EventLoopScheduler) Dispose() {
	if atomic.CompareAndSwapInt32(&s.disposed, 0, 1) {
		close(s.done)
	}
}

// IsDisposed 检查是否已停止
func (s *EventLoopScheduler) IsDisposed() bool {
	return atomic.LoadInt32(&s.disposed) == 1
}

// Stopped 事件循环goroutine退出后关闭
func (s *EventLoopScheduler) Stopped() <-chan struct{} {
	return s.stopped
}

func (s *EventLoopScheduler) enqueue(task *loopTask) {
	if s.IsDisposed() {
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *EventLoopScheduler) next() (*loopTask, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			task := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return task, true
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.done:
			return nil, false
		}
	}
}

func (s *EventLoopScheduler) run() {
	defer close(s.stopped)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		task, ok := s.next()
		if !ok {
			return
		}
		s.execute(task)
	}
}

// execute 执行单个任务，panic被记录后循环继续
func (s *EventLoopScheduler) execute(task *loopTask) {
	if task.cancelled.Load() {
		return
	}
	if err := callSafely(task.action); err != nil {
		logger := Logger()
		logger.Error().Err(err).Str("scheduler", "event-loop").Msg("scheduled action panicked")
	}
}

// ============================================================================
// 测试调度器 - Test Scheduler
// ============================================================================

// TestScheduler 虚拟时间调度器，只有调用AdvanceTimeBy/AdvanceTimeTo时才执行任务
type TestScheduler struct {
	mu    sync.Mutex
	clock time.Duration
	seq   uint64
	queue []*scheduledAction
}

// scheduledAction 调度的动作，同一时刻按提交顺序执行
type scheduledAction struct {
	due    time.Duration
	seq    uint64
	action func()
}

// NewTestScheduler 创建测试调度器，虚拟时钟从0开始
func NewTestScheduler() *TestScheduler {
	return &TestScheduler{}
}

// Schedule 在当前虚拟时刻调度任务
func (s *TestScheduler) Schedule(action func()) Disposable {
	return s.ScheduleWithDelay(action, 0)
}

// ScheduleWithDelay 延迟调度任务
func (s *TestScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	due := s.clock + delay
	s.mu.Unlock()
	return s.ScheduleAt(due, action)
}

// ScheduleAt 在指定虚拟时刻调度任务
func (s *TestScheduler) ScheduleAt(due time.Duration, action func()) Disposable {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	scheduled := &scheduledAction{due: due, seq: s.seq, action: action}

	// 插入到第一个更晚的任务之前，保持时间顺序与提交顺序
	i := sort.Search(len(s.queue), func(i int) bool {
		return s.queue[i].due > due
	})
	s.queue = append(s.queue, nil)
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = scheduled

	return NewBaseDisposable(func() {
		s.remove(scheduled)
	})
}

// AdvanceTimeBy 推进虚拟时间
func (s *TestScheduler) AdvanceTimeBy(duration time.Duration) {
	s.mu.Lock()
	target := s.clock + duration
	s.mu.Unlock()
	s.AdvanceTimeTo(target)
}

// AdvanceTimeTo 推进到指定时刻，执行期间新调度且已到期的任务也会执行
func (s *TestScheduler) AdvanceTimeTo(target time.Duration) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].due > target {
			if target > s.clock {
				s.clock = target
			}
			s.mu.Unlock()
			return
		}

		next := s.queue[0]
		s.queue = s.queue[1:]
		if next.due > s.clock {
			s.clock = next.due
		}
		// 解锁以允许action执行时调度新任务
		s.mu.Unlock()

		next.action()
	}
}

// Now 当前虚拟时间
func (s *TestScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// PendingCount 尚未执行的任务数量
func (s *TestScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *TestScheduler) remove(target *scheduledAction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, action := range s.queue {
		if action == target {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// ============================================================================
// 默认调度器
// ============================================================================

var (
	// DefaultScheduler 默认调度器，定时类生产者与操作符都在这里串行执行
	DefaultScheduler Scheduler = NewEventLoopScheduler()

	// ImmediateScheduler 立即调度器实例
	ImmediateScheduler Scheduler = NewImmediateScheduler()

	// NewThreadScheduler 新线程调度器实例
	NewThreadScheduler Scheduler = NewNewThreadScheduler()
)

// ============================================================================
// 调度器辅助函数
// ============================================================================

// ScheduleRecurring 在initialDelay之后每隔period执行一次action，直到释放
func ScheduleRecurring(scheduler Scheduler, action func(), initialDelay, period time.Duration) Disposable {
	r := &recurring{scheduler: scheduler, action: action, period: period}
	r.schedule(initialDelay)
	return NewBaseDisposable(r.cancel)
}

type recurring struct {
	scheduler Scheduler
	action    func()
	period    time.Duration

	mu        sync.Mutex
	current   Disposable
	cancelled bool
}

func (r *recurring) schedule(delay time.Duration) {
	next := r.scheduler.ScheduleWithDelay(r.tick, delay)

	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		next.Dispose()
		return
	}
	r.current = next
	r.mu.Unlock()
}

func (r *recurring) tick() {
	r.mu.Lock()
	cancelled := r.cancelled
	r.mu.Unlock()
	if cancelled {
		return
	}

	r.action()
	r.schedule(r.period)
}

func (r *recurring) cancel() {
	r.mu.Lock()
	r.cancelled = true
	current := r.current
	r.current = nil
	r.mu.Unlock()

	if current != nil {
		current.Dispose()
	}
}
