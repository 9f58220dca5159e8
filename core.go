// Package rxlite provides a minimal push-based reactive stream runtime for Go
// 精简的响应式流运行时：Observable、Subject、可组合操作符与时间操作符
package rxlite

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================================
// 核心类型定义
// ============================================================================

// Kind 通知类型
type Kind uint8

const (
	// KindNext 普通值通知
	KindNext Kind = iota
	// KindError 错误终止通知
	KindError
	// KindComplete 完成终止通知
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Item 表示流中的一个通知，nil 值也是合法的 next 负载
type Item struct {
	Kind  Kind
	Value interface{}
	Error error
}

// IsError 检查是否为错误通知
func (item Item) IsError() bool {
	return item.Kind == KindError
}

// IsComplete 检查是否为完成通知
func (item Item) IsComplete() bool {
	return item.Kind == KindComplete
}

// IsTerminal 错误或完成都会终止订阅
func (item Item) IsTerminal() bool {
	return item.Kind == KindError || item.Kind == KindComplete
}

// CreateItem 创建包含值的通知
func CreateItem(value interface{}) Item {
	return Item{Kind: KindNext, Value: value}
}

// CreateErrorItem 创建错误通知
func CreateErrorItem(err error) Item {
	return Item{Kind: KindError, Error: err}
}

// CompleteItem 创建完成通知
func CompleteItem() Item {
	return Item{Kind: KindComplete}
}

// ============================================================================
// 函数类型定义
// ============================================================================

// Observer 观察者函数类型
type Observer func(item Item)

// OnNext 处理下一个值的函数
type OnNext func(value interface{})

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// Predicate 谓词函数，用于过滤
type Predicate func(value interface{}) bool

// Transformer 转换函数，用于映射
type Transformer func(value interface{}) (interface{}, error)

// Comparator 相等判断函数
type Comparator func(a, b interface{}) bool

// Teardown 订阅结束时执行的清理函数
type Teardown func()

// Producer 生产函数，每次订阅都会独立执行一次
type Producer func(subscriber Subscriber) Teardown

// ============================================================================
// 生命周期管理
// ============================================================================

// Subscription 订阅接口，管理订阅的生命周期
type Subscription interface {
	// Unsubscribe 取消订阅，可重复调用
	Unsubscribe()
	// IsUnsubscribed 检查订阅是否已关闭
	IsUnsubscribed() bool
	// ID 订阅的唯一标识，用于日志
	ID() string
}

// Subscriber 生产者一侧看到的订阅，负责保证终止通知之后不再投递
type Subscriber interface {
	Subscription

	OnNext(value interface{})
	OnError(err error)
	OnComplete()

	// Add 注册清理函数；订阅已关闭时立即执行
	Add(teardown Teardown)
}

// Disposable 可释放资源的接口
type Disposable interface {
	Dispose()
	IsDisposed() bool
}

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed int32
	action   func()
}

// NewBaseDisposable 创建基础可释放资源
func NewBaseDisposable(action func()) Disposable {
	return &baseDisposable{action: action}
}

// Dispose 释放资源，只执行一次
func (d *baseDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}

// CompositeDisposable 组合式资源管理器
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable() *CompositeDisposable {
	return &CompositeDisposable{}
}

// Add 添加可释放资源；已释放时立即释放新资源
func (cd *CompositeDisposable) Add(disposable Disposable) {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		disposable.Dispose()
		return
	}
	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
}

// Dispose 按添加顺序释放所有资源
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	for _, resource := range resources {
		resource.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}

// ============================================================================
// 调度器接口
// ============================================================================

// Scheduler 调度器接口，是定时类操作符唯一的时间来源
type Scheduler interface {
	// Schedule 调度一个任务
	Schedule(action func()) Disposable
	// ScheduleWithDelay 延迟调度一个任务
	ScheduleWithDelay(action func(), delay time.Duration) Disposable
}

// ============================================================================
// Observable 核心接口
// ============================================================================

// Observable 可观察序列的核心接口
type Observable interface {
	// Subscribe 订阅观察者
	Subscribe(observer Observer) Subscription

	// SubscribeWithCallbacks 使用回调函数订阅，回调均可为nil
	SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Subscription

	// Pipe 从左到右依次应用操作符
	Pipe(operators ...Operator) Observable

	Map(transformer Transformer) Observable
	Filter(predicate Predicate) Observable
	Tap(action OnNext) Observable
	DistinctUntilChanged(options ...Option) Observable
	DebounceTime(window time.Duration, options ...Option) Observable
	ThrottleTime(window time.Duration, options ...Option) Observable

	// subscribeChild 订阅并在生产函数运行之前把这次订阅挂到parent上，
	// parent结束时上游随之取消，同步发射的生产者也能及时停止
	subscribeChild(parent teardownHolder, observer Observer) Subscription
}

// teardownHolder 可以挂载清理函数的一方，例如下游Subscriber
type teardownHolder interface {
	Add(teardown Teardown)
}

// Operator 管道中的一个阶段：把一个Observable转换成另一个
type Operator interface {
	Name() string
	Apply(source Observable) Observable
}

type namedOperator struct {
	name  string
	apply func(source Observable) Observable
}

// NewOperator 用函数创建自定义操作符
func NewOperator(name string, apply func(source Observable) Observable) Operator {
	return &namedOperator{name: name, apply: apply}
}

func (op *namedOperator) Name() string { return op.name }

func (op *namedOperator) Apply(source Observable) Observable { return op.apply(source) }

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 配置结构
type Config struct {
	Scheduler   Scheduler
	Logger      *zerolog.Logger
	Context     context.Context
	Comparator  Comparator
	Capacity    int
	KeySelector func(value interface{}) interface{}
}

const defaultCapacity = 1024

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Scheduler: DefaultScheduler,
		Context:   context.Background(),
		Capacity:  defaultCapacity,
	}
}

func newConfig(options []Option) *Config {
	config := DefaultConfig()
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	if config.Scheduler == nil {
		config.Scheduler = DefaultScheduler
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	return config
}

func (c *Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return Logger()
}

type optionFunc func(config *Config)

func (f optionFunc) Apply(config *Config) { f(config) }

// WithScheduler 指定定时任务使用的调度器
func WithScheduler(scheduler Scheduler) Option {
	return optionFunc(func(config *Config) {
		config.Scheduler = scheduler
	})
}

// WithLogger 指定日志记录器
func WithLogger(logger zerolog.Logger) Option {
	return optionFunc(func(config *Config) {
		config.Logger = &logger
	})
}

// WithContext 上下文结束时自动取消订阅
func WithContext(ctx context.Context) Option {
	return optionFunc(func(config *Config) {
		config.Context = ctx
	})
}

// WithComparator 指定DistinctUntilChanged使用的相等判断
func WithComparator(comparator Comparator) Option {
	return optionFunc(func(config *Config) {
		config.Comparator = comparator
	})
}

// WithCapacity 指定Distinct和ReplaySubject的容量
func WithCapacity(capacity int) Option {
	return optionFunc(func(config *Config) {
		config.Capacity = capacity
	})
}

// WithKeySelector 指定Distinct使用的键
func WithKeySelector(selector func(value interface{}) interface{}) Option {
	return optionFunc(func(config *Config) {
		config.KeySelector = selector
	})
}
