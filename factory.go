// Factory functions for rxlite
// 创建操作符：Of、From、Range、Interval、Timer、ThrowError、FromEvent等
package rxlite

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"time"
)

// ============================================================================
// 同步工厂函数
// ============================================================================

// Of 按参数顺序同步发射每个值，然后完成
func Of(values ...interface{}) Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		for _, value := range values {
			if subscriber.IsUnsubscribed() {
				return nil
			}
			subscriber.OnNext(value)
		}
		subscriber.OnComplete()
		return nil
	})
}

// Empty 创建一个立即完成的Observable
func Empty() Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		subscriber.OnComplete()
		return nil
	})
}

// Never 创建一个永不发射任何通知的Observable
func Never() Observable {
	return NewObservable(func(Subscriber) Teardown {
		return nil
	})
}

// ThrowError 订阅时只发射错误
func ThrowError(err error) Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		subscriber.OnError(err)
		return nil
	})
}

// Range 发射从start开始的count个连续整数，然后完成；count为负时以ErrInvalidCount终止
func Range(start, count int) Observable {
	if count < 0 {
		return ThrowError(fmt.Errorf("%w: %d", ErrInvalidCount, count))
	}

	return NewObservable(func(subscriber Subscriber) Teardown {
		for i := 0; i < count; i++ {
			if subscriber.IsUnsubscribed() {
				return nil
			}
			subscriber.OnNext(start + i)
		}
		subscriber.OnComplete()
		return nil
	})
}

// Defer 延迟创建Observable，直到有观察者订阅
func Defer(factory func() Observable) Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		factory().subscribeChild(subscriber, func(item Item) {
			forward(subscriber, item)
		})
		return nil
	})
}

// ============================================================================
// 从外部数据源创建
// ============================================================================

// Awaitable 外部的单个异步值
type Awaitable interface {
	// Await 阻塞直到值就绪；ctx在取消订阅时被取消
	Await(ctx context.Context) (interface{}, error)
}

// AwaitFunc 函数形式的Awaitable
type AwaitFunc func(ctx context.Context) (interface{}, error)

// Await 实现Awaitable
func (f AwaitFunc) Await(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

// From 根据数据源的形态创建Observable
//
// 支持Observable、切片与数组、接收通道、iter.Seq[interface{}]以及Awaitable；
// 其他类型在订阅时以ErrUnsupportedSource终止。
func From(source interface{}) Observable {
	switch src := source.(type) {
	case Observable:
		return src
	case []interface{}:
		return FromSlice(src)
	case <-chan interface{}:
		return FromChannel(src)
	case chan interface{}:
		return FromChannel(src)
	case Awaitable:
		return FromAwaitable(src)
	case iter.Seq[interface{}]:
		return FromIterable(src)
	case func(yield func(interface{}) bool):
		return FromIterable(src)
	}

	if source != nil {
		rv := reflect.ValueOf(source)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			values := make([]interface{}, rv.Len())
			for i := range values {
				values[i] = rv.Index(i).Interface()
			}
			return FromSlice(values)
		case reflect.Chan:
			if rv.Type().ChanDir()&reflect.RecvDir != 0 {
				return fromChannelValue(rv)
			}
		}
	}

	return ThrowError(fmt.Errorf("%w: %T", ErrUnsupportedSource, source))
}

// FromSlice 从切片创建Observable
func FromSlice(slice []interface{}) Observable {
	return Of(slice...)
}

// FromIterable 同步迭代序列，迭代结束后完成
func FromIterable(seq iter.Seq[interface{}]) Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		for value := range seq {
			if subscriber.IsUnsubscribed() {
				return nil
			}
			subscriber.OnNext(value)
		}
		subscriber.OnComplete()
		return nil
	})
}

// FromChannel 从Go channel创建Observable，通道关闭时完成
func FromChannel(ch <-chan interface{}) Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		done := make(chan struct{})

		go func() {
			for {
				select {
				case <-done:
					return
				case value, ok := <-ch:
					if !ok {
						subscriber.OnComplete()
						return
					}
					subscriber.OnNext(value)
				}
			}
		}()

		return func() { close(done) }
	})
}

// fromChannelValue 任意元素类型的接收通道
func fromChannelValue(ch reflect.Value) Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		done := make(chan struct{})
		cases := []reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(done)},
			{Dir: reflect.SelectRecv, Chan: ch},
		}

		go func() {
			for {
				chosen, value, ok := reflect.Select(cases)
				if chosen == 0 {
					return
				}
				if !ok {
					subscriber.OnComplete()
					return
				}
				subscriber.OnNext(value.Interface())
			}
		}()

		return func() { close(done) }
	})
}

// FromAwaitable 等待外部异步值，发射一次后完成；失败时以错误终止
func FromAwaitable(awaitable Awaitable) Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			var value interface{}
			var err error
			if perr := callSafely(func() { value, err = awaitable.Await(ctx) }); perr != nil {
				err = perr
			}
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				subscriber.OnError(err)
				return
			}
			subscriber.OnNext(value)
			subscriber.OnComplete()
		}()

		return Teardown(cancel)
	})
}

// ============================================================================
// 时间相关工厂函数
// ============================================================================

// Interval 每隔period发射一次递增整数（从0开始），永不完成
func Interval(period time.Duration, options ...Option) Observable {
	if period <= 0 {
		return ThrowError(fmt.Errorf("%w: %s", ErrInvalidPeriod, period))
	}
	config := newConfig(options)

	return NewObservable(func(subscriber Subscriber) Teardown {
		counter := 0
		ticker := ScheduleRecurring(config.Scheduler, func() {
			subscriber.OnNext(counter)
			counter++
		}, period, period)
		return ticker.Dispose
	}, options...)
}

// Timer 在initialDelay之后发射0，然后完成
func Timer(initialDelay time.Duration, options ...Option) Observable {
	if initialDelay < 0 {
		initialDelay = 0
	}
	config := newConfig(options)

	return NewObservable(func(subscriber Subscriber) Teardown {
		task := config.Scheduler.ScheduleWithDelay(func() {
			subscriber.OnNext(0)
			subscriber.OnComplete()
		}, initialDelay)
		return task.Dispose
	}, options...)
}

// PeriodicTimer 在initialDelay之后发射0，之后每隔period发射1、2……，永不完成
func PeriodicTimer(initialDelay, period time.Duration, options ...Option) Observable {
	if period <= 0 {
		return ThrowError(fmt.Errorf("%w: %s", ErrInvalidPeriod, period))
	}
	if initialDelay < 0 {
		initialDelay = 0
	}
	config := newConfig(options)

	return NewObservable(func(subscriber Subscriber) Teardown {
		counter := 0
		ticker := ScheduleRecurring(config.Scheduler, func() {
			subscriber.OnNext(counter)
			counter++
		}, initialDelay, period)
		return ticker.Dispose
	}, options...)
}

// ============================================================================
// 外部事件源
// ============================================================================

// ListenerToken 注册监听器时返回的凭据，用于注销
type ListenerToken uint64

// EventSource 外部推送式事件源
type EventSource interface {
	AddEventListener(eventName string, handler OnNext) ListenerToken
	RemoveEventListener(eventName string, token ListenerToken)
}

// FromEvent 把事件源的指定事件适配为Observable，永不自行完成，取消订阅时注销监听器
func FromEvent(source EventSource, eventName string) Observable {
	return FromEventPattern(
		func(handler OnNext) interface{} {
			return source.AddEventListener(eventName, handler)
		},
		func(_ OnNext, token interface{}) {
			source.RemoveEventListener(eventName, token.(ListenerToken))
		},
	)
}

// FromEventPattern 用注册/注销函数对创建Observable；addHandler的返回值会传给removeHandler
func FromEventPattern(addHandler func(handler OnNext) interface{}, removeHandler func(handler OnNext, token interface{})) Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		handler := OnNext(subscriber.OnNext)
		token := addHandler(handler)
		if removeHandler == nil {
			return nil
		}
		return func() { removeHandler(handler, token) }
	})
}
