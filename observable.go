// Observable implementation for rxlite
// Observable核心实现：冷流语义，每次订阅独立执行生产函数
package rxlite

import (
	"context"
	"time"
)

// ============================================================================
// Observable 核心实现
// ============================================================================

// observableImpl Observable的核心实现
type observableImpl struct {
	producer Producer
	config   *Config
}

// NewObservable 创建新的Observable，生产函数在每次订阅时执行
func NewObservable(producer Producer, options ...Option) Observable {
	return &observableImpl{
		producer: producer,
		config:   newConfig(options),
	}
}

// Create 从发射函数创建Observable，发射函数不需要清理逻辑
func Create(emitter func(subscriber Subscriber), options ...Option) Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		emitter(subscriber)
		return nil
	}, options...)
}

// Subscribe 订阅观察者
func (o *observableImpl) Subscribe(observer Observer) Subscription {
	return o.subscribe(nil, observer)
}

func (o *observableImpl) subscribeChild(parent teardownHolder, observer Observer) Subscription {
	return o.subscribe(parent, observer)
}

func (o *observableImpl) subscribe(parent teardownHolder, observer Observer) Subscription {
	logger := o.config.logger()
	sub := newSubscriber(observer, logger)
	if parent != nil {
		parent.Add(sub.Unsubscribe)
	}

	if ctx := o.config.Context; ctx.Done() != nil {
		if ctx.Err() != nil {
			sub.Unsubscribe()
			return sub
		}
		stop := context.AfterFunc(ctx, sub.Unsubscribe)
		sub.Add(func() { stop() })
	}

	// 下游在链接时已经结束
	if sub.IsUnsubscribed() {
		return sub
	}

	logger.Debug().Str("subscription", sub.ID()).Msg("subscribed")

	if teardown := o.run(sub); teardown != nil {
		sub.Add(teardown)
	}
	return sub
}

// run 执行生产函数，panic作为错误通知下游
func (o *observableImpl) run(sub *subscriber) (teardown Teardown) {
	defer func() {
		if r := recover(); r != nil {
			sub.OnError(newPanicError(r))
		}
	}()

	if o.producer == nil {
		return nil
	}
	return o.producer(sub)
}

// SubscribeWithCallbacks 使用回调函数订阅
func (o *observableImpl) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Subscription {
	return o.Subscribe(callbackObserver(onNext, onError, onComplete, o.config.logger()))
}

// Pipe 从左到右依次应用操作符
func (o *observableImpl) Pipe(operators ...Operator) Observable {
	return pipeFrom(o, operators)
}

func (o *observableImpl) Map(transformer Transformer) Observable {
	return o.Pipe(Map(transformer))
}

func (o *observableImpl) Filter(predicate Predicate) Observable {
	return o.Pipe(Filter(predicate))
}

func (o *observableImpl) Tap(action OnNext) Observable {
	return o.Pipe(Tap(action))
}

func (o *observableImpl) DistinctUntilChanged(options ...Option) Observable {
	return o.Pipe(DistinctUntilChanged(options...))
}

func (o *observableImpl) DebounceTime(window time.Duration, options ...Option) Observable {
	return o.Pipe(DebounceTime(window, options...))
}

func (o *observableImpl) ThrottleTime(window time.Duration, options ...Option) Observable {
	return o.Pipe(ThrottleTime(window, options...))
}

// ============================================================================
// 管道组合
// ============================================================================

// Pipe 把多个操作符组合成一个操作符
func Pipe(operators ...Operator) Operator {
	stages := append([]Operator(nil), operators...)
	return NewOperator("pipe", func(source Observable) Observable {
		return pipeFrom(source, stages)
	})
}

func pipeFrom(source Observable, operators []Operator) Observable {
	result := source
	for _, op := range operators {
		if op == nil {
			continue
		}
		result = op.Apply(result)
	}
	return result
}

// Lift 用逐项回调构造操作符；setup在每次订阅时调用，用于创建独立状态
//
// 上游订阅在源开始发射之前就挂到下游subscriber上，下游一旦结束（出错、完成或取消），
// 即使源仍处于同步发射循环中也会立即停止；下游结束后到达的通知不再交给回调。
func Lift(name string, setup func(subscriber Subscriber) Observer, options ...Option) Operator {
	return NewOperator(name, func(source Observable) Observable {
		return NewObservable(func(subscriber Subscriber) Teardown {
			observer := setup(subscriber)
			source.subscribeChild(subscriber, func(item Item) {
				if subscriber.IsUnsubscribed() {
					return
				}
				observer(item)
			})
			return nil
		}, options...)
	})
}
