// Side effect operators for rxlite
// 副作用操作符实现，包含Tap, DoOnError, DoOnComplete, Finalize
package rxlite

// Tap 对每个值执行副作用并原样转发；panic时以错误终止且不转发该值
func Tap(action OnNext) Operator {
	return Lift("tap", func(subscriber Subscriber) Observer {
		return func(item Item) {
			if item.Kind == KindNext && action != nil {
				if err := callSafely(func() { action(item.Value) }); err != nil {
					subscriber.OnError(err)
					return
				}
			}
			forward(subscriber, item)
		}
	})
}

// DoOnError 在错误向下游传递之前执行副作用
func DoOnError(action OnError) Operator {
	return Lift("doOnError", func(subscriber Subscriber) Observer {
		return func(item Item) {
			if item.IsError() && action != nil {
				if err := callSafely(func() { action(item.Error) }); err != nil {
					subscriber.OnError(err)
					return
				}
			}
			forward(subscriber, item)
		}
	})
}

// DoOnComplete 在完成向下游传递之前执行副作用
func DoOnComplete(action OnComplete) Operator {
	return Lift("doOnComplete", func(subscriber Subscriber) Observer {
		return func(item Item) {
			if item.IsComplete() && action != nil {
				if err := callSafely(action); err != nil {
					subscriber.OnError(err)
					return
				}
			}
			forward(subscriber, item)
		}
	})
}

// Finalize 订阅以任何方式结束（完成、错误、取消）后执行一次
func Finalize(action func()) Operator {
	return Lift("finalize", func(subscriber Subscriber) Observer {
		subscriber.Add(Teardown(action))
		return func(item Item) {
			forward(subscriber, item)
		}
	})
}
