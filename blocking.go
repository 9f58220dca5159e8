// Blocking helpers for rxlite
// 阻塞辅助函数：把流桥接到channel，或同步等待结果
package rxlite

import (
	"context"
	"sync"
)

// ============================================================================
// channel 桥接
// ============================================================================

// ToChannel 在独立goroutine中订阅，把通知依次写入返回的channel
//
// 终止通知写入后channel关闭；ctx结束时取消订阅并关闭channel。
func ToChannel(ctx context.Context, source Observable) <-chan Item {
	ch := make(chan Item)

	var mu sync.Mutex
	closed := false
	closeLocked := func() {
		if !closed {
			closed = true
			close(ch)
		}
	}

	go func() {
		sub := source.Subscribe(func(item Item) {
			mu.Lock()
			defer mu.Unlock()

			if closed {
				return
			}
			select {
			case ch <- item:
			case <-ctx.Done():
				closeLocked()
				return
			}
			if item.IsTerminal() {
				closeLocked()
			}
		})

		context.AfterFunc(ctx, func() {
			sub.Unsubscribe()
			mu.Lock()
			closeLocked()
			mu.Unlock()
		})
	}()

	return ch
}

// ============================================================================
// 阻塞操作
// ============================================================================

// BlockingForEach 对每个值执行action，直到流终止或ctx结束
func BlockingForEach(ctx context.Context, source Observable, action OnNext) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for item := range ToChannel(ctx, source) {
		switch item.Kind {
		case KindNext:
			if action != nil {
				if err := callSafely(func() { action(item.Value) }); err != nil {
					return err
				}
			}
		case KindError:
			return item.Error
		case KindComplete:
			return nil
		}
	}
	return ctx.Err()
}

// BlockingCollect 收集全部值；出错时返回已收集的值和错误
func BlockingCollect(ctx context.Context, source Observable) ([]interface{}, error) {
	var values []interface{}
	err := BlockingForEach(ctx, source, func(value interface{}) {
		values = append(values, value)
	})
	return values, err
}

// BlockingFirst 返回第一个值并取消订阅；流为空时返回ErrNoElements
func BlockingFirst(ctx context.Context, source Observable) (interface{}, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for item := range ToChannel(ctx, source) {
		switch item.Kind {
		case KindNext:
			return item.Value, nil
		case KindError:
			return nil, item.Error
		case KindComplete:
			return nil, ErrNoElements
		}
	}
	return nil, ctx.Err()
}

// BlockingLast 等待流完成并返回最后一个值；流为空时返回ErrNoElements
func BlockingLast(ctx context.Context, source Observable) (interface{}, error) {
	var last interface{}
	found := false
	err := BlockingForEach(ctx, source, func(value interface{}) {
		last = value
		found = true
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoElements
	}
	return last, nil
}
