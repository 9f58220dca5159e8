// Transformation operators for rxlite
// 转换操作符：Map、Filter、DistinctUntilChanged、Distinct
package rxlite

import (
	"fmt"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Map 用转换函数替换每个值；返回错误或panic时以错误终止
func Map(transformer Transformer) Operator {
	return Lift("map", func(subscriber Subscriber) Observer {
		return func(item Item) {
			if item.Kind != KindNext {
				forward(subscriber, item)
				return
			}

			var result interface{}
			var err error
			if perr := callSafely(func() { result, err = transformer(item.Value) }); perr != nil {
				err = perr
			}
			if err != nil {
				subscriber.OnError(err)
				return
			}
			subscriber.OnNext(result)
		}
	})
}

// Filter 只转发谓词为真的值
func Filter(predicate Predicate) Operator {
	return Lift("filter", func(subscriber Subscriber) Observer {
		return func(item Item) {
			if item.Kind != KindNext {
				forward(subscriber, item)
				return
			}

			var pass bool
			if err := callSafely(func() { pass = predicate(item.Value) }); err != nil {
				subscriber.OnError(err)
				return
			}
			if pass {
				subscriber.OnNext(item.Value)
			}
		}
	})
}

// DistinctUntilChanged 过滤掉与上一个转发值相等的值
//
// 默认相等判断：可比较类型使用==，其余使用reflect.DeepEqual；
// 可通过WithComparator替换。
func DistinctUntilChanged(options ...Option) Operator {
	config := newConfig(options)
	equals := config.Comparator
	if equals == nil {
		equals = defaultEquals
	}

	return Lift("distinctUntilChanged", func(subscriber Subscriber) Observer {
		var last interface{}
		hasLast := false

		return func(item Item) {
			if item.Kind != KindNext {
				forward(subscriber, item)
				return
			}

			if hasLast {
				var same bool
				if err := callSafely(func() { same = equals(last, item.Value) }); err != nil {
					subscriber.OnError(err)
					return
				}
				if same {
					return
				}
			}

			last = item.Value
			hasLast = true
			subscriber.OnNext(item.Value)
		}
	}, options...)
}

// Distinct 只转发最近Capacity个不同键中未出现过的值
//
// Capacity小于等于0时记住所有出现过的键，与ReplaySubject的约定一致。
func Distinct(options ...Option) Operator {
	config := newConfig(options)

	return Lift("distinct", func(subscriber Subscriber) Observer {
		seen, err := newKeySet(config.Capacity)
		if err != nil {
			subscriber.OnError(fmt.Errorf("distinct: %w", err))
			return func(Item) {}
		}

		return func(item Item) {
			if item.Kind != KindNext {
				forward(subscriber, item)
				return
			}

			key := item.Value
			if config.KeySelector != nil {
				if err := callSafely(func() { key = config.KeySelector(item.Value) }); err != nil {
					subscriber.OnError(err)
					return
				}
			}
			if key != nil && !reflect.TypeOf(key).Comparable() {
				subscriber.OnError(fmt.Errorf("%w: %T", ErrUnhashableKey, key))
				return
			}

			var found bool
			if err := callSafely(func() { found = seen.containsOrAdd(key) }); err != nil {
				subscriber.OnError(fmt.Errorf("%w: %v", ErrUnhashableKey, err))
				return
			}
			if !found {
				subscriber.OnNext(item.Value)
			}
		}
	}, options...)
}

// keySet 记录已出现的键：有容量时用LRU淘汰最久未见的键，否则不限制
type keySet struct {
	bounded   *lru.Cache[interface{}, struct{}]
	unbounded map[interface{}]struct{}
}

func newKeySet(capacity int) (*keySet, error) {
	if capacity <= 0 {
		return &keySet{unbounded: make(map[interface{}]struct{})}, nil
	}
	cache, err := lru.New[interface{}, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &keySet{bounded: cache}, nil
}

func (k *keySet) containsOrAdd(key interface{}) bool {
	if k.bounded != nil {
		found, _ := k.bounded.ContainsOrAdd(key, struct{}{})
		return found
	}
	if _, found := k.unbounded[key]; found {
		return true
	}
	k.unbounded[key] = struct{}{}
	return false
}

func defaultEquals(a, b interface{}) (equal bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if !ta.Comparable() {
		return reflect.DeepEqual(a, b)
	}

	// 结构体中的接口字段可能在运行时持有不可比较的值
	defer func() {
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}
