package rxlite

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMap(t *testing.T) {
	t.Run("转换每个值", func(t *testing.T) {
		r := newRecorder()
		Of(1, 2, 3).Pipe(Map(func(v interface{}) (interface{}, error) {
			return v.(int) * v.(int), nil
		})).Subscribe(r.observer())

		expected := []interface{}{1, 4, 9}
		if !reflect.DeepEqual(r.values(), expected) || !r.completed() {
			t.Errorf("期望 %v 并完成, 得到 %v", expected, r.values())
		}
	})

	t.Run("转换错误终止流", func(t *testing.T) {
		want := errors.New("bad value")
		r := newRecorder()
		Of(1, 2, 3).Map(func(v interface{}) (interface{}, error) {
			if v.(int) == 2 {
				return nil, want
			}
			return v, nil
		}).Subscribe(r.observer())

		if !reflect.DeepEqual(r.values(), []interface{}{1}) {
			t.Errorf("期望 [1], 得到 %v", r.values())
		}
		if r.err() != want {
			t.Errorf("期望 %v, 得到 %v", want, r.err())
		}
		if r.completed() {
			t.Error("错误之后不应完成")
		}
	})

	t.Run("转换panic终止流", func(t *testing.T) {
		r := newRecorder()
		Of("a", 1).Map(func(v interface{}) (interface{}, error) {
			return strings.ToUpper(v.(string)), nil
		}).Subscribe(r.observer())

		var panicErr *PanicError
		if !errors.As(r.err(), &panicErr) {
			t.Errorf("期望 PanicError, 得到 %v", r.err())
		}
		if !reflect.DeepEqual(r.values(), []interface{}{"A"}) {
			t.Errorf("期望 [A], 得到 %v", r.values())
		}
	})

	t.Run("上游错误原样转发", func(t *testing.T) {
		want := errors.New("upstream")
		called := false
		r := newRecorder()
		ThrowError(want).Map(func(v interface{}) (interface{}, error) {
			called = true
			return v, nil
		}).Subscribe(r.observer())

		if called || r.err() != want {
			t.Errorf("期望直接转发错误, 得到 %v 调用=%v", r.err(), called)
		}
	})
}

func TestFilter(t *testing.T) {
	t.Run("只保留谓词为真的值", func(t *testing.T) {
		r := newRecorder()
		Range(1, 6).Filter(func(v interface{}) bool {
			return v.(int)%2 == 0
		}).Subscribe(r.observer())

		expected := []interface{}{2, 4, 6}
		if !reflect.DeepEqual(r.values(), expected) || !r.completed() {
			t.Errorf("期望 %v 并完成, 得到 %v", expected, r.values())
		}
	})

	t.Run("谓词panic终止流", func(t *testing.T) {
		r := newRecorder()
		Of(1, nil).Filter(func(v interface{}) bool {
			return v.(int) > 0
		}).Subscribe(r.observer())

		if !reflect.DeepEqual(r.values(), []interface{}{1}) {
			t.Errorf("期望 [1], 得到 %v", r.values())
		}
		var panicErr *PanicError
		if !errors.As(r.err(), &panicErr) {
			t.Errorf("期望 PanicError, 得到 %v", r.err())
		}
	})
}

func TestDistinctUntilChanged(t *testing.T) {
	t.Run("过滤连续重复值", func(t *testing.T) {
		r := newRecorder()
		Of(1, 1, 2, 2, 2, 1, 1, 2, 3, 3, 4).DistinctUntilChanged().Subscribe(r.observer())

		expected := []interface{}{1, 2, 1, 2, 3, 4}
		if !reflect.DeepEqual(r.values(), expected) {
			t.Errorf("期望 %v, 得到 %v", expected, r.values())
		}
		if !r.completed() {
			t.Error("期望完成")
		}
	})

	t.Run("nil值与不同类型", func(t *testing.T) {
		r := newRecorder()
		Of(nil, nil, 0, int64(0), "0", "0").DistinctUntilChanged().Subscribe(r.observer())

		expected := []interface{}{nil, 0, int64(0), "0"}
		if !reflect.DeepEqual(r.values(), expected) {
			t.Errorf("期望 %v, 得到 %v", expected, r.values())
		}
	})

	t.Run("不可比较的值按内容比较", func(t *testing.T) {
		r := newRecorder()
		Of([]int{1}, []int{1}, []int{2}).DistinctUntilChanged().Subscribe(r.observer())

		expected := []interface{}{[]int{1}, []int{2}}
		if !reflect.DeepEqual(r.values(), expected) {
			t.Errorf("期望 %v, 得到 %v", expected, r.values())
		}
	})

	t.Run("自定义比较函数", func(t *testing.T) {
		r := newRecorder()
		caseInsensitive := WithComparator(func(a, b interface{}) bool {
			return strings.EqualFold(a.(string), b.(string))
		})
		Of("a", "A", "b", "B", "a").DistinctUntilChanged(caseInsensitive).Subscribe(r.observer())

		expected := []interface{}{"a", "b", "a"}
		if !reflect.DeepEqual(r.values(), expected) {
			t.Errorf("期望 %v, 得到 %v", expected, r.values())
		}
	})

	t.Run("每个订阅独立记忆", func(t *testing.T) {
		source := Of(1, 1, 2).DistinctUntilChanged()
		first := newRecorder()
		second := newRecorder()
		source.Subscribe(first.observer())
		source.Subscribe(second.observer())

		if !reflect.DeepEqual(first.values(), second.values()) {
			t.Errorf("两个订阅应当得到相同结果, 得到 %v 和 %v", first.values(), second.values())
		}
	})
}

func TestDistinct(t *testing.T) {
	t.Run("只发射第一次出现的值", func(t *testing.T) {
		r := newRecorder()
		Of(1, 2, 1, 3, 2, 4).Pipe(Distinct()).Subscribe(r.observer())

		expected := []interface{}{1, 2, 3, 4}
		if !reflect.DeepEqual(r.values(), expected) {
			t.Errorf("期望 %v, 得到 %v", expected, r.values())
		}
	})

	t.Run("按键去重", func(t *testing.T) {
		r := newRecorder()
		Of("apple", "avocado", "banana", "blueberry", "cherry").Pipe(Distinct(
			WithKeySelector(func(v interface{}) interface{} { return v.(string)[0] }),
		)).Subscribe(r.observer())

		expected := []interface{}{"apple", "banana", "cherry"}
		if !reflect.DeepEqual(r.values(), expected) {
			t.Errorf("期望 %v, 得到 %v", expected, r.values())
		}
	})

	t.Run("容量有限时淘汰最久未见的键", func(t *testing.T) {
		r := newRecorder()
		Of(1, 2, 3, 1).Pipe(Distinct(WithCapacity(2))).Subscribe(r.observer())

		expected := []interface{}{1, 2, 3, 1}
		if !reflect.DeepEqual(r.values(), expected) {
			t.Errorf("期望 %v, 得到 %v", expected, r.values())
		}
	})

	t.Run("不可哈希的键", func(t *testing.T) {
		r := newRecorder()
		Of([]int{1}).Pipe(Distinct()).Subscribe(r.observer())

		if !errors.Is(r.err(), ErrUnhashableKey) {
			t.Errorf("期望 ErrUnhashableKey, 得到 %v", r.err())
		}
	})
}

func TestFailedStageStops(t *testing.T) {
	t.Run("转换出错后不再调用转换函数", func(t *testing.T) {
		calls := 0
		r := newRecorder()
		Of(1, 2, 3, 4).Map(func(v interface{}) (interface{}, error) {
			calls++
			return nil, errors.New("boom")
		}).Subscribe(r.observer())

		if calls != 1 {
			t.Errorf("期望转换函数调用 1 次, 得到 %d", calls)
		}
		if r.terminalCount() != 1 || r.err() == nil {
			t.Errorf("期望恰好一个错误通知, 得到 %d 个终止通知", r.terminalCount())
		}
	})

	t.Run("谓词panic后不再调用谓词", func(t *testing.T) {
		calls := 0
		r := newRecorder()
		Range(0, 10).Filter(func(v interface{}) bool {
			calls++
			if v.(int) == 2 {
				panic("bad predicate")
			}
			return true
		}).Subscribe(r.observer())

		if calls != 3 {
			t.Errorf("期望谓词调用 3 次, 得到 %d", calls)
		}
		if !reflect.DeepEqual(r.values(), []interface{}{0, 1}) {
			t.Errorf("期望 [0 1], 得到 %v", r.values())
		}
	})

	t.Run("比较函数panic后不再比较", func(t *testing.T) {
		calls := 0
		r := newRecorder()
		Of(1, 2, 3, 4).Pipe(DistinctUntilChanged(WithComparator(func(a, b interface{}) bool {
			calls++
			panic("bad comparator")
		}))).Subscribe(r.observer())

		if calls != 1 {
			t.Errorf("期望比较函数调用 1 次, 得到 %d", calls)
		}
		if !reflect.DeepEqual(r.values(), []interface{}{1}) {
			t.Errorf("期望 [1], 得到 %v", r.values())
		}
	})

	t.Run("出错后无限源停止", func(t *testing.T) {
		calls := 0
		r := newRecorder()
		source := FromIterable(naturals).Map(func(v interface{}) (interface{}, error) {
			calls++
			if v.(int) == 5 {
				return nil, errors.New("stop here")
			}
			return v, nil
		})
		subscribeWithin(t, 2*time.Second, source, r.observer())

		if calls != 6 {
			t.Errorf("期望转换函数调用 6 次, 得到 %d", calls)
		}
		if r.err() == nil || len(r.values()) != 5 {
			t.Errorf("期望 5 个值后出错, 得到 %v %v", r.values(), r.err())
		}
	})
}

func TestDistinctUnboundedCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		r := newRecorder()
		Of(1, 2, 3, 1, 2, 4).Pipe(Distinct(WithCapacity(capacity))).Subscribe(r.observer())

		expected := []interface{}{1, 2, 3, 4}
		if !reflect.DeepEqual(r.values(), expected) || !r.completed() {
			t.Errorf("容量 %d: 期望 %v 并完成, 得到 %v", capacity, expected, r.values())
		}
	}
}
