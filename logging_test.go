package rxlite

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogging(t *testing.T) {
	t.Run("默认不输出", func(t *testing.T) {
		logger := Logger()
		if logger.GetLevel() != zerolog.Disabled {
			t.Errorf("期望默认日志被禁用, 得到 %v", logger.GetLevel())
		}
	})

	t.Run("包级日志记录订阅生命周期", func(t *testing.T) {
		var buf bytes.Buffer
		SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
		defer SetLogger(zerolog.Nop())

		sub := Never().Subscribe(nil)
		sub.Unsubscribe()

		output := buf.String()
		for _, msg := range []string{`"message":"subscribed"`, `"message":"unsubscribed"`, `"component":"rxlite"`, sub.ID()} {
			if !strings.Contains(output, msg) {
				t.Errorf("期望日志包含 %s, 得到 %s", msg, output)
			}
		}
	})

	t.Run("单个Observable的日志记录器", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

		NewObservable(func(subscriber Subscriber) Teardown {
			subscriber.OnError(errors.New("nobody listens"))
			return nil
		}, WithLogger(logger)).SubscribeWithCallbacks(nil, nil, nil)

		if !strings.Contains(buf.String(), "error dropped: no error handler") {
			t.Errorf("期望记录被丢弃的错误, 得到 %s", buf.String())
		}
	})

	t.Run("Subject终止时记录", func(t *testing.T) {
		var buf bytes.Buffer
		subject := NewPublishSubject(WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))
		subject.Subscribe(nil)
		subject.OnComplete()

		if !strings.Contains(buf.String(), `"message":"subject terminated"`) {
			t.Errorf("期望记录终止, 得到 %s", buf.String())
		}
	})
}

func TestPanicError(t *testing.T) {
	t.Run("panic值为error时可以穿透", func(t *testing.T) {
		cause := errors.New("cause")
		err := callSafely(func() { panic(cause) })

		if !errors.Is(err, cause) {
			t.Errorf("期望可以匹配到 %v, 得到 %v", cause, err)
		}
	})

	t.Run("非error的panic值", func(t *testing.T) {
		err := callSafely(func() { panic(42) })

		var panicErr *PanicError
		if !errors.As(err, &panicErr) || panicErr.Value != 42 {
			t.Errorf("期望 PanicError{42}, 得到 %v", err)
		}
		if panicErr.Unwrap() != nil {
			t.Error("非error值不应被展开")
		}
		if err.Error() != fmt.Sprintf("rxlite: recovered panic: %v", 42) {
			t.Errorf("错误信息不正确: %s", err.Error())
		}
	})

	t.Run("没有panic", func(t *testing.T) {
		if err := callSafely(func() {}); err != nil {
			t.Errorf("期望 nil, 得到 %v", err)
		}
	})
}
