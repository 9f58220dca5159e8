// Error types for rxlite
// 错误类型与安全调用工具
package rxlite

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCount Range的数量为负
	ErrInvalidCount = errors.New("rxlite: count must not be negative")
	// ErrInvalidPeriod 周期必须为正
	ErrInvalidPeriod = errors.New("rxlite: period must be positive")
	// ErrUnsupportedSource From无法适配的数据源
	ErrUnsupportedSource = errors.New("rxlite: unsupported source")
	// ErrUnhashableKey Distinct的键不可哈希
	ErrUnhashableKey = errors.New("rxlite: unhashable distinct key")
	// ErrNoElements 流在产生任何值之前就完成了
	ErrNoElements = errors.New("rxlite: observable completed without elements")
)

// PanicError 用户函数或生产函数中的panic被转换为错误
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("rxlite: recovered panic: %v", e.Value)
}

// Unwrap 当panic的值本身是error时允许errors.Is/As穿透
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(recovered interface{}) *PanicError {
	return &PanicError{Value: recovered}
}

// callSafely 执行函数并把panic转换为错误
func callSafely(action func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()

	action()
	return nil
}
