// Logging for rxlite
// 包级日志记录器，默认不输出
package rxlite

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var packageLogger atomic.Pointer[zerolog.Logger]

// SetLogger 替换包级日志记录器，未通过WithLogger指定的组件都会使用它
func SetLogger(logger zerolog.Logger) {
	l := logger.With().Str("component", "rxlite").Logger()
	packageLogger.Store(&l)
}

// Logger 返回当前包级日志记录器
func Logger() zerolog.Logger {
	if l := packageLogger.Load(); l != nil {
		return *l
	}
	return zerolog.Nop()
}
