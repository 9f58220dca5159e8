// Package eventsource provides push-based event sources that plug into rxlite.FromEvent
// 事件源实现：进程内事件发射器与WebSocket连接适配器
package eventsource

import (
	"sync"
	"sync/atomic"

	"github.com/xinjiayu/rxlite"
)

// Emitter 进程内命名事件发射器，实现rxlite.EventSource
type Emitter struct {
	mu        sync.Mutex
	listeners map[string][]listener
	nextToken atomic.Uint64
}

type listener struct {
	token   rxlite.ListenerToken
	handler rxlite.OnNext
}

// NewEmitter 创建事件发射器
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[string][]listener)}
}

// AddEventListener 注册监听器，返回用于注销的凭据
func (e *Emitter) AddEventListener(eventName string, handler rxlite.OnNext) rxlite.ListenerToken {
	token := rxlite.ListenerToken(e.nextToken.Add(1))

	e.mu.Lock()
	e.listeners[eventName] = append(e.listeners[eventName], listener{token: token, handler: handler})
	e.mu.Unlock()
	return token
}

// RemoveEventListener 注销监听器；未知凭据被忽略
func (e *Emitter) RemoveEventListener(eventName string, token rxlite.ListenerToken) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.listeners[eventName]
	for i, l := range current {
		if l.token == token {
			remaining := append(current[:i:i], current[i+1:]...)
			if len(remaining) == 0 {
				delete(e.listeners, eventName)
			} else {
				e.listeners[eventName] = remaining
			}
			return
		}
	}
}

// Emit 按注册顺序把值交给该事件的所有监听器
func (e *Emitter) Emit(eventName string, value interface{}) {
	e.mu.Lock()
	snapshot := append([]listener(nil), e.listeners[eventName]...)
	e.mu.Unlock()

	for _, l := range snapshot {
		l.handler(value)
	}
}

// ListenerCount 某个事件当前的监听器数量
func (e *Emitter) ListenerCount(eventName string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[eventName])
}
