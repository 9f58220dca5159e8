// WebSocket event source
// 把gorilla/websocket连接适配为事件源：message、error、close
package eventsource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// 事件名称
const (
	EventMessage = "message"
	EventError   = "error"
	EventClose   = "close"
)

const writeWait = 10 * time.Second

// Message 收到的一帧数据
type Message struct {
	Type int
	Data []byte
}

// Text 按文本返回数据
func (m Message) Text() string {
	return string(m.Data)
}

// CloseEvent 连接关闭时携带的状态
type CloseEvent struct {
	Code int
	Text string
}

// WebSocket 读取循环把每一帧作为message事件发出
//
// 对端正常关闭时发出close事件；其他读错误先发出error事件，再发出close事件。
type WebSocket struct {
	*Emitter

	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu    sync.Mutex
	closeOnce  sync.Once
	localClose atomic.Bool
	done       chan struct{}
}

// NewWebSocket 包装已建立的连接
func NewWebSocket(conn *websocket.Conn, logger zerolog.Logger) *WebSocket {
	return &WebSocket{
		Emitter: NewEmitter(),
		conn:    conn,
		logger:  logger.With().Str("component", "eventsource.websocket").Str("remote", conn.RemoteAddr().String()).Logger(),
		done:    make(chan struct{}),
	}
}

// Dial 连接到url并包装为事件源
func Dial(ctx context.Context, url string, logger zerolog.Logger) (*WebSocket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewWebSocket(conn, logger), nil
}

// Run 在当前goroutine中执行读取循环，直到连接关闭或ctx结束
//
// ctx结束或对端正常关闭时返回nil。
func (w *WebSocket) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		w.Close()
	})
	defer stop()

	w.logger.Debug().Msg("read loop started")

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return w.finish(ctx, err)
		}
		w.Emit(EventMessage, Message{Type: messageType, Data: data})
	}
}

func (w *WebSocket) finish(ctx context.Context, err error) error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.conn.Close()
	})

	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr):
		w.logger.Debug().Int("code", closeErr.Code).Msg("connection closed by peer")
		w.Emit(EventClose, CloseEvent{Code: closeErr.Code, Text: closeErr.Text})
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return err
		}
		return nil

	case ctx.Err() != nil || w.localClose.Load():
		w.logger.Debug().Msg("read loop stopped")
		w.Emit(EventClose, CloseEvent{Code: websocket.CloseNormalClosure})
		return nil

	default:
		w.logger.Warn().Err(err).Msg("read failed")
		w.Emit(EventError, err)
		w.Emit(EventClose, CloseEvent{Code: websocket.CloseAbnormalClosure, Text: err.Error()})
		return err
	}
}

// Send 写入一帧
func (w *WebSocket) Send(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(messageType, data)
}

// SendText 写入文本帧
func (w *WebSocket) SendText(text string) error {
	return w.Send(websocket.TextMessage, []byte(text))
}

// Close 发送关闭帧并关闭连接，可重复调用
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.localClose.Store(true)
		w.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		w.writeMu.Unlock()

		close(w.done)
		err = w.conn.Close()
	})
	return err
}

// Done 连接关闭后关闭
func (w *WebSocket) Done() <-chan struct{} {
	return w.done
}
