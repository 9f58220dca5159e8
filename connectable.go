// ConnectableObservable implementation for rxlite
// 可连接的Observable：通过Subject多播同一个上游订阅，支持引用计数自动连接
package rxlite

import (
	"sync"

	"github.com/google/uuid"
)

// ============================================================================
// ConnectableObservable 实现
// ============================================================================

// ConnectableObservable 订阅只登记到内部Subject，调用Connect后才订阅上游
//
// 上游终止后内部Subject被丢弃，之后的订阅与连接会使用新的Subject重新开始。
type ConnectableObservable struct {
	Observable

	source     Observable
	newSubject func() Subject

	mu         sync.Mutex
	subject    Subject
	connection *connection
	refCount   int
}

// Multicast 用subjectFactory为每次连接创建Subject
func Multicast(source Observable, subjectFactory func() Subject) *ConnectableObservable {
	co := &ConnectableObservable{
		source:     source,
		newSubject: subjectFactory,
	}
	co.Observable = NewObservable(co.attach)
	return co
}

// Publish 通过PublishSubject多播
func Publish(source Observable, options ...Option) *ConnectableObservable {
	return Multicast(source, func() Subject {
		return NewPublishSubject(options...)
	})
}

// PublishReplay 通过ReplaySubject多播，晚到的订阅者会收到缓存的值
func PublishReplay(source Observable, options ...Option) *ConnectableObservable {
	return Multicast(source, func() Subject {
		return NewReplaySubject(options...)
	})
}

func (co *ConnectableObservable) currentSubject() Subject {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.subjectLocked()
}

func (co *ConnectableObservable) subjectLocked() Subject {
	if co.subject == nil {
		co.subject = co.newSubject()
	}
	return co.subject
}

func (co *ConnectableObservable) attach(subscriber Subscriber) Teardown {
	co.currentSubject().subscribeChild(subscriber, func(item Item) {
		forward(subscriber, item)
	})
	return nil
}

// Connect 订阅上游并把通知推入Subject；已连接时返回现有连接
func (co *ConnectableObservable) Connect() Subscription {
	co.mu.Lock()
	if co.connection != nil {
		conn := co.connection
		co.mu.Unlock()
		return conn
	}
	subject := co.subjectLocked()
	conn := &connection{id: uuid.NewString()}
	conn.onClose = func() {
		co.mu.Lock()
		if co.connection == conn {
			co.connection = nil
		}
		co.mu.Unlock()
	}
	co.connection = conn
	co.mu.Unlock()

	co.source.subscribeChild(conn, func(item Item) {
		if item.IsTerminal() {
			co.mu.Lock()
			if co.subject == subject {
				co.subject = nil
			}
			if co.connection == conn {
				co.connection = nil
			}
			co.mu.Unlock()
		}
		subject.AsObserver()(item)
	})
	return conn
}

// IsConnected 是否存在活跃的上游连接
func (co *ConnectableObservable) IsConnected() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.connection != nil
}

// RefCount 第一个订阅者到来时自动连接，最后一个订阅者离开时断开
//
// 计数的释放在连接之前就挂到订阅者上，连接期间同步离开的订阅者也会断开上游。
func (co *ConnectableObservable) RefCount() Observable {
	return NewObservable(func(subscriber Subscriber) Teardown {
		co.mu.Lock()
		co.refCount++
		first := co.refCount == 1
		co.mu.Unlock()

		co.subscribeChild(subscriber, func(item Item) {
			forward(subscriber, item)
		})
		subscriber.Add(func() {
			co.mu.Lock()
			co.refCount--
			var conn *connection
			if co.refCount == 0 {
				conn = co.connection
			}
			co.mu.Unlock()

			if conn != nil {
				conn.Unsubscribe()
			}
		})

		if first && !subscriber.IsUnsubscribed() {
			co.Connect()
		}
		return nil
	})
}

// Share 把上游转换为按引用计数共享的热流
func Share(options ...Option) Operator {
	return NewOperator("share", func(source Observable) Observable {
		return Publish(source, options...).RefCount()
	})
}

// ============================================================================
// connection 上游连接
// ============================================================================

// connection 上游订阅在源开始发射之前挂到连接上，同步发射期间也可以断开
type connection struct {
	id      string
	onClose func()

	mu        sync.Mutex
	teardowns []Teardown
	closed    bool
}

// Add 挂载上游的取消函数；连接已断开时立即执行
func (c *connection) Add(teardown Teardown) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		teardown()
		return
	}
	c.teardowns = append(c.teardowns, teardown)
	c.mu.Unlock()
}

func (c *connection) Unsubscribe() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	teardowns := c.teardowns
	c.teardowns = nil
	c.mu.Unlock()

	for _, teardown := range teardowns {
		teardown()
	}
	if c.onClose != nil {
		c.onClose()
	}
}

func (c *connection) IsUnsubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *connection) ID() string {
	return c.id
}
