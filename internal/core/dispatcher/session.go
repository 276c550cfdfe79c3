package dispatcher

import (
	"sync"

	"github.com/penwyp/mini-classroom/internal/core/classroom"
)

// Phase 是连接的生命周期阶段
type Phase int

const (
	// PhaseConnecting 传输层已接入但尚未 Join，对任何课堂不可见
	PhaseConnecting Phase = iota
	// PhaseJoined 已入场，可收发课堂事件
	PhaseJoined
	// PhaseClosed 终态，出站队列已关闭
	PhaseClosed
)

// Session 是一条连接在分发器中的会话。
// 除 outbox 外的字段只由该连接自己的入站协程读写，
// 注册表替换连接时只会跨协程关闭 outbox。
type Session struct {
	ConnID      uint64
	ClassroomID string

	userID string
	role   classroom.Role
	phase  Phase
	outbox *Outbox
}

// UserID 返回会话绑定的用户标识，入场前为空串
func (s *Session) UserID() string { return s.userID }

// Role 返回会话绑定的角色，入场前无意义
func (s *Session) Role() classroom.Role { return s.role }

// Phase 返回会话生命周期阶段
func (s *Session) Phase() Phase { return s.phase }

// Outbox 返回会话的出站队列句柄，传输层的写协程从中消费
func (s *Session) Outbox() *Outbox { return s.outbox }

// pushResult 是一次出站入队的结果，用作指标标签
type pushResult string

const (
	pushEnqueued pushResult = "enqueued"
	pushOverflow pushResult = "dropped_overflow"
	pushClosed   pushResult = "dropped_closed"
)

// Outbox 是每连接的有界出站队列。
// Push 永不阻塞：队列满时丢弃新消息，队列关闭后静默拒绝，
// 调用方（分发器的广播路径）绝不会因慢接收方停顿或 panic。
type Outbox struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func newOutbox(size int) *Outbox {
	if size <= 0 {
		size = 256
	}
	return &Outbox{ch: make(chan []byte, size)}
}

// Push 将载荷入队，返回入队结果
func (o *Outbox) Push(payload []byte) pushResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return pushClosed
	}
	select {
	case o.ch <- payload:
		return pushEnqueued
	default:
		return pushOverflow
	}
}

// Close 关闭队列，幂等；之后的 Push 返回 dropped_closed
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}

// C 返回消费端通道，队列关闭后通道随之关闭
func (o *Outbox) C() <-chan []byte {
	return o.ch
}
