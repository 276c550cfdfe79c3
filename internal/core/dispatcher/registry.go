package dispatcher

import (
	"sync"

	"github.com/penwyp/mini-classroom/internal/core/observability"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"go.uber.org/zap"
)

// Registry 是连接注册表：每个课堂内 userID 到会话的映射，
// 是"课堂 X 里现在谁可达"的唯一权威。
// 广播基于读锁下的成员快照，广播过程中断开的成员可能收到也可能收不到，
// 但投递本身永不阻塞调用方。
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Session
}

// NewRegistry 创建连接注册表
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]*Session),
	}
}

// Register 记录 (classroom, user) 到会话的映射。
// 同一成员重连时新会话取代旧会话，旧会话的出站队列被关闭，
// 其写协程随之退出。
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	room, ok := r.rooms[s.ClassroomID]
	if !ok {
		room = make(map[string]*Session)
		r.rooms[s.ClassroomID] = room
	}
	prev := room[s.userID]
	room[s.userID] = s
	r.mu.Unlock()

	if prev != nil && prev != s {
		prev.outbox.Close()
		logger.Info("Connection superseded by reconnect",
			zap.String("classroomID", s.ClassroomID),
			zap.String("userID", s.userID),
			zap.Uint64("oldConnID", prev.ConnID),
			zap.Uint64("newConnID", s.ConnID))
	}
}

// Unregister 移除会话的映射，返回 s 是否确实是当前登记的会话。
// 被重连顶替的旧会话返回 false 且不改动映射，
// 调用方据此区分真实离开和被顶替连接的迟到断开。
func (r *Registry) Unregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[s.ClassroomID]
	if !ok {
		return false
	}
	if room[s.userID] != s {
		return false
	}
	delete(room, s.userID)
	if len(room) == 0 {
		delete(r.rooms, s.ClassroomID)
	}
	return true
}

// DropClassroom 移除整个课堂的全部会话并返回它们，供调用方关闭
func (r *Registry) DropClassroom(classroomID string) []*Session {
	r.mu.Lock()
	room := r.rooms[classroomID]
	delete(r.rooms, classroomID)
	r.mu.Unlock()

	sessions := make([]*Session, 0, len(room))
	for _, s := range room {
		sessions = append(sessions, s)
	}
	return sessions
}

// Connected 判断某成员当前是否可达
func (r *Registry) Connected(classroomID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[classroomID]
	if !ok {
		return false
	}
	_, ok = room[userID]
	return ok
}

// Size 返回课堂当前可达成员数
func (r *Registry) Size(classroomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[classroomID])
}

// SendTo 投递给课堂内单个成员，成员不可达时返回 false
func (r *Registry) SendTo(classroomID, userID string, payload []byte) bool {
	r.mu.RLock()
	s, ok := r.rooms[classroomID][userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	r.push(s, payload)
	return true
}

// Broadcast 按选择策略投递给课堂内的成员，返回尝试投递的会话数。
// 单个接收方失败只记日志和指标，不影响其余接收方。
func (r *Registry) Broadcast(classroomID string, sel Selection, payload []byte) int {
	targets := r.snapshot(classroomID, sel)
	for _, s := range targets {
		r.push(s, payload)
	}
	return len(targets)
}

// snapshot 在读锁下取一份目标会话的时点快照
func (r *Registry) snapshot(classroomID string, sel Selection) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[classroomID]
	targets := make([]*Session, 0, len(room))
	for _, s := range room {
		if sel.matches(s.userID, s.role) {
			targets = append(targets, s)
		}
	}
	return targets
}

func (r *Registry) push(s *Session, payload []byte) {
	result := s.outbox.Push(payload)
	observability.BroadcastDeliveries.WithLabelValues(string(result)).Inc()
	if result != pushEnqueued {
		logger.Warn("Outbound message dropped",
			zap.String("classroomID", s.ClassroomID),
			zap.String("userID", s.userID),
			zap.Uint64("connID", s.ConnID),
			zap.String("reason", string(result)))
	}
}
