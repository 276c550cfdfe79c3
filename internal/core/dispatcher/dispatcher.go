package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/penwyp/mini-classroom/config"
	"github.com/penwyp/mini-classroom/internal/core/classroom"
	"github.com/penwyp/mini-classroom/internal/core/observability"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/penwyp/mini-classroom/pkg/protocol"
	"go.uber.org/zap"
)

// errStateDesync 表示注册表和课堂存储失去一致：已入场的会话在课堂里
// 找不到对应成员。这是程序缺陷而非用户错误，对该连接按致命处理
var errStateDesync = errors.New("registered session has no backing user record")

// Dispatcher 是课堂事件分发器：接收 (会话, 动作, 字段) 元组，
// 校验角色与课堂状态，经课堂存储应用状态变更，再决定扇出目标。
// 传输层每连接一个读协程调用 Handle，一个写协程消费会话的出站队列。
type Dispatcher struct {
	config   *config.Config
	store    *classroom.Manager
	registry *Registry
	fanout   *Fanout
	presence Presence
	connSeq  atomic.Uint64
}

// NewDispatcher 创建事件分发器
func NewDispatcher(cfg *config.Config, store *classroom.Manager, registry *Registry, sink EventSink, presence Presence) *Dispatcher {
	if presence == nil {
		presence = NopPresence{}
	}
	return &Dispatcher{
		config:   cfg,
		store:    store,
		registry: registry,
		fanout:   NewFanout(registry, sink, cfg.WebSocket.Compression),
		presence: presence,
	}
}

// Registry 返回底层连接注册表
func (d *Dispatcher) Registry() *Registry { return d.registry }

// OnConnect 在传输层接入后、处理任何消息前调用，
// 分配进程内单调递增且不复用的连接号并建立出站队列
func (d *Dispatcher) OnConnect(classroomID string) *Session {
	s := &Session{
		ConnID:      d.connSeq.Add(1),
		ClassroomID: classroomID,
		phase:       PhaseConnecting,
		outbox:      newOutbox(d.config.WebSocket.SendQueueSize),
	}
	logger.Debug("Connection attached",
		zap.Uint64("connID", s.ConnID),
		zap.String("classroomID", classroomID))
	return s
}

// OnDisconnect 在传输层断开时恰好调用一次（异常断开也是）。
// 已入场的会话按合成 Leave 处理：成员标记离线但保留记录，
// 注销连接并向课堂广播成员变更，保证注册表与课堂存储一致。
func (d *Dispatcher) OnDisconnect(ctx context.Context, s *Session) {
	defer func() {
		s.outbox.Close()
		s.phase = PhaseClosed
	}()

	if s.phase != PhaseJoined {
		return
	}

	// 被重连顶替的旧连接：新会话仍然在册，课堂状态不动
	if !d.registry.Unregister(s) {
		logger.Debug("Superseded connection detached",
			zap.Uint64("connID", s.ConnID),
			zap.String("classroomID", s.ClassroomID),
			zap.String("userID", s.userID))
		return
	}

	err := d.store.With(s.ClassroomID, func(c *classroom.Classroom) error {
		user := c.UserByID(s.userID)
		if user == nil {
			return errStateDesync
		}
		user.GoOffline()
		return nil
	})
	if err != nil {
		// 课堂已被删除或状态失步，注销已完成，无需广播
		logger.Debug("Disconnect cleanup skipped",
			zap.Uint64("connID", s.ConnID),
			zap.String("classroomID", s.ClassroomID),
			zap.Error(err))
		return
	}

	d.fanout.Deliver(ctx, s.ClassroomID, s.userID, SelectAllExcept(s.userID),
		protocol.NewResponse(protocol.ActionLeave, map[string]any{
			"userId": s.userID,
			"online": classroom.StatusOffline,
		}))
	logger.Info("Connection departed",
		zap.Uint64("connID", s.ConnID),
		zap.String("classroomID", s.ClassroomID),
		zap.String("userID", s.userID))
}

// Handle 处理一条入站事件。前置条件不满足的动作只回错误给发送方，
// 不广播、不变更状态、不中断连接
func (d *Dispatcher) Handle(ctx context.Context, s *Session, req *protocol.Request) {
	if s.phase == PhaseClosed {
		return
	}

	ctx, span := observability.StartSpan(ctx, "dispatch."+req.Action.String())
	defer span.End()
	start := time.Now()

	err := d.dispatch(ctx, s, req)
	observability.EventLatency.WithLabelValues(req.Action.String()).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		observability.EventsProcessed.WithLabelValues(req.Action.String(), "success").Inc()
	case errors.Is(err, errStateDesync):
		// 一致性破坏按致命处理：强制断开并报警
		observability.EventsProcessed.WithLabelValues(req.Action.String(), "failed").Inc()
		logger.Error("Registry and classroom store out of sync, closing connection",
			zap.Uint64("connID", s.ConnID),
			zap.String("classroomID", s.ClassroomID),
			zap.String("userID", s.userID))
		d.registry.Unregister(s)
		s.outbox.Close()
		s.phase = PhaseClosed
	default:
		observability.EventsProcessed.WithLabelValues(req.Action.String(), "rejected").Inc()
		d.reject(s, req, err)
	}
}

// dispatch 执行生命周期门控和动作路由
func (d *Dispatcher) dispatch(ctx context.Context, s *Session, req *protocol.Request) error {
	if s.phase == PhaseConnecting {
		if req.Action != protocol.ActionJoin && req.Action != protocol.ActionTeacherJoin {
			return classroom.ErrUnauthenticated("first action must be join or teacher_join, got %s", req.Action)
		}
		if req.Action == protocol.ActionTeacherJoin {
			return d.handleTeacherJoin(ctx, s, req)
		}
		return d.handleJoin(ctx, s, req)
	}

	// 已入场的会话不允许再次入场，也不允许伪造他人身份
	if req.Action == protocol.ActionJoin || req.Action == protocol.ActionTeacherJoin {
		return classroom.ErrInvalidState("session already joined classroom %q", s.ClassroomID)
	}
	if req.UserID != "" && req.UserID != s.userID {
		return classroom.ErrPermissionDenied("user_id %q does not match session user %q", req.UserID, s.userID)
	}

	switch req.Action {
	case protocol.ActionCodeChange:
		return d.handleCodeChange(ctx, s, req)
	case protocol.ActionSyncData, protocol.ActionGetData:
		return d.handleGetData(ctx, s, req)
	case protocol.ActionLockCode, protocol.ActionUnlockCode:
		return d.handleLockToggle(ctx, s, req)
	case protocol.ActionAssignmentCreate:
		return d.handleAssignmentCreate(ctx, s, req)
	case protocol.ActionSubmitAssignment:
		return d.handleSubmitAssignment(ctx, s, req)
	case protocol.ActionGradeAssignment:
		return d.handleGradeAssignment(ctx, s, req)
	case protocol.ActionLeave:
		return d.handleLeave(ctx, s, req)
	case protocol.ActionClassroomDeleted:
		return d.handleClassroomDeleted(ctx, s, req)
	default:
		return classroom.ErrMalformedPayload("unsupported action %d", req.Action)
	}
}

// reject 把拒绝原因只回给发送方
func (d *Dispatcher) reject(s *Session, req *protocol.Request, err error) {
	var cerr *classroom.Error
	if !errors.As(err, &cerr) {
		cerr = classroom.NewError(classroom.KindInvalidState, "%s", err.Error())
	}
	observability.ActionRejections.WithLabelValues(string(cerr.Kind)).Inc()
	logger.Warn("Action rejected",
		zap.Uint64("connID", s.ConnID),
		zap.String("classroomID", s.ClassroomID),
		zap.String("userID", s.userID),
		zap.String("action", req.Action.String()),
		zap.String("kind", string(cerr.Kind)),
		zap.String("reason", cerr.Message))
	d.fanout.Reply(s, protocol.NewErrorResponse(string(cerr.Kind), cerr.Message))
}
