package dispatcher

import (
	"context"
	"time"

	"github.com/penwyp/mini-classroom/internal/core/observability"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/penwyp/mini-classroom/pkg/protocol"
	"go.uber.org/zap"
)

// Fanout 把一条逻辑事件编码一次后投递给选中的会话集合，
// 并把事件副本发布到审计流。编码失败或审计失败都不影响对端投递。
type Fanout struct {
	registry *Registry
	sink     EventSink
	compress bool
}

// NewFanout 创建广播器
func NewFanout(registry *Registry, sink EventSink, compress bool) *Fanout {
	if sink == nil {
		sink = NopSink{}
	}
	return &Fanout{
		registry: registry,
		sink:     sink,
		compress: compress,
	}
}

// Deliver 编码事件并按选择策略投递，senderID 用于审计记录归属
func (f *Fanout) Deliver(ctx context.Context, classroomID, senderID string, sel Selection, resp *protocol.Response) {
	payload, err := resp.Encode(f.compress)
	if err != nil {
		logger.Error("Failed to encode outbound event",
			zap.String("classroomID", classroomID),
			zap.String("action", resp.Action.String()),
			zap.Error(err))
		return
	}

	// 审计记录始终存明文编码；开启压缩时顺带记录压缩比
	raw := payload
	if f.compress {
		if plain, perr := resp.Encode(false); perr == nil {
			raw = plain
			observability.CompressionRatio.Observe(float64(len(payload)) / float64(len(raw)))
		}
	}

	n := f.registry.Broadcast(classroomID, sel, payload)
	logger.Debug("Event delivered",
		zap.String("classroomID", classroomID),
		zap.String("action", resp.Action.String()),
		zap.Int("recipients", n))

	f.audit(ctx, classroomID, senderID, resp.Action, raw)
}

// Reply 只投递给发起请求的会话本身，错误回复走这条路径
func (f *Fanout) Reply(s *Session, resp *protocol.Response) {
	payload, err := resp.Encode(f.compress)
	if err != nil {
		logger.Error("Failed to encode reply",
			zap.Uint64("connID", s.ConnID),
			zap.String("action", resp.Action.String()),
			zap.Error(err))
		return
	}
	result := s.outbox.Push(payload)
	observability.BroadcastDeliveries.WithLabelValues(string(result)).Inc()
	if result != pushEnqueued {
		logger.Warn("Reply dropped",
			zap.Uint64("connID", s.ConnID),
			zap.String("reason", string(result)))
	}
}

// audit 把事件副本发布到审计流，失败只记日志
func (f *Fanout) audit(ctx context.Context, classroomID, senderID string, action protocol.Action, payload []byte) {
	rec := &protocol.EventRecord{
		ClassroomID: classroomID,
		UserID:      senderID,
		Action:      action,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := f.sink.Publish(ctx, rec); err != nil {
		logger.Warn("Event audit publish failed",
			zap.String("classroomID", classroomID),
			zap.String("action", action.String()),
			zap.Error(err))
	}
}
