package websocket

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/penwyp/mini-classroom/config"
	"github.com/penwyp/mini-classroom/internal/core/classroom"
	"github.com/penwyp/mini-classroom/internal/core/dispatcher"
	"github.com/penwyp/mini-classroom/internal/core/observability"
	pkgcache "github.com/penwyp/mini-classroom/pkg/cache"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/penwyp/mini-classroom/pkg/protocol"
	"go.uber.org/zap"
)

// Server 是课堂 WebSocket 网关：每条连接一个读协程调用分发器，
// 一个写协程消费会话出站队列，慢对端不会拖住分发路径
type Server struct {
	config     *config.Config
	dispatcher *dispatcher.Dispatcher
	conns      atomic.Int64
}

// NewServer 创建网关并组装分发器的依赖：
// 课堂存储、连接注册表、Kafka 审计流和 Redis 课堂登记
func NewServer(cfg *config.Config) *Server {
	var sink dispatcher.EventSink = dispatcher.NopSink{}
	if len(cfg.Kafka.Brokers) > 0 {
		sink = dispatcher.NewKafkaSink(&cfg.Kafka)
	}

	var presence dispatcher.Presence = dispatcher.NopPresence{}
	if len(cfg.Redis.Addrs) > 0 {
		redisClient, err := pkgcache.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Panic("Failed to create Redis client", zap.Error(err))
		}
		presence = NewRedisPresence(redisClient, cfg.Classroom.PresenceTTL)
	}

	d := dispatcher.NewDispatcher(cfg, classroom.NewManager(), dispatcher.NewRegistry(), sink, presence)
	return &Server{
		config:     cfg,
		dispatcher: d,
	}
}

// Dispatcher 返回网关内部的分发器
func (s *Server) Dispatcher() *dispatcher.Dispatcher { return s.dispatcher }

// Start 启动 WebSocket 网关
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/classroom/{classroomID}", s.handleClassroom)
	logger.Info("WebSocket gateway starting",
		zap.String("port", s.config.App.Port))
	if err := http.ListenAndServe(":"+s.config.App.Port, mux); err != nil {
		logger.Error("WebSocket gateway failed to start", zap.Error(err))
	}
}

// handleClassroom 处理一条课堂连接的完整生命周期
func (s *Server) handleClassroom(w http.ResponseWriter, r *http.Request) {
	classroomID := r.PathValue("classroomID")
	if classroomID == "" {
		http.Error(w, "classroom id is required", http.StatusBadRequest)
		return
	}
	if max := int64(s.config.WebSocket.MaxConns); max > 0 && s.conns.Load() >= max {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// 压缩在协议层做（zstd），帧层不再压缩
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		observability.WebSocketConnectionErrors.WithLabelValues("gateway", "accept").Inc()
		logger.Error("Failed to accept WebSocket connection", zap.Error(err))
		return
	}

	s.conns.Add(1)
	observability.ActiveConnections.WithLabelValues("gateway").Inc()
	defer func() {
		s.conns.Add(-1)
		observability.ActiveConnections.WithLabelValues("gateway").Dec()
	}()

	session := s.dispatcher.OnConnect(classroomID)
	go s.writePump(conn, session)

	s.readLoop(r.Context(), conn, session)
}

// readLoop 读取入站消息并交给分发器，读出错时触发断开清理
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, session *dispatcher.Session) {
	defer func() {
		// 清理用独立上下文：请求上下文此刻多半已取消
		s.dispatcher.OnDisconnect(context.Background(), session)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		data, err := s.readMessage(ctx, conn)
		if err != nil {
			observability.WebSocketConnectionErrors.WithLabelValues("gateway", "read").Inc()
			logger.Debug("WebSocket read closed",
				zap.Uint64("connID", session.ConnID),
				zap.String("classroomID", session.ClassroomID),
				zap.Error(err))
			return
		}

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			observability.ProtocolParseErrors.WithLabelValues("gateway").Inc()
			logger.Warn("Failed to decode inbound message",
				zap.Uint64("connID", session.ConnID),
				zap.Error(err))
			s.replyMalformed(session, err)
			continue
		}

		s.dispatcher.Handle(ctx, session, req)
		if session.Phase() == dispatcher.PhaseClosed {
			return
		}
	}
}

// readMessage 读一条消息，超过空闲超时未收到任何消息则断开
func (s *Server) readMessage(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	if idle := s.config.WebSocket.IdleTimeout; idle > 0 {
		readCtx, cancel := context.WithTimeout(ctx, idle)
		defer cancel()
		ctx = readCtx
	}
	_, data, err := conn.Read(ctx)
	return data, err
}

// replyMalformed 把解析错误回给发送方，连接保持打开
func (s *Server) replyMalformed(session *dispatcher.Session, err error) {
	resp := protocol.NewErrorResponse(string(classroom.KindMalformedPayload), err.Error())
	payload, encErr := resp.Encode(s.config.WebSocket.Compression)
	if encErr != nil {
		return
	}
	session.Outbox().Push(payload)
}

// writePump 把出站队列写到对端；队列关闭或写失败时结束
func (s *Server) writePump(conn *websocket.Conn, session *dispatcher.Session) {
	msgType := websocket.MessageText
	if s.config.WebSocket.Compression {
		msgType = websocket.MessageBinary
	}

	for payload := range session.Outbox().C() {
		if err := conn.Write(context.Background(), msgType, payload); err != nil {
			observability.WebSocketConnectionErrors.WithLabelValues("gateway", "write").Inc()
			logger.Debug("WebSocket write failed",
				zap.Uint64("connID", session.ConnID),
				zap.Error(err))
			conn.Close(websocket.StatusAbnormalClosure, "write failed")
			return
		}
	}
	// 出站队列关闭意味着会话结束（被顶替、退场或课堂解散）
	conn.Close(websocket.StatusNormalClosure, "session closed")
}
