package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/penwyp/mini-classroom/config"
	ob "github.com/penwyp/mini-classroom/internal/core/observability"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/penwyp/mini-classroom/pkg/protocol"
	"github.com/penwyp/mini-classroom/pkg/util"
	"go.uber.org/zap"
)

// Client 是课堂调试客户端：以学生或教师身份入场，
// watch 模式只打印收到的事件，edit 模式周期性发送代码编辑
type Client struct {
	config   *config.Config
	conn     *websocket.Conn
	mutex    sync.RWMutex
	isClosed bool
}

// NewClient 建立连接并完成入场
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	endpoint := fmt.Sprintf("%s/%s", cfg.WebSocket.Endpoint, cfg.Client.ClassroomID)
	startTime := time.Now()
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"User-Agent": []string{"classroom-client/1.0"},
		},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		logger.Error("Failed to dial WebSocket", zap.Error(err))
		ob.WebSocketConnectionErrors.WithLabelValues("client", "accept").Inc()
		return nil, err
	}
	ob.ActiveConnections.WithLabelValues("client").Inc()
	ob.RecordLatency(ctx, "websocket.Dial", time.Since(startTime))

	c := &Client{
		config: cfg,
		conn:   conn,
	}
	if err := c.join(ctx); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("Classroom client connected",
		zap.String("endpoint", endpoint),
		zap.String("classroomID", cfg.Client.ClassroomID),
		zap.String("userID", cfg.Client.UserID),
		zap.String("role", cfg.Client.Role))
	return c, nil
}

// join 发送入场事件
func (c *Client) join(ctx context.Context) error {
	action := protocol.ActionJoin
	if c.config.Client.Role == "teacher" {
		action = protocol.ActionTeacherJoin
	}
	return c.send(ctx, &protocol.Request{
		Action: action,
		UserID: c.config.Client.UserID,
	})
}

// SendCodeChange 发送一次共享白板编辑
func (c *Client) SendCodeChange(ctx context.Context, code string) error {
	return c.send(ctx, &protocol.Request{
		Action: protocol.ActionCodeChange,
		UserID: c.config.Client.UserID,
		Data: map[string]string{
			"code":           code,
			"whiteboardType": "0",
		},
	})
}

// Leave 发送显式退场事件
func (c *Client) Leave(ctx context.Context) error {
	return c.send(ctx, &protocol.Request{
		Action: protocol.ActionLeave,
		UserID: c.config.Client.UserID,
	})
}

func (c *Client) send(ctx context.Context, req *protocol.Request) error {
	if err := c.checkConnection(); err != nil {
		return err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		ob.WebSocketConnectionErrors.WithLabelValues("client", "write").Inc()
		return err
	}
	return nil
}

// Receive 循环接收课堂事件并按类型渲染，连接断开时返回
func (c *Client) Receive(ctx context.Context) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			ob.WebSocketConnectionErrors.WithLabelValues("client", "read").Inc()
			return err
		}
		resp, err := protocol.DecodeResponse(data)
		if err != nil {
			ob.ProtocolParseErrors.WithLabelValues("client").Inc()
			logger.Warn("Failed to decode event", zap.Error(err))
			continue
		}
		c.render(resp)
	}
}

// render 用事件类型对应的颜色打印
func (c *Client) render(resp *protocol.Response) {
	printf := util.GetColorFunc(util.ActionColor(resp.Action))
	payload, _ := json.Marshal(resp.Data)
	if resp.Timestamp != "" {
		printf("[%s] %s %s\n", resp.Action.String(), resp.Timestamp, payload)
		return
	}
	printf("[%s] %s\n", resp.Action.String(), payload)
}

func (c *Client) checkConnection() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.isClosed {
		return fmt.Errorf("connection is closed")
	}
	return nil
}

// Close 关闭连接，幂等
func (c *Client) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.isClosed {
		return
	}
	c.isClosed = true
	c.conn.Close(websocket.StatusNormalClosure, "client closed")
	ob.ActiveConnections.WithLabelValues("client").Dec()
}
