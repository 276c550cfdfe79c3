package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/penwyp/mini-classroom/pkg/pool"
)

// 压缩输出缓冲池，命中时避免每次编码都分配新底层数组
var encodeBufPool = pool.New(func() []byte {
	return make([]byte, 0, 4096)
})

// zstd 压缩帧的魔数，用于在解码时识别压缩载荷
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	ErrEmptyPayload  = errors.New("empty payload")
	ErrInvalidAction = errors.New("invalid action code")
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Request 定义入站课堂事件，data 字段为扁平的字符串键值对
type Request struct {
	Action Action            `json:"action"`
	UserID string            `json:"user_id"`
	Data   map[string]string `json:"data"`
}

// Field 读取 data 中的字段，缺失时返回空串
func (r *Request) Field(key string) string {
	if r.Data == nil {
		return ""
	}
	return r.Data[key]
}

// DecodeRequest 解码入站消息，自动识别 zstd 压缩载荷
func DecodeRequest(data []byte) (*Request, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	if bytes.HasPrefix(data, zstdMagic) {
		decompressed, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		data = decompressed
	}

	req := &Request{}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAction, req.Action)
	}
	return req, nil
}

// Response 定义出站课堂事件
type Response struct {
	Action    Action `json:"action"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewResponse 创建出站事件
func NewResponse(action Action, data any) *Response {
	return &Response{Action: action, Data: data}
}

// NewErrorResponse 创建错误回复，kind 对应错误分类
func NewErrorResponse(kind, message string) *Response {
	return &Response{
		Action: ActionNone,
		Data: map[string]string{
			"kind":    kind,
			"message": message,
		},
	}
}

// Encode 将 Response 编码为出站数据，可选 zstd 压缩
func (r *Response) Encode(compress bool) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	if !compress {
		return raw, nil
	}

	buf := encodeBufPool.Get()
	out := zstdEncoder.EncodeAll(raw, buf)
	// EncodeAll 复用池中缓冲区的底层数组，返回前拷贝再归还
	result := make([]byte, len(out))
	copy(result, out)
	encodeBufPool.Put(out[:0])
	return result, nil
}

// DecodeResponse 解码出站事件（客户端和测试使用）
func DecodeResponse(data []byte) (*Response, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	if bytes.HasPrefix(data, zstdMagic) {
		decompressed, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		data = decompressed
	}

	resp := &Response{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp, nil
}

// EventRecord 是发布到 Kafka 的事件审计记录，由归档 worker 消费
type EventRecord struct {
	ClassroomID string          `json:"classroomId"`
	UserID      string          `json:"userId"`
	Action      Action          `json:"action"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   int64           `json:"timestamp"` // Unix 毫秒
}

// EncodeEventRecord 编码审计记录
func EncodeEventRecord(rec *EventRecord) ([]byte, error) {
	return json.Marshal(rec)
}

// DecodeEventRecord 解码审计记录
func DecodeEventRecord(data []byte) (*EventRecord, error) {
	rec := &EventRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("unmarshal event record: %w", err)
	}
	return rec, nil
}
