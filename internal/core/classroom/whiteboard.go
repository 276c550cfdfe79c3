package classroom

import "encoding/json"

// DefaultWhiteboardCode 是新建白板的初始代码
const DefaultWhiteboardCode = `print("Hello world!")`

// Whiteboard 是一块可见范围固定的代码缓冲区。
// 可见范围在构造时确定，之后不可变；代码内容由持有课堂锁的调用方修改。
type Whiteboard struct {
	code   string
	wbType WhiteboardType
}

// NewWhiteboard 创建带默认代码的白板
func NewWhiteboard(wbType WhiteboardType) *Whiteboard {
	return &Whiteboard{
		code:   DefaultWhiteboardCode,
		wbType: wbType,
	}
}

// NewWhiteboardWithCode 创建带指定初始代码的白板
func NewWhiteboardWithCode(wbType WhiteboardType, code string) *Whiteboard {
	return &Whiteboard{
		code:   code,
		wbType: wbType,
	}
}

// Code 返回当前代码内容
func (w *Whiteboard) Code() string {
	return w.code
}

// SetCode 更新代码内容
func (w *Whiteboard) SetCode(code string) {
	w.code = code
}

// Type 返回白板的可见范围
func (w *Whiteboard) Type() WhiteboardType {
	return w.wbType
}

// MarshalJSON 输出前端协议的 camelCase 字段
func (w *Whiteboard) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code           string         `json:"code"`
		WhiteboardType WhiteboardType `json:"whiteboardType"`
	}{
		Code:           w.code,
		WhiteboardType: w.wbType,
	})
}
