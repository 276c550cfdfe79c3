package classroom

import "fmt"

// Kind 是可恢复错误的分类，随错误回复发送给消息发送方
type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindMalformedPayload Kind = "malformed_payload"
)

// Error 携带分类信息的课堂错误，只回复给发送方，不中断连接
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError 创建带分类的课堂错误
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrUnauthenticated 连接尚未通过 Join/TeacherJoin 入场
func ErrUnauthenticated(format string, args ...any) *Error {
	return NewError(KindUnauthenticated, format, args...)
}

// ErrPermissionDenied 角色前置条件不满足
func ErrPermissionDenied(format string, args ...any) *Error {
	return NewError(KindPermissionDenied, format, args...)
}

// ErrNotFound 课堂、成员或作业不存在
func ErrNotFound(format string, args ...any) *Error {
	return NewError(KindNotFound, format, args...)
}

// ErrInvalidState 状态机不允许的转换
func ErrInvalidState(format string, args ...any) *Error {
	return NewError(KindInvalidState, format, args...)
}

// ErrMalformedPayload 载荷字段缺失或无法解析
func ErrMalformedPayload(format string, args ...any) *Error {
	return NewError(KindMalformedPayload, format, args...)
}
