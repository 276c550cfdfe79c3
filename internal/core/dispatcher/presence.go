package dispatcher

import "context"

// Presence 把存活课堂登记到外部存储（如 Redis 活跃课堂集合），
// 供归档 worker 和运维侧发现正在进行的课堂
type Presence interface {
	RegisterClassroom(ctx context.Context, classroomID string) error
	UnregisterClassroom(ctx context.Context, classroomID string) error
}

// NopPresence 不做任何登记，供测试使用
type NopPresence struct{}

func (NopPresence) RegisterClassroom(context.Context, string) error   { return nil }
func (NopPresence) UnregisterClassroom(context.Context, string) error { return nil }
