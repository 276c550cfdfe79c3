package cache

import "fmt"

// RedisKeyBuilder provides methods to generate Redis keys consistently
type RedisKeyBuilder struct{}

// NewRedisKeyBuilder creates a new RedisKeyBuilder instance
func NewRedisKeyBuilder() *RedisKeyBuilder {
	return &RedisKeyBuilder{}
}

// ActiveClassroomsKey generates the key of the set holding live classroom ids
func (b *RedisKeyBuilder) ActiveClassroomsKey() string {
	return "classrooms:active"
}

// ClassroomEventsKey generates a key for the archived event history of a classroom
func (b *RedisKeyBuilder) ClassroomEventsKey(classroomID string) string {
	return fmt.Sprintf("classroom:{%s}:events", classroomID)
}

// ClassroomRankingKey generates a key for user activity rankings in a classroom
func (b *RedisKeyBuilder) ClassroomRankingKey(classroomID string) string {
	return fmt.Sprintf("classroom:{%s}:ranking", classroomID)
}

// RateLimitKey generates a rate limiting key for a user
func (b *RedisKeyBuilder) RateLimitKey(userID string) string {
	return fmt.Sprintf("rate:user:%s", userID)
}
