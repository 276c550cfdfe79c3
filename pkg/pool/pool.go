package pool

import "sync"

// Resetter 定义对象重置接口
type Resetter interface {
	Reset()
}

// Pool 是一个类型安全的 sync.Pool 封装
type Pool[T any] struct {
	pool sync.Pool
}

// New 创建一个新的类型安全池
func New[T any](newFunc func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() interface{} {
				return newFunc()
			},
		},
	}
}

// Get 从池中获取对象
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put 归还对象到池中，如果对象实现了 Resetter，则先调用 Reset
func (p *Pool[T]) Put(obj T) {
	if resetter, ok := any(obj).(Resetter); ok {
		resetter.Reset()
	}
	p.pool.Put(obj)
}
