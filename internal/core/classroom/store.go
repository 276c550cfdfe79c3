package classroom

import "sync"

// Manager 持有课堂标识到课堂的映射。
// 外层读写锁只保护映射本身；每个课堂再带一把读写锁，
// 同一课堂的变更互斥，不同课堂互不阻塞。
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu sync.RWMutex
	c  *Classroom
}

// NewManager 创建课堂管理器
func NewManager() *Manager {
	return &Manager{
		entries: make(map[string]*entry),
	}
}

// Ensure 获取课堂，不存在时创建空课堂；幂等，返回是否新建
func (m *Manager) Ensure(classroomID string) (created bool) {
	m.mu.RLock()
	_, ok := m.entries[classroomID]
	m.mu.RUnlock()
	if ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[classroomID]; ok {
		return false
	}
	m.entries[classroomID] = &entry{c: New(classroomID)}
	return true
}

// Exists 判断课堂是否存在，无副作用
func (m *Manager) Exists(classroomID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[classroomID]
	return ok
}

// Remove 移除课堂，不存在时为空操作
func (m *Manager) Remove(classroomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, classroomID)
}

// Count 返回课堂数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// With 在课堂的独占锁内执行 fn，课堂不存在时返回 NotFound。
// 读改写序列必须整体放进一次 With 调用。
func (m *Manager) With(classroomID string, fn func(c *Classroom) error) error {
	m.mu.RLock()
	e, ok := m.entries[classroomID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound("classroom %q does not exist", classroomID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.c)
}

// View 在课堂的共享锁内执行 fn，供只读快照使用
func (m *Manager) View(classroomID string, fn func(c *Classroom) error) error {
	m.mu.RLock()
	e, ok := m.entries[classroomID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound("classroom %q does not exist", classroomID)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.c)
}
