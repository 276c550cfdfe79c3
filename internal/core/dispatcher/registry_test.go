package dispatcher

import (
	"testing"

	"github.com/penwyp/mini-classroom/internal/core/classroom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(connID uint64, classroomID, userID string, role classroom.Role) *Session {
	return &Session{
		ConnID:      connID,
		ClassroomID: classroomID,
		userID:      userID,
		role:        role,
		phase:       PhaseJoined,
		outbox:      newOutbox(8),
	}
}

// recv 非阻塞地取出会话已入队的全部载荷
func recv(s *Session) [][]byte {
	var out [][]byte
	for {
		select {
		case payload, ok := <-s.outbox.C():
			if !ok {
				return out
			}
			out = append(out, payload)
		default:
			return out
		}
	}
}

func TestRegistryRegisterAndSendTo(t *testing.T) {
	r := NewRegistry()
	s := newSession(1, "c1", "u1", classroom.RoleStudent)
	r.Register(s)

	assert.True(t, r.Connected("c1", "u1"))
	assert.True(t, r.SendTo("c1", "u1", []byte("hi")))
	assert.Len(t, recv(s), 1)

	assert.False(t, r.SendTo("c1", "ghost", []byte("hi")))
	assert.False(t, r.SendTo("c2", "u1", []byte("hi")))
}

func TestRegistryReconnectSupersedes(t *testing.T) {
	r := NewRegistry()
	old := newSession(1, "c1", "u1", classroom.RoleStudent)
	r.Register(old)

	replacement := newSession(2, "c1", "u1", classroom.RoleStudent)
	r.Register(replacement)

	// 旧会话的出站队列被关闭，新会话接收投递
	_, ok := <-old.outbox.C()
	assert.False(t, ok, "superseded outbox must be closed")

	assert.True(t, r.SendTo("c1", "u1", []byte("hi")))
	assert.Len(t, recv(replacement), 1)
	assert.Equal(t, 1, r.Size("c1"))
}

func TestRegistryUnregisterOnlyRemovesOwnSession(t *testing.T) {
	r := NewRegistry()
	old := newSession(1, "c1", "u1", classroom.RoleStudent)
	r.Register(old)
	replacement := newSession(2, "c1", "u1", classroom.RoleStudent)
	r.Register(replacement)

	// 被顶替会话的迟到注销不能误删新会话
	assert.False(t, r.Unregister(old))
	assert.True(t, r.Connected("c1", "u1"))

	assert.True(t, r.Unregister(replacement))
	assert.False(t, r.Connected("c1", "u1"))
	assert.False(t, r.Unregister(replacement), "second unregister must report not registered")
}

func TestRegistryBroadcastSelection(t *testing.T) {
	r := NewRegistry()
	teacher := newSession(1, "c1", "t1", classroom.RoleTeacher)
	s1 := newSession(2, "c1", "s1", classroom.RoleStudent)
	s2 := newSession(3, "c1", "s2", classroom.RoleStudent)
	other := newSession(4, "c2", "s3", classroom.RoleStudent)
	for _, s := range []*Session{teacher, s1, s2, other} {
		r.Register(s)
	}

	require.Equal(t, 3, r.Broadcast("c1", SelectAll(), []byte("all")))
	assert.Len(t, recv(other), 0, "broadcast must not cross classrooms")

	require.Equal(t, 2, r.Broadcast("c1", SelectAllExcept("s1"), []byte("not-s1")))
	require.Equal(t, 1, r.Broadcast("c1", SelectRole(classroom.RoleTeacher), []byte("teachers")))
	require.Equal(t, 1, r.Broadcast("c1", SelectUser("s2"), []byte("just-s2")))

	assert.Len(t, recv(teacher), 3)
	assert.Len(t, recv(s1), 1)
	assert.Len(t, recv(s2), 3)
}

func TestRegistryBroadcastAfterDisconnectDoesNotFail(t *testing.T) {
	r := NewRegistry()
	s1 := newSession(1, "c1", "s1", classroom.RoleStudent)
	s2 := newSession(2, "c1", "s2", classroom.RoleStudent)
	r.Register(s1)
	r.Register(s2)

	r.Unregister(s1)
	s1.outbox.Close()

	assert.NotPanics(t, func() {
		assert.Equal(t, 1, r.Broadcast("c1", SelectAll(), []byte("x")))
	})
	assert.Len(t, recv(s2), 1)
}

func TestRegistryDropClassroom(t *testing.T) {
	r := NewRegistry()
	s1 := newSession(1, "c1", "s1", classroom.RoleStudent)
	s2 := newSession(2, "c1", "s2", classroom.RoleStudent)
	r.Register(s1)
	r.Register(s2)

	dropped := r.DropClassroom("c1")
	assert.Len(t, dropped, 2)
	assert.Equal(t, 0, r.Size("c1"))
	assert.False(t, r.Connected("c1", "s1"))
}

func TestOutboxOverflowDropsNewest(t *testing.T) {
	o := newOutbox(2)

	assert.Equal(t, pushEnqueued, o.Push([]byte("1")))
	assert.Equal(t, pushEnqueued, o.Push([]byte("2")))
	assert.Equal(t, pushOverflow, o.Push([]byte("3")))

	o.Close()
	assert.Equal(t, pushClosed, o.Push([]byte("4")))
	// Close 幂等
	assert.NotPanics(t, o.Close)
}
