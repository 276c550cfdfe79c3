package classroom

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerEnsureIdempotent(t *testing.T) {
	m := NewManager()

	assert.True(t, m.Ensure("c1"))
	assert.False(t, m.Ensure("c1"))
	assert.True(t, m.Exists("c1"))
	assert.Equal(t, 1, m.Count())
}

func TestManagerWithMissingClassroom(t *testing.T) {
	m := NewManager()

	err := m.With("ghost", func(c *Classroom) error {
		t.Fatal("callback must not run for missing classroom")
		return nil
	})
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindNotFound, cerr.Kind)
}

func TestManagerRemove(t *testing.T) {
	m := NewManager()
	m.Ensure("c1")

	m.Remove("c1")
	assert.False(t, m.Exists("c1"))
	// 幂等
	m.Remove("c1")
	assert.Equal(t, 0, m.Count())
}

func TestManagerMutationsVisibleAcrossCalls(t *testing.T) {
	m := NewManager()
	m.Ensure("c1")

	require.NoError(t, m.With("c1", func(c *Classroom) error {
		c.AddUser(NewStudent("s1", nil))
		return nil
	}))

	require.NoError(t, m.View("c1", func(c *Classroom) error {
		assert.Equal(t, 1, c.Size())
		return nil
	}))
}

func TestManagerConcurrentEnsureAndMutate(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup

	// 并发 ensure 同一课堂只创建一次，并发加人全部落账
	created := make(chan bool, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			created <- m.Ensure("c1")
			_ = m.With("c1", func(c *Classroom) error {
				c.AddUser(NewStudent(string(rune('a'+n%26))+"-"+string(rune('0'+n/26)), nil))
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(created)

	var creations int
	for ok := range created {
		if ok {
			creations++
		}
	}
	assert.Equal(t, 1, creations)
	assert.Equal(t, 1, m.Count())
}
