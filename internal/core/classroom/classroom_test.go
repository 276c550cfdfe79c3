package classroom

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStudentSeedsPrivateWhiteboard(t *testing.T) {
	u := NewStudent("s1", nil)

	assert.Equal(t, RoleStudent, u.Role())
	assert.Equal(t, StatusOnline, u.Status())
	assert.Equal(t, WhiteboardPrivate, u.Whiteboard().Type())
	assert.Equal(t, DefaultWhiteboardCode, u.Whiteboard().Code())
	assert.Empty(t, u.Assignments())
}

func TestNewStudentReceivesExistingAssignments(t *testing.T) {
	a1 := NewAssignment("hw1", "first homework", "pass")
	a2 := NewAssignment("hw2", "second homework", "pass")

	u := NewStudent("s1", []*Assignment{a1, a2})

	require.Len(t, u.Assignments(), 2)
	ua := u.AssignmentByTitle("hw1")
	require.NotNil(t, ua)
	assert.Equal(t, AssignmentNotStarted, ua.Status())
	assert.Equal(t, WhiteboardAssignment, ua.Whiteboard().Type())
	assert.Equal(t, "# first homework\n\npass", ua.Whiteboard().Code())
}

func TestAssignmentStarterCodeCarriesDescriptionComment(t *testing.T) {
	a := NewAssignment("hw", "sum two numbers", "def add(a, b):\n    pass")

	assert.Equal(t, "# sum two numbers\n\ndef add(a, b):\n    pass", a.InitialCode())
	assert.NotEmpty(t, a.ID())
}

func TestUserAssignmentLifecycle(t *testing.T) {
	a := NewAssignment("hw", "desc", "pass")
	ua := a.Instantiate("s1")

	// NotStarted -> InProgress 只发生一次
	ua.MarkInProgress()
	assert.Equal(t, AssignmentInProgress, ua.Status())
	ua.MarkInProgress()
	assert.Equal(t, AssignmentInProgress, ua.Status())

	require.NoError(t, ua.Submit())
	assert.Equal(t, AssignmentSubmitted, ua.Status())

	// 提交后不能重复提交
	err := ua.Submit()
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindInvalidState, cerr.Kind)

	require.NoError(t, ua.ApplyGrade(80, "needs work", AssignmentCorrectable))
	assert.Equal(t, AssignmentCorrectable, ua.Status())
	require.NotNil(t, ua.Grade())
	assert.Equal(t, 80, *ua.Grade())

	// 返工后可以再次提交和评分，历史只追加
	require.NoError(t, ua.Submit())
	require.NoError(t, ua.ApplyGrade(95, "well done", AssignmentCompleted))
	assert.Equal(t, AssignmentCompleted, ua.Status())
	assert.Equal(t, []int{80, 95}, ua.GradeHistory())
	assert.Equal(t, []string{"needs work", "well done"}, ua.FeedbackHistory())
}

func TestApplyGradeRequiresSubmission(t *testing.T) {
	a := NewAssignment("hw", "desc", "pass")
	ua := a.Instantiate("s1")

	err := ua.ApplyGrade(100, "", AssignmentCompleted)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindInvalidState, cerr.Kind)
	assert.Empty(t, ua.GradeHistory())
	assert.Equal(t, AssignmentNotStarted, ua.Status())
}

func TestApplyGradeRejectsInvalidTargetStatus(t *testing.T) {
	a := NewAssignment("hw", "desc", "pass")
	ua := a.Instantiate("s1")
	require.NoError(t, ua.Submit())

	err := ua.ApplyGrade(50, "", AssignmentInProgress)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindMalformedPayload, cerr.Kind)
}

func TestClassroomMembership(t *testing.T) {
	c := New("c1")
	assert.False(t, c.Editable(), "shared whiteboard starts locked")
	assert.Equal(t, WhiteboardPublic, c.SharedWhiteboard().Type())

	teacher := NewTeacher("t1")
	s1 := NewStudent("s1", nil)
	s2 := NewStudent("s2", nil)
	c.AddUser(teacher)
	c.AddUser(s1)
	c.AddUser(s2)

	assert.Equal(t, 3, c.Size())
	assert.Same(t, teacher, c.Teacher())
	assert.Len(t, c.Students(), 2)

	s2.GoOffline()
	online := c.OnlineStudents()
	require.Len(t, online, 1)
	assert.Equal(t, "s1", online[0].ID())

	assert.True(t, c.RemoveUser("s1"))
	assert.False(t, c.RemoveUser("s1"))
	assert.Equal(t, 2, c.Size())
	assert.Nil(t, c.UserByID("s1"))
}

func TestClassroomAssignmentLookup(t *testing.T) {
	c := New("c1")
	a := c.AddAssignment(NewAssignment("hw", "desc", "pass"))

	assert.Same(t, a, c.AssignmentByTitle("hw"))
	assert.Nil(t, c.AssignmentByTitle("missing"))
}

func TestUserJSONShape(t *testing.T) {
	u := NewStudent("s1", nil)

	raw, err := json.Marshal(u)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "s1", decoded["userId"])
	assert.Equal(t, float64(RoleStudent), decoded["role"])
	assert.Equal(t, float64(StatusOnline), decoded["online"])
	assert.Contains(t, decoded, "whiteboard")

	// 空作业列表编码为 []，不是 null
	assert.Equal(t, []any{}, decoded["userAssignments"])
}

func TestClassroomJSONShape(t *testing.T) {
	c := New("c1")
	c.AddUser(NewTeacher("t1"))

	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "c1", decoded["classroomId"])
	assert.Equal(t, false, decoded["editable"])
	assert.Contains(t, decoded, "sharedWhiteboard")
	assert.Equal(t, []any{}, decoded["assignments"])
	assert.Len(t, decoded["users"], 1)
}

func TestWhiteboardTypeImmutable(t *testing.T) {
	w := NewWhiteboard(WhiteboardPrivate)
	w.SetCode("x = 1")

	assert.Equal(t, "x = 1", w.Code())
	assert.Equal(t, WhiteboardPrivate, w.Type())
}
