package classroom

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Assignment 是教师发布的作业模板，创建后不可变，
// 由同一课堂内所有学生的 UserAssignment 共享
type Assignment struct {
	id          string
	title       string
	description string
	initialCode string
}

// NewAssignment 创建作业模板，起始代码前附加描述注释行
func NewAssignment(title, description, starterCode string) *Assignment {
	return &Assignment{
		id:          uuid.NewString(),
		title:       title,
		description: description,
		initialCode: "# " + description + "\n\n" + starterCode,
	}
}

func (a *Assignment) ID() string          { return a.id }
func (a *Assignment) Title() string       { return a.title }
func (a *Assignment) Description() string { return a.description }
func (a *Assignment) InitialCode() string { return a.initialCode }

// Instantiate 为指定学生创建作业实例
func (a *Assignment) Instantiate(userID string) *UserAssignment {
	return &UserAssignment{
		userID:     userID,
		assignment: a,
		whiteboard: NewWhiteboardWithCode(WhiteboardAssignment, a.initialCode),
		status:     AssignmentNotStarted,
	}
}

// MarshalJSON 输出前端协议的 camelCase 字段
func (a *Assignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		InitialCode string `json:"initialCode"`
	}{
		ID:          a.id,
		Title:       a.title,
		Description: a.description,
		InitialCode: a.initialCode,
	})
}

// UserAssignment 是某个学生对某个作业的工作实例与评分记录。
// 状态只能前进，例外是教师要求返工时 Submitted/Completed 可回到 Correctable；
// 评分与反馈历史只追加，保留完整审计轨迹。
type UserAssignment struct {
	userID          string
	assignment      *Assignment
	whiteboard      *Whiteboard
	grade           *int
	feedback        *string
	gradeHistory    []int
	feedbackHistory []string
	status          AssignmentStatus
}

func (ua *UserAssignment) UserID() string            { return ua.userID }
func (ua *UserAssignment) Assignment() *Assignment   { return ua.assignment }
func (ua *UserAssignment) Whiteboard() *Whiteboard   { return ua.whiteboard }
func (ua *UserAssignment) Status() AssignmentStatus  { return ua.status }
func (ua *UserAssignment) GradeHistory() []int       { return ua.gradeHistory }
func (ua *UserAssignment) FeedbackHistory() []string { return ua.feedbackHistory }

// Grade 返回当前成绩，未评分时为 nil
func (ua *UserAssignment) Grade() *int { return ua.grade }

// Feedback 返回当前反馈，未评分时为 nil
func (ua *UserAssignment) Feedback() *string { return ua.feedback }

// MarkInProgress 学生首次编辑作业白板时由 NotStarted 进入 InProgress
func (ua *UserAssignment) MarkInProgress() {
	if ua.status == AssignmentNotStarted {
		ua.status = AssignmentInProgress
	}
}

// Submit 提交作业，只允许从 NotStarted/InProgress/Correctable 出发
func (ua *UserAssignment) Submit() error {
	switch ua.status {
	case AssignmentNotStarted, AssignmentInProgress, AssignmentCorrectable:
		ua.status = AssignmentSubmitted
		return nil
	default:
		return ErrInvalidState("assignment %q already %s", ua.assignment.Title(), ua.status)
	}
}

// ApplyGrade 记录一次评分，状态进入 Completed 或 Correctable，
// 历史只追加不回退
func (ua *UserAssignment) ApplyGrade(grade int, feedback string, next AssignmentStatus) error {
	if next != AssignmentCompleted && next != AssignmentCorrectable {
		return ErrMalformedPayload("grade must resolve to completed or correctable, got %s", next)
	}
	if ua.status != AssignmentSubmitted && ua.status != AssignmentCompleted {
		return ErrInvalidState("cannot grade assignment %q in status %s", ua.assignment.Title(), ua.status)
	}

	ua.grade = &grade
	ua.feedback = &feedback
	ua.gradeHistory = append(ua.gradeHistory, grade)
	ua.feedbackHistory = append(ua.feedbackHistory, feedback)
	ua.status = next
	return nil
}

// MarshalJSON 输出前端协议的 camelCase 字段
func (ua *UserAssignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		UserID          string           `json:"userId"`
		Grade           *int             `json:"grade"`
		Assignment      *Assignment      `json:"assignment"`
		Whiteboard      *Whiteboard      `json:"whiteboard"`
		Feedback        *string          `json:"feedback"`
		GradeHistory    []int            `json:"gradeHistory"`
		FeedbackHistory []string         `json:"feedbackHistory"`
		Status          AssignmentStatus `json:"status"`
	}{
		UserID:          ua.userID,
		Grade:           ua.grade,
		Assignment:      ua.assignment,
		Whiteboard:      ua.whiteboard,
		Feedback:        ua.feedback,
		GradeHistory:    ua.gradeHistory,
		FeedbackHistory: ua.feedbackHistory,
		Status:          ua.status,
	})
}
