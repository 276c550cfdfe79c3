package classroom

// Role 表示课堂成员角色，数值与前端协议保持一致
type Role int

const (
	RoleStudent Role = 0
	RoleTeacher Role = 1
)

// String 返回角色名称
func (r Role) String() string {
	if r == RoleTeacher {
		return "teacher"
	}
	return "student"
}

// UserStatus 表示成员在线状态
type UserStatus int

const (
	StatusOffline UserStatus = 0
	StatusOnline  UserStatus = 1
)

func (s UserStatus) String() string {
	if s == StatusOnline {
		return "online"
	}
	return "offline"
}

// AssignmentStatus 表示作业实例的生命周期状态
type AssignmentStatus int

const (
	AssignmentNotStarted  AssignmentStatus = 0
	AssignmentInProgress  AssignmentStatus = 1
	AssignmentSubmitted   AssignmentStatus = 2
	AssignmentCompleted   AssignmentStatus = 3
	AssignmentCorrectable AssignmentStatus = 4
)

func (s AssignmentStatus) String() string {
	switch s {
	case AssignmentNotStarted:
		return "not_started"
	case AssignmentInProgress:
		return "in_progress"
	case AssignmentSubmitted:
		return "submitted"
	case AssignmentCompleted:
		return "completed"
	case AssignmentCorrectable:
		return "correctable"
	default:
		return "unknown"
	}
}

// WhiteboardType 表示白板可见范围，构造后不可变
type WhiteboardType int

const (
	WhiteboardPublic     WhiteboardType = 0
	WhiteboardPrivate    WhiteboardType = 1
	WhiteboardAssignment WhiteboardType = 2
)

func (t WhiteboardType) String() string {
	switch t {
	case WhiteboardPublic:
		return "public"
	case WhiteboardPrivate:
		return "private"
	case WhiteboardAssignment:
		return "assignment"
	default:
		return "unknown"
	}
}
