package protocol

// Action 标识课堂事件类型，数值与前端协议保持一致
type Action uint8

const (
	ActionNone             Action = 0
	ActionJoin             Action = 1
	ActionCodeChange       Action = 2
	ActionSyncData         Action = 3
	ActionLeave            Action = 4
	ActionGetData          Action = 5
	ActionLockCode         Action = 6
	ActionUnlockCode       Action = 7
	ActionTeacherJoin      Action = 8
	ActionClassroomDeleted Action = 9
	ActionAssignmentCreate Action = 10
	ActionSubmitAssignment Action = 11
	ActionGradeAssignment  Action = 12
)

// Valid 判断动作编号是否在协议范围内
func (a Action) Valid() bool {
	return a <= ActionGradeAssignment
}

// String 返回动作名称，用于日志和指标标签
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionJoin:
		return "join"
	case ActionCodeChange:
		return "code_change"
	case ActionSyncData:
		return "sync_data"
	case ActionLeave:
		return "leave"
	case ActionGetData:
		return "get_data"
	case ActionLockCode:
		return "lock_code"
	case ActionUnlockCode:
		return "unlock_code"
	case ActionTeacherJoin:
		return "teacher_join"
	case ActionClassroomDeleted:
		return "classroom_deleted"
	case ActionAssignmentCreate:
		return "assignment_create"
	case ActionSubmitAssignment:
		return "submit_assignment"
	case ActionGradeAssignment:
		return "grade_assignment"
	default:
		return "unknown"
	}
}
