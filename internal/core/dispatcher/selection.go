package dispatcher

import "github.com/penwyp/mini-classroom/internal/core/classroom"

type selectionKind int

const (
	selectAll selectionKind = iota
	selectRole
	selectUser
	selectAllExcept
)

// Selection 决定一次投递的目标集合：全体成员、某角色、单个成员或除某人外的全体
type Selection struct {
	kind   selectionKind
	role   classroom.Role
	userID string
}

// SelectAll 投递给课堂全体在线成员
func SelectAll() Selection {
	return Selection{kind: selectAll}
}

// SelectRole 只投递给指定角色的成员
func SelectRole(role classroom.Role) Selection {
	return Selection{kind: selectRole, role: role}
}

// SelectUser 只投递给单个成员
func SelectUser(userID string) Selection {
	return Selection{kind: selectUser, userID: userID}
}

// SelectAllExcept 投递给除指定成员外的全体成员
func SelectAllExcept(userID string) Selection {
	return Selection{kind: selectAllExcept, userID: userID}
}

// matches 判断某会话是否属于目标集合
func (sel Selection) matches(userID string, role classroom.Role) bool {
	switch sel.kind {
	case selectRole:
		return role == sel.role
	case selectUser:
		return userID == sel.userID
	case selectAllExcept:
		return userID != sel.userID
	default:
		return true
	}
}
