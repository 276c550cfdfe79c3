package classroom

import "encoding/json"

// User 是课堂成员，归属于唯一一个课堂
type User struct {
	id          string
	role        Role
	whiteboard  *Whiteboard
	assignments []*UserAssignment
	status      UserStatus
}

// NewStudent 创建学生成员，并为课堂中已发布的作业补发实例
func NewStudent(userID string, existing []*Assignment) *User {
	u := &User{
		id:         userID,
		role:       RoleStudent,
		whiteboard: NewWhiteboard(WhiteboardPrivate),
		status:     StatusOnline,
	}
	for _, a := range existing {
		u.assignments = append(u.assignments, a.Instantiate(userID))
	}
	return u
}

// NewTeacher 创建教师成员
func NewTeacher(userID string) *User {
	return &User{
		id:         userID,
		role:       RoleTeacher,
		whiteboard: NewWhiteboard(WhiteboardPrivate),
		status:     StatusOnline,
	}
}

func (u *User) ID() string              { return u.id }
func (u *User) Role() Role              { return u.role }
func (u *User) Whiteboard() *Whiteboard { return u.whiteboard }
func (u *User) Status() UserStatus      { return u.status }

// Assignments 返回该成员的作业实例列表
func (u *User) Assignments() []*UserAssignment {
	return u.assignments
}

// AssignmentByTitle 按作业标题查找实例
func (u *User) AssignmentByTitle(title string) *UserAssignment {
	for _, ua := range u.assignments {
		if ua.Assignment().Title() == title {
			return ua
		}
	}
	return nil
}

// AddAssignment 追加一个作业实例
func (u *User) AddAssignment(ua *UserAssignment) *UserAssignment {
	u.assignments = append(u.assignments, ua)
	return ua
}

// GoOnline 标记成员在线（重连时复用原记录）
func (u *User) GoOnline() {
	u.status = StatusOnline
}

// GoOffline 标记成员离线，保留记录以便重连
func (u *User) GoOffline() {
	u.status = StatusOffline
}

// MarshalJSON 输出前端协议的 camelCase 字段
func (u *User) MarshalJSON() ([]byte, error) {
	assignments := u.assignments
	if assignments == nil {
		assignments = []*UserAssignment{}
	}
	return json.Marshal(struct {
		UserID          string            `json:"userId"`
		Role            Role              `json:"role"`
		Online          UserStatus        `json:"online"`
		Whiteboard      *Whiteboard       `json:"whiteboard"`
		UserAssignments []*UserAssignment `json:"userAssignments"`
	}{
		UserID:          u.id,
		Role:            u.role,
		Online:          u.status,
		Whiteboard:      u.whiteboard,
		UserAssignments: assignments,
	})
}
