package classroom

import "encoding/json"

// Classroom 是一组共享广播范围与作业集合的成员。
// 字段不自带锁，所有访问都经由 Manager 的每课堂锁串行化。
type Classroom struct {
	id          string
	users       []*User
	shared      *Whiteboard
	assignments []*Assignment
	editable    bool
}

// New 创建空课堂，共享白板初始为锁定状态
func New(classroomID string) *Classroom {
	return &Classroom{
		id:       classroomID,
		shared:   NewWhiteboard(WhiteboardPublic),
		editable: false,
	}
}

func (c *Classroom) ID() string                   { return c.id }
func (c *Classroom) SharedWhiteboard() *Whiteboard { return c.shared }
func (c *Classroom) Editable() bool               { return c.editable }
func (c *Classroom) SetEditable(editable bool)    { c.editable = editable }

// Users 返回全部成员（含离线）
func (c *Classroom) Users() []*User {
	return c.users
}

// Size 返回成员数量
func (c *Classroom) Size() int {
	return len(c.users)
}

// UserByID 按成员 ID 查找
func (c *Classroom) UserByID(userID string) *User {
	for _, u := range c.users {
		if u.ID() == userID {
			return u
		}
	}
	return nil
}

// AddUser 添加成员
func (c *Classroom) AddUser(u *User) {
	c.users = append(c.users, u)
}

// RemoveUser 移除成员，不存在时为空操作
func (c *Classroom) RemoveUser(userID string) bool {
	for i, u := range c.users {
		if u.ID() == userID {
			c.users = append(c.users[:i], c.users[i+1:]...)
			return true
		}
	}
	return false
}

// Students 返回全部学生
func (c *Classroom) Students() []*User {
	var students []*User
	for _, u := range c.users {
		if u.Role() == RoleStudent {
			students = append(students, u)
		}
	}
	return students
}

// OnlineStudents 返回在线学生
func (c *Classroom) OnlineStudents() []*User {
	var students []*User
	for _, u := range c.users {
		if u.Role() == RoleStudent && u.Status() == StatusOnline {
			students = append(students, u)
		}
	}
	return students
}

// Teacher 返回课堂教师，不存在时为 nil
func (c *Classroom) Teacher() *User {
	for _, u := range c.users {
		if u.Role() == RoleTeacher {
			return u
		}
	}
	return nil
}

// Assignments 返回已发布的作业模板
func (c *Classroom) Assignments() []*Assignment {
	return c.assignments
}

// AssignmentByTitle 按标题查找作业模板
func (c *Classroom) AssignmentByTitle(title string) *Assignment {
	for _, a := range c.assignments {
		if a.Title() == title {
			return a
		}
	}
	return nil
}

// AddAssignment 发布作业模板
func (c *Classroom) AddAssignment(a *Assignment) *Assignment {
	c.assignments = append(c.assignments, a)
	return a
}

// MarshalJSON 输出前端协议的 camelCase 字段
func (c *Classroom) MarshalJSON() ([]byte, error) {
	users := c.users
	if users == nil {
		users = []*User{}
	}
	assignments := c.assignments
	if assignments == nil {
		assignments = []*Assignment{}
	}
	return json.Marshal(struct {
		ClassroomID      string        `json:"classroomId"`
		Users            []*User       `json:"users"`
		SharedWhiteboard *Whiteboard   `json:"sharedWhiteboard"`
		Assignments      []*Assignment `json:"assignments"`
		Editable         bool          `json:"editable"`
	}{
		ClassroomID:      c.id,
		Users:            users,
		SharedWhiteboard: c.shared,
		Assignments:      assignments,
		Editable:         c.editable,
	})
}
