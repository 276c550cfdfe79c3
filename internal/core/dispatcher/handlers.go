package dispatcher

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/penwyp/mini-classroom/internal/core/classroom"
	"github.com/penwyp/mini-classroom/internal/core/observability"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/penwyp/mini-classroom/pkg/protocol"
	"go.uber.org/zap"
)

// snapshot 是入场和全量同步回复的载荷
type snapshot struct {
	Classroom      json.RawMessage `json:"classroom"`
	User           json.RawMessage `json:"user"`
	Teacher        json.RawMessage `json:"teacher,omitempty"`
	OnlineStudents json.RawMessage `json:"onlineStudents"`
}

// buildSnapshot 在课堂锁内把当前状态编码成快照，
// 锁释放后实体可能继续变化，编码必须在锁内完成
func buildSnapshot(c *classroom.Classroom, user *classroom.User) (*snapshot, error) {
	classroomJSON, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	studentsJSON, err := json.Marshal(c.OnlineStudents())
	if err != nil {
		return nil, err
	}
	snap := &snapshot{
		Classroom:      classroomJSON,
		User:           userJSON,
		OnlineStudents: studentsJSON,
	}
	if t := c.Teacher(); t != nil {
		if snap.Teacher, err = json.Marshal(t); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// ensureClassroom 幂等创建课堂，首次创建时更新指标并登记活跃课堂
func (d *Dispatcher) ensureClassroom(ctx context.Context, classroomID string) {
	if !d.store.Ensure(classroomID) {
		return
	}
	observability.ActiveClassrooms.Inc()
	if err := d.presence.RegisterClassroom(ctx, classroomID); err != nil {
		logger.Warn("Failed to register classroom presence",
			zap.String("classroomID", classroomID),
			zap.Error(err))
	}
	logger.Info("Classroom created", zap.String("classroomID", classroomID))
}

// dropClassroom 从存储移除课堂并注销活跃登记
func (d *Dispatcher) dropClassroom(ctx context.Context, classroomID string) {
	d.store.Remove(classroomID)
	observability.ActiveClassrooms.Dec()
	if err := d.presence.UnregisterClassroom(ctx, classroomID); err != nil {
		logger.Warn("Failed to unregister classroom presence",
			zap.String("classroomID", classroomID),
			zap.Error(err))
	}
	logger.Info("Classroom removed", zap.String("classroomID", classroomID))
}

// admit 完成学生或教师的入场：建立或复用成员记录、登记连接、
// 向课堂其余成员广播入场事件、向本人回全量快照
func (d *Dispatcher) admit(ctx context.Context, s *Session, req *protocol.Request, asTeacher bool) error {
	if req.UserID == "" {
		return classroom.ErrMalformedPayload("user_id is required to join")
	}

	d.ensureClassroom(ctx, s.ClassroomID)

	var (
		snap     *snapshot
		userJSON json.RawMessage
		role     classroom.Role
	)
	err := d.store.With(s.ClassroomID, func(c *classroom.Classroom) error {
		user := c.UserByID(req.UserID)
		if user == nil {
			if asTeacher {
				user = classroom.NewTeacher(req.UserID)
			} else {
				user = classroom.NewStudent(req.UserID, c.Assignments())
			}
			c.AddUser(user)
		} else {
			// 重连复用原记录，作业和白板内容得以保留
			user.GoOnline()
		}
		role = user.Role()

		var err error
		if userJSON, err = json.Marshal(user); err != nil {
			return err
		}
		snap, err = buildSnapshot(c, user)
		return err
	})
	if err != nil {
		return err
	}

	s.userID = req.UserID
	s.role = role
	s.phase = PhaseJoined
	d.registry.Register(s)

	joinAction := protocol.ActionJoin
	if asTeacher {
		joinAction = protocol.ActionTeacherJoin
	}
	d.fanout.Deliver(ctx, s.ClassroomID, s.userID, SelectAllExcept(s.userID),
		protocol.NewResponse(joinAction, userJSON))
	d.fanout.Reply(s, protocol.NewResponse(protocol.ActionSyncData, snap))

	logger.Info("User joined classroom",
		zap.Uint64("connID", s.ConnID),
		zap.String("classroomID", s.ClassroomID),
		zap.String("userID", s.userID),
		zap.String("role", role.String()))
	return nil
}

func (d *Dispatcher) handleJoin(ctx context.Context, s *Session, req *protocol.Request) error {
	return d.admit(ctx, s, req, false)
}

func (d *Dispatcher) handleTeacherJoin(ctx context.Context, s *Session, req *protocol.Request) error {
	return d.admit(ctx, s, req, true)
}

// parseWhiteboardType 解析目标白板类型，缺省为共享白板
func parseWhiteboardType(raw string) (classroom.WhiteboardType, error) {
	if raw == "" {
		return classroom.WhiteboardPublic, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < int(classroom.WhiteboardPublic) || n > int(classroom.WhiteboardAssignment) {
		return 0, classroom.ErrMalformedPayload("invalid whiteboardType %q", raw)
	}
	return classroom.WhiteboardType(n), nil
}

// handleCodeChange 把编辑写入目标白板并广播给课堂其余成员。
// 光标字段（pos/row/col）随 data 原样透传，不落入实体状态
func (d *Dispatcher) handleCodeChange(ctx context.Context, s *Session, req *protocol.Request) error {
	code, ok := req.Data["code"]
	if !ok {
		return classroom.ErrMalformedPayload("code field is required")
	}
	wbType, err := parseWhiteboardType(req.Field("whiteboardType"))
	if err != nil {
		return err
	}

	targetID := req.Field("targetUserId")
	if targetID == "" {
		targetID = s.userID
	}
	if targetID != s.userID && s.role != classroom.RoleTeacher {
		return classroom.ErrPermissionDenied("students may only edit their own whiteboards")
	}

	err = d.store.With(s.ClassroomID, func(c *classroom.Classroom) error {
		switch wbType {
		case classroom.WhiteboardPublic:
			if s.role == classroom.RoleStudent && !c.Editable() {
				return classroom.ErrInvalidState("shared whiteboard is locked")
			}
			c.SharedWhiteboard().SetCode(code)

		case classroom.WhiteboardPrivate:
			target := c.UserByID(targetID)
			if target == nil {
				return classroom.ErrNotFound("user %q not in classroom %q", targetID, s.ClassroomID)
			}
			target.Whiteboard().SetCode(code)

		case classroom.WhiteboardAssignment:
			target := c.UserByID(targetID)
			if target == nil {
				return classroom.ErrNotFound("user %q not in classroom %q", targetID, s.ClassroomID)
			}
			title := req.Field("title")
			ua := target.AssignmentByTitle(title)
			if ua == nil {
				return classroom.ErrNotFound("assignment %q not found for user %q", title, targetID)
			}
			if targetID == s.userID {
				ua.MarkInProgress()
			}
			ua.Whiteboard().SetCode(code)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 回显编辑事件，附带发送方身份，其余字段原样透传
	echo := make(map[string]string, len(req.Data)+1)
	for k, v := range req.Data {
		echo[k] = v
	}
	echo["userId"] = s.userID
	d.fanout.Deliver(ctx, s.ClassroomID, s.userID, SelectAllExcept(s.userID),
		protocol.NewResponse(protocol.ActionCodeChange, echo))
	return nil
}

// handleGetData 处理 SyncData/GetData：无副作用，只回发送方。
// scope 为空时回全量快照，否则回指定白板
func (d *Dispatcher) handleGetData(ctx context.Context, s *Session, req *protocol.Request) error {
	scope := req.Field("scope")

	if scope == "" {
		var snap *snapshot
		err := d.store.View(s.ClassroomID, func(c *classroom.Classroom) error {
			user := c.UserByID(s.userID)
			if user == nil {
				return errStateDesync
			}
			var err error
			snap, err = buildSnapshot(c, user)
			return err
		})
		if err != nil {
			return err
		}
		d.fanout.Reply(s, protocol.NewResponse(protocol.ActionSyncData, snap))
		return nil
	}

	targetID := req.Field("targetUserId")
	if targetID == "" {
		targetID = s.userID
	}
	if targetID != s.userID && s.role != classroom.RoleTeacher {
		return classroom.ErrPermissionDenied("students may only query their own whiteboards")
	}

	var payload json.RawMessage
	err := d.store.View(s.ClassroomID, func(c *classroom.Classroom) error {
		switch scope {
		case "public":
			var err error
			payload, err = json.Marshal(c.SharedWhiteboard())
			return err
		case "private":
			target := c.UserByID(targetID)
			if target == nil {
				return classroom.ErrNotFound("user %q not in classroom %q", targetID, s.ClassroomID)
			}
			var err error
			payload, err = json.Marshal(target.Whiteboard())
			return err
		case "assignment":
			target := c.UserByID(targetID)
			if target == nil {
				return classroom.ErrNotFound("user %q not in classroom %q", targetID, s.ClassroomID)
			}
			ua := target.AssignmentByTitle(req.Field("title"))
			if ua == nil {
				return classroom.ErrNotFound("assignment %q not found for user %q", req.Field("title"), targetID)
			}
			var err error
			payload, err = json.Marshal(ua)
			return err
		default:
			return classroom.ErrMalformedPayload("unknown scope %q", scope)
		}
	})
	if err != nil {
		return err
	}
	d.fanout.Reply(s, protocol.NewResponse(protocol.ActionGetData, payload))
	return nil
}

// handleLockToggle 教师锁定/解锁共享白板，广播给课堂其余成员
func (d *Dispatcher) handleLockToggle(ctx context.Context, s *Session, req *protocol.Request) error {
	if err := d.requireTeacher(s); err != nil {
		return err
	}

	editable := req.Action == protocol.ActionUnlockCode
	err := d.store.With(s.ClassroomID, func(c *classroom.Classroom) error {
		c.SetEditable(editable)
		return nil
	})
	if err != nil {
		return err
	}

	d.fanout.Deliver(ctx, s.ClassroomID, s.userID, SelectAllExcept(s.userID),
		protocol.NewResponse(req.Action, map[string]any{
			"userId":   s.userID,
			"editable": editable,
		}))
	return nil
}

// handleAssignmentCreate 教师发布作业：创建模板并为每个在籍学生
// 生成 NotStarted 实例，广播给课堂全体
func (d *Dispatcher) handleAssignmentCreate(ctx context.Context, s *Session, req *protocol.Request) error {
	if err := d.requireTeacher(s); err != nil {
		return err
	}
	title := req.Field("title")
	if title == "" {
		return classroom.ErrMalformedPayload("title field is required")
	}

	var assignmentJSON json.RawMessage
	err := d.store.With(s.ClassroomID, func(c *classroom.Classroom) error {
		if c.AssignmentByTitle(title) != nil {
			return classroom.ErrInvalidState("assignment %q already exists", title)
		}
		a := classroom.NewAssignment(title, req.Field("description"), req.Field("code"))
		c.AddAssignment(a)
		for _, student := range c.Students() {
			student.AddAssignment(a.Instantiate(student.ID()))
		}
		var err error
		assignmentJSON, err = json.Marshal(a)
		return err
	})
	if err != nil {
		return err
	}

	d.fanout.Deliver(ctx, s.ClassroomID, s.userID, SelectAll(),
		protocol.NewResponse(protocol.ActionAssignmentCreate, assignmentJSON))
	logger.Info("Assignment published",
		zap.String("classroomID", s.ClassroomID),
		zap.String("teacherID", s.userID),
		zap.String("title", title))
	return nil
}

// handleSubmitAssignment 学生提交作业，只通知教师角色成员
func (d *Dispatcher) handleSubmitAssignment(ctx context.Context, s *Session, req *protocol.Request) error {
	if s.role != classroom.RoleStudent {
		return classroom.ErrPermissionDenied("only students may submit assignments")
	}
	title := req.Field("title")
	if title == "" {
		return classroom.ErrMalformedPayload("title field is required")
	}

	var uaJSON json.RawMessage
	err := d.store.With(s.ClassroomID, func(c *classroom.Classroom) error {
		user := c.UserByID(s.userID)
		if user == nil {
			return errStateDesync
		}
		ua := user.AssignmentByTitle(title)
		if ua == nil {
			return classroom.ErrNotFound("assignment %q not found for user %q", title, s.userID)
		}
		// 提交快照随提交落入作业白板
		if code, ok := req.Data["code"]; ok {
			ua.Whiteboard().SetCode(code)
		}
		if err := ua.Submit(); err != nil {
			return err
		}
		var err error
		uaJSON, err = json.Marshal(ua)
		return err
	})
	if err != nil {
		return err
	}

	d.fanout.Deliver(ctx, s.ClassroomID, s.userID, SelectRole(classroom.RoleTeacher),
		protocol.NewResponse(protocol.ActionSubmitAssignment, uaJSON))
	logger.Info("Assignment submitted",
		zap.String("classroomID", s.ClassroomID),
		zap.String("userID", s.userID),
		zap.String("title", title))
	return nil
}

// handleGradeAssignment 教师评分：追加历史并推进状态，只发给被评学生
func (d *Dispatcher) handleGradeAssignment(ctx context.Context, s *Session, req *protocol.Request) error {
	if err := d.requireTeacher(s); err != nil {
		return err
	}
	targetID := req.Field("userId")
	title := req.Field("title")
	if targetID == "" || title == "" {
		return classroom.ErrMalformedPayload("userId and title fields are required")
	}
	grade, err := strconv.Atoi(req.Field("grade"))
	if err != nil {
		return classroom.ErrMalformedPayload("invalid grade %q", req.Field("grade"))
	}

	next := classroom.AssignmentCompleted
	if raw := req.Field("status"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return classroom.ErrMalformedPayload("invalid status %q", raw)
		}
		next = classroom.AssignmentStatus(n)
	}

	var uaJSON json.RawMessage
	err = d.store.With(s.ClassroomID, func(c *classroom.Classroom) error {
		target := c.UserByID(targetID)
		if target == nil {
			return classroom.ErrNotFound("user %q not in classroom %q", targetID, s.ClassroomID)
		}
		ua := target.AssignmentByTitle(title)
		if ua == nil {
			return classroom.ErrNotFound("assignment %q not found for user %q", title, targetID)
		}
		if err := ua.ApplyGrade(grade, req.Field("feedback"), next); err != nil {
			return err
		}
		var err error
		uaJSON, err = json.Marshal(ua)
		return err
	})
	if err != nil {
		return err
	}

	resp := protocol.NewResponse(protocol.ActionGradeAssignment, uaJSON)
	resp.Timestamp = time.Now().Format(time.RFC3339)
	d.fanout.Deliver(ctx, s.ClassroomID, s.userID, SelectUser(targetID), resp)
	logger.Info("Assignment graded",
		zap.String("classroomID", s.ClassroomID),
		zap.String("teacherID", s.userID),
		zap.String("studentID", targetID),
		zap.String("title", title),
		zap.Int("grade", grade))
	return nil
}

// handleLeave 显式退场：移除成员记录、注销连接、广播成员变更。
// 与传输层断开不同，显式 Leave 不保留成员记录
func (d *Dispatcher) handleLeave(ctx context.Context, s *Session, req *protocol.Request) error {
	var empty bool
	err := d.store.With(s.ClassroomID, func(c *classroom.Classroom) error {
		if !c.RemoveUser(s.userID) {
			return errStateDesync
		}
		empty = c.Size() == 0
		return nil
	})
	if err != nil {
		return err
	}

	d.registry.Unregister(s)
	d.fanout.Deliver(ctx, s.ClassroomID, s.userID, SelectAll(),
		protocol.NewResponse(protocol.ActionLeave, map[string]any{
			"userId": s.userID,
		}))

	if empty && d.config.Classroom.RemoveWhenEmpty {
		d.dropClassroom(ctx, s.ClassroomID)
	}

	s.outbox.Close()
	s.phase = PhaseClosed
	logger.Info("User left classroom",
		zap.String("classroomID", s.ClassroomID),
		zap.String("userID", s.userID))
	return nil
}

// handleClassroomDeleted 教师解散课堂：广播关闭事件后移除课堂，
// 强制断开全部成员连接
func (d *Dispatcher) handleClassroomDeleted(ctx context.Context, s *Session, req *protocol.Request) error {
	if err := d.requireTeacher(s); err != nil {
		return err
	}
	if !d.store.Exists(s.ClassroomID) {
		return classroom.ErrNotFound("classroom %q does not exist", s.ClassroomID)
	}

	d.fanout.Deliver(ctx, s.ClassroomID, s.userID, SelectAll(),
		protocol.NewResponse(protocol.ActionClassroomDeleted, map[string]any{
			"classroomId": s.ClassroomID,
		}))

	d.dropClassroom(ctx, s.ClassroomID)
	for _, member := range d.registry.DropClassroom(s.ClassroomID) {
		member.Outbox().Close()
	}
	s.phase = PhaseClosed

	logger.Info("Classroom deleted",
		zap.String("classroomID", s.ClassroomID),
		zap.String("teacherID", s.userID))
	return nil
}

// requireTeacher 统一的角色门控，所有教师专属动作先经过这里
func (d *Dispatcher) requireTeacher(s *Session) error {
	if s.role != classroom.RoleTeacher {
		return classroom.ErrPermissionDenied("action requires teacher role")
	}
	return nil
}
