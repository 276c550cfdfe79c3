package util

import (
	"github.com/fatih/color"
	"github.com/penwyp/mini-classroom/pkg/protocol"
)

// GetColorFunc 根据颜色字符串返回对应的彩色打印函数
func GetColorFunc(colorStr string) func(string, ...interface{}) (n int, err error) {
	switch colorStr {
	case "red":
		return color.New(color.FgRed).Printf
	case "green":
		return color.New(color.FgGreen).Printf
	case "blue":
		return color.New(color.FgBlue).Printf
	case "yellow":
		return color.New(color.FgYellow).Printf
	case "cyan":
		return color.New(color.FgCyan).Printf
	case "magenta":
		return color.New(color.FgMagenta).Printf
	default:
		return color.New(color.FgWhite).Printf
	}
}

// ActionColor 返回课堂事件类型对应的终端颜色，供调试客户端渲染
func ActionColor(action protocol.Action) string {
	switch action {
	case protocol.ActionJoin, protocol.ActionTeacherJoin:
		return "green"
	case protocol.ActionLeave, protocol.ActionClassroomDeleted:
		return "red"
	case protocol.ActionCodeChange:
		return "cyan"
	case protocol.ActionLockCode, protocol.ActionUnlockCode:
		return "yellow"
	case protocol.ActionAssignmentCreate, protocol.ActionSubmitAssignment, protocol.ActionGradeAssignment:
		return "magenta"
	case protocol.ActionSyncData, protocol.ActionGetData:
		return "blue"
	default:
		return "white"
	}
}
