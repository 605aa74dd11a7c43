package tasks

import (
	"context"
	"log"
	"time"

	"teampulse.app/agent/internal/scheduler"
)

// LogRotateInterval 日志轮转检查间隔
const LogRotateInterval = 3 * time.Hour

// Rotator 可轮转的日志输出
type Rotator interface {
	Rotate() (bool, error)
}

// LogRotateTask 日志轮转任务
type LogRotateTask struct {
	scheduler.Interval
	out Rotator
}

// NewLogRotateTask 创建日志轮转任务
func NewLogRotateTask(out Rotator) *LogRotateTask {
	return &LogRotateTask{
		Interval: scheduler.Interval{Every: LogRotateInterval},
		out:      out,
	}
}

// ID 返回任务 ID
func (t *LogRotateTask) ID() string {
	return "log-rotate"
}

// Name 返回任务名称
func (t *LogRotateTask) Name() string {
	return "日志文件轮转"
}

// Execute 执行任务
func (t *LogRotateTask) Execute(context.Context) error {
	rotated, err := t.out.Rotate()
	if err != nil {
		return err
	}
	if rotated {
		log.Println("Log rotation completed")
	}
	return nil
}
