package scheduler

import (
	"context"
	"time"
)

// Task 后台任务接口
type Task interface {
	// ID 返回任务唯一标识
	ID() string

	// Name 返回任务名称
	Name() string

	// ShouldRun 判断是否应该执行（基于当前时间和任务状态）
	ShouldRun(now time.Time, state *TaskState) bool

	// Execute 执行任务
	Execute(ctx context.Context) error

	// OnExecuted 任务执行后的回调（用于更新下次执行时间等）
	OnExecuted(now time.Time, state *TaskState, err error)
}

// TaskState 任务运行状态
type TaskState struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	NextRun     time.Time `json:"next_run,omitempty"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Interval 间隔型任务的通用调度逻辑，嵌入到具体任务中使用
type Interval struct {
	Every time.Duration
}

// ShouldRun 到达 NextRun 即执行
func (i Interval) ShouldRun(now time.Time, state *TaskState) bool {
	if !state.Enabled || state.NextRun.IsZero() {
		return false
	}
	return !now.Before(state.NextRun)
}

// OnExecuted 记录结果并计算下次执行时间
func (i Interval) OnExecuted(now time.Time, state *TaskState, err error) {
	state.LastRun = now
	if err != nil {
		state.LastError = err.Error()
	} else {
		state.LastSuccess = now
		state.LastError = ""
	}
	state.NextRun = now.Add(i.Every)
}
