package scheduler

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// DefaultHeartbeat 调度器检查间隔
const DefaultHeartbeat = 10 * time.Second

// Scheduler 后台任务调度器
type Scheduler struct {
	mu        sync.Mutex
	tasks     []Task
	states    map[string]*TaskState
	heartbeat time.Duration
}

// NewScheduler 创建调度器
func NewScheduler(heartbeat time.Duration) *Scheduler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Scheduler{
		states:    make(map[string]*TaskState),
		heartbeat: heartbeat,
	}
}

// Register 注册任务，firstRun 为首次执行时间
func (s *Scheduler) Register(task Task, firstRun time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, task)
	s.states[task.ID()] = &TaskState{
		ID:      task.ID(),
		Name:    task.Name(),
		Enabled: true,
		NextRun: firstRun,
	}
	log.Printf("Registered task: %s (next run: %s)", task.Name(), firstRun.Format("2006-01-02 15:04:05"))
}

// Start 启动调度循环，阻塞直到 ctx 取消
func (s *Scheduler) Start(ctx context.Context) error {
	log.Println("Scheduler started")

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	lastHeartbeat := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return nil
		case <-ticker.C:
			// 使用墙上时钟而不是 ticker 时间，系统睡眠后也能发现时间跳变
			now := time.Now()
			if elapsed := now.Sub(lastHeartbeat); elapsed > 2*s.heartbeat {
				log.Printf("Wake-up detected: %s since last heartbeat", elapsed.Round(time.Second))
			}
			lastHeartbeat = now
			s.RunDue(ctx, now)
		}
	}
}

// RunDue 执行所有到期任务，返回执行数量
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	executed := 0
	for _, task := range tasks {
		s.mu.Lock()
		state := s.states[task.ID()]
		due := task.ShouldRun(now, state)
		s.mu.Unlock()
		if !due {
			continue
		}

		err := task.Execute(ctx)
		if err != nil {
			log.Printf("Task %s failed: %v", task.Name(), err)
		}

		s.mu.Lock()
		task.OnExecuted(now, state, err)
		s.mu.Unlock()
		executed++
	}
	return executed
}

// States 返回任务状态快照，按 ID 排序
func (s *Scheduler) States() []TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetEnabled 启用或停用任务
func (s *Scheduler) SetEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if ok {
		st.Enabled = enabled
	}
	return ok
}
