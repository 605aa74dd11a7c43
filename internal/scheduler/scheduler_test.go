package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

// countingTask 记录执行次数的测试任务
type countingTask struct {
	Interval
	id   string
	runs int
	fail error
}

func (t *countingTask) ID() string   { return t.id }
func (t *countingTask) Name() string { return "counting " + t.id }

func (t *countingTask) Execute(context.Context) error {
	t.runs++
	return t.fail
}

// TestRunDueRespectsNextRun 测试只执行到期任务
func TestRunDueRespectsNextRun(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sched := NewScheduler(time.Second)

	due := &countingTask{Interval: Interval{Every: time.Hour}, id: "due"}
	later := &countingTask{Interval: Interval{Every: time.Hour}, id: "later"}
	sched.Register(due, now)
	sched.Register(later, now.Add(time.Minute))

	if n := sched.RunDue(context.Background(), now); n != 1 {
		t.Fatalf("Expected 1 executed task, got %d", n)
	}
	if due.runs != 1 || later.runs != 0 {
		t.Errorf("Unexpected runs: due=%d later=%d", due.runs, later.runs)
	}

	// 同一时间再次检查不应重复执行
	if n := sched.RunDue(context.Background(), now); n != 0 {
		t.Errorf("Expected no executions, got %d", n)
	}

	// 下次执行时间为 now + interval
	states := sched.States()
	if len(states) != 2 {
		t.Fatalf("Expected 2 states, got %d", len(states))
	}
	if !states[0].NextRun.Equal(now.Add(time.Hour)) {
		t.Errorf("Expected next run %s, got %s", now.Add(time.Hour), states[0].NextRun)
	}
}

// TestRunDueRecordsErrors 测试失败信息被记录并在成功后清除
func TestRunDueRecordsErrors(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sched := NewScheduler(time.Second)

	task := &countingTask{Interval: Interval{Every: time.Minute}, id: "flaky", fail: errors.New("disk full")}
	sched.Register(task, now)

	sched.RunDue(context.Background(), now)
	st := sched.States()[0]
	if st.LastError != "disk full" {
		t.Errorf("Expected last error to be recorded, got %q", st.LastError)
	}
	if !st.LastSuccess.IsZero() {
		t.Error("Last success should be empty after failure")
	}

	task.fail = nil
	sched.RunDue(context.Background(), now.Add(time.Minute))
	st = sched.States()[0]
	if st.LastError != "" {
		t.Errorf("Expected error cleared, got %q", st.LastError)
	}
	if !st.LastSuccess.Equal(now.Add(time.Minute)) {
		t.Errorf("Unexpected last success %s", st.LastSuccess)
	}
}

// TestSetEnabled 测试停用任务后不再执行
func TestSetEnabled(t *testing.T) {
	now := time.Now()
	sched := NewScheduler(time.Second)
	task := &countingTask{Interval: Interval{Every: time.Minute}, id: "t"}
	sched.Register(task, now)

	if !sched.SetEnabled("t", false) {
		t.Fatal("Expected task to exist")
	}
	if sched.SetEnabled("missing", false) {
		t.Error("Unknown task should report false")
	}

	if n := sched.RunDue(context.Background(), now); n != 0 {
		t.Errorf("Disabled task should not run, got %d executions", n)
	}
}

// TestStartStopsOnCancel 测试取消上下文后调度循环退出
func TestStartStopsOnCancel(t *testing.T) {
	sched := NewScheduler(5 * time.Millisecond)
	task := &countingTask{Interval: Interval{Every: time.Hour}, id: "t"}
	sched.Register(task, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(sched.States()) == 0 || sched.States()[0].LastRun.IsZero() {
		select {
		case <-deadline:
			t.Fatal("Task was not executed by the scheduler loop")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduler did not stop")
	}
}
