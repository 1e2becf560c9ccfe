package sched

import (
	"sync"
	"time"
)

// ScheduledTask: 延迟触发一次的任务，触发前可取消
// 约束：Cancel 与触发并发时以先到者为准；fn 在定时器协程上执行
type ScheduledTask struct {
	mu       sync.Mutex
	timer    *time.Timer
	finished bool
}

// Schedule: 在 d 之后执行 fn
func Schedule(d time.Duration, fn func()) *ScheduledTask {
	t := &ScheduledTask{}
	t.timer = time.AfterFunc(d, func() {
		// 先标记再执行：触发后到达的 Cancel 一律视为无效果
		t.mu.Lock()
		t.finished = true
		t.mu.Unlock()
		fn()
	})
	return t
}

// Cancel: 取消尚未触发的任务；已触发或已取消则无效果
func (t *ScheduledTask) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.finished && t.timer.Stop() {
		t.finished = true
	}
}

// Finished: 任务已执行完毕或已被取消
func (t *ScheduledTask) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}
