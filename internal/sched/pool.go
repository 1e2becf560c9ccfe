// 包 sched: 极简工作池与可取消的一次性定时任务。
// 背景：失效提示这类旁路工作不应阻塞索引调用方，也不值得为每次提示新开协程；
// 固定数量的工作协程消费同一个任务队列即可。
package sched

import "sync"

const queueDepth = 64

// Pool: 固定数量工作协程消费任务队列
type Pool struct {
	mu     sync.Mutex
	tasks  chan func()
	wg     sync.WaitGroup
	closed bool
}

// NewPool: 启动 n 个工作协程；n<1 时取 1
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{tasks: make(chan func(), queueDepth)}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Schedule: 投递任务；池已关闭或队列已满时丢弃并返回 false
// 约束：提示类旁路工作允许丢失，调用方不应依赖投递成功
func (p *Pool) Schedule(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close: 拒绝新任务并等待已入队任务执行完毕；重复关闭无效果
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
