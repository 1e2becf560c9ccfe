package annotations

import (
	"time"

	"github.com/paulmach/orb/maptile"

	"anno-index/internal/metrics"
	"anno-index/internal/sched"
)

// TileObserver: 接收失效瓦片提示的协作方（通常是渲染端的瓦片缓存）。
// 约束：回调在独立工作协程上触发，不持有索引锁；提示不附带瓦片内容，
// 仅用于缓存失效，允许丢失，接收方不得依据提示推断索引状态
type TileObserver interface {
	InvalidateTiles(tiles []maptile.Tile)
}

// SetObserver: 注册失效提示接收方；首次注册时启动通知工作池。
// obs 为 nil 时仅停止投递，工作池由 Close 统一回收
func (m *Manager) SetObserver(obs TileObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obs != nil && m.pool == nil {
		m.pool = sched.NewPool(m.notifyWorkers)
	}
	m.obs = obs
}

// SetNotifyDebounce: 设置提示合并窗口；窗口内的多次变更合并为一次投递。
// d<=0 时立即投递（渲染帧节奏快于变更时无需合并）
func (m *Manager) SetNotifyDebounce(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debounce = d
}

// Close: 停止提示投递并回收工作池；索引本身不持有其它外部资源。
// 变更与查询操作在 Close 之后仍可用，只是不再产生提示
func (m *Manager) Close() {
	m.mu.Lock()
	task := m.flushTask
	pool := m.pool
	m.flushTask = nil
	m.pool = nil
	m.obs = nil
	m.pending = nil
	m.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
	if pool != nil {
		pool.Close()
	}
}

// notify: 变更操作返回前（锁外）调用，投递失效提示。
// 短暂重取锁仅为读取观察方配置与合并积压，不会与公开操作重入
func (m *Manager) notify(tiles []maptile.Tile) {
	if len(tiles) == 0 {
		return
	}
	m.mu.Lock()
	obs, pool := m.obs, m.pool
	if obs == nil || pool == nil {
		m.mu.Unlock()
		return
	}
	if m.debounce > 0 {
		m.pending = append(m.pending, tiles...)
		if m.flushTask == nil || m.flushTask.Finished() {
			m.flushTask = sched.Schedule(m.debounce, m.flushPending)
		}
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	tt := append([]maptile.Tile(nil), tiles...)
	if !pool.Schedule(func() { obs.InvalidateTiles(tt) }) {
		metrics.NotifyDroppedTotal.Inc()
	}
}

// flushPending: 合并窗口到期后把积压的提示一次性投递
func (m *Manager) flushPending() {
	m.mu.Lock()
	tiles := m.pending
	m.pending = nil
	obs, pool := m.obs, m.pool
	m.mu.Unlock()

	if obs == nil || pool == nil || len(tiles) == 0 {
		return
	}
	if !pool.Schedule(func() { obs.InvalidateTiles(tiles) }) {
		metrics.NotifyDroppedTotal.Inc()
	}
}
