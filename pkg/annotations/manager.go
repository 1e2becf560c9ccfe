// 包 annotations: 地图注记的瓦片金字塔索引。
// 背景：渲染端需要按瓦片在常数时间内取得"哪些注记落在此瓦片"，不能每帧重算几何；
// 本包把每个点注记摊到 [0, maxZoom] 的全部级别，并在单把互斥锁下维护
// 注记表与瓦片表两张耦合映射，保证并发调用方观察到操作全序。
// 约束：进程内库边界，不含网络、持久化或 CLI 表面
package annotations

import (
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"anno-index/internal/config"
	"anno-index/internal/logger"
	"anno-index/internal/metrics"
	"anno-index/internal/sched"
	"anno-index/pkg/geo"
	"anno-index/pkg/livetile"
)

// PointLayerID: 注记点图层的通用约定名，渲染端按此名从瓦片内容取图层
const PointLayerID = "com.mapbox.annotations.points"

// ID: 注记标识；进程生命周期内单调递增，不复用
type ID uint32

// MapView: 宿主地图提供的只读协作接口。
// 约束：每次加入/查询都重新询问 MaxZoom，不缓存，宿主中途调整上界即刻生效
type MapView interface {
	MaxZoom() maptile.Zoom
}

// FixedMaxZoom: 以固定值实现 MapView，供测试或静态宿主使用
type FixedMaxZoom maptile.Zoom

func (z FixedMaxZoom) MaxZoom() maptile.Zoom { return maptile.Zoom(z) }

// tileEntry: 贡献注记列表（有序）与独占持有的可渲染内容。
// 条目在首个注记触达时惰性创建，清空后也不回收（可接受的陈旧成本）
type tileEntry struct {
	ids  []ID
	tile *livetile.Tile
}

// Manager: 注记索引的唯一入口。
// 约束：所有公开操作在单把互斥锁内整体执行；临界区只做内存工作，不做 I/O；
// 操作内不得再进入其它公开操作（不可重入）
type Manager struct {
	mu            sync.Mutex
	nextID        ID
	defaultSymbol string
	annotations   map[ID]*Annotation
	tiles         map[maptile.Tile]*tileEntry

	// 失效提示旁路，见 observer.go
	obs           TileObserver
	pool          *sched.Pool
	notifyWorkers int
	debounce      time.Duration
	pending       []maptile.Tile
	flushTask     *sched.ScheduledTask
}

func NewManager() *Manager {
	return &Manager{
		annotations: make(map[ID]*Annotation),
		tiles:       make(map[maptile.Tile]*tileEntry),
	}
}

// NewManagerFromEnv: 按环境配置构造 Manager（缺省符号、提示工作池参数）
func NewManagerFromEnv() (*Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	m := NewManager()
	m.defaultSymbol = cfg.DefaultSymbol
	m.notifyWorkers = cfg.NotifyWorkers
	m.debounce = time.Duration(cfg.NotifyDebounceMs) * time.Millisecond
	return m, nil
}

// SetDefaultPointAnnotationSymbol: 替换缺省点符号；符号为空串的点注记回退到该值
func (m *Manager) SetDefaultPointAnnotationSymbol(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultSymbol = symbol
}

// 持锁调用
func (m *Manager) allocID() ID {
	id := m.nextID
	m.nextID++
	return id
}

// AddPointAnnotations: 批量加入点注记，并摊到 [0, maxZoom] 全部级别。
// 返回触达的瓦片（允许重复，调用方视作失效多重集）与按输入顺序分配的新 ID。
// 约束：symbols 长度必须与 points 一致，空串回退缺省符号；
// 长度不一致是调用方违约，直接 panic（快速失败，非可恢复错误）
func (m *Manager) AddPointAnnotations(points []geo.LatLng, symbols []string, view MapView) ([]maptile.Tile, []ID) {
	if len(symbols) != len(points) {
		panic("annotations: symbols length must match points length")
	}
	start := time.Now()
	m.mu.Lock()

	maxZoom := view.MaxZoom()
	affected := make([]maptile.Tile, 0, (int(maxZoom)+1)*len(points))
	ids := make([]ID, 0, len(points))

	for i, pt := range points {
		id := m.allocID()
		a := newAnnotation(KindPoint, Segments{{pt}})
		m.annotations[id] = a

		symbol := symbols[i]
		if symbol == "" {
			symbol = m.defaultSymbol
		}

		px, py := geo.Project(pt)
		for _, pl := range placements(px, py, maxZoom) {
			f := livetile.NewPointFeature(pl.Offset, geojson.Properties{"sprite": symbol})
			e, ok := m.tiles[pl.Tile]
			if !ok {
				e = &tileEntry{tile: livetile.NewTile()}
				m.tiles[pl.Tile] = e
				metrics.TilesCreatedTotal.Inc()
			}
			e.tile.MutableLayer(PointLayerID).AddFeature(f)
			e.ids = append(e.ids, id)
			a.features[pl.Tile] = append(a.features[pl.Tile], f)
			affected = append(affected, pl.Tile)
		}
		ids = append(ids, id)
	}
	live := len(m.annotations)
	m.mu.Unlock()

	metrics.AddedTotal.Add(float64(len(ids)))
	metrics.Live.Set(float64(live))
	metrics.AddDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	logger.L().Debug("anno_add_done",
		"count", len(ids), "max_zoom", int(maxZoom), "affected", len(affected))
	m.notify(affected)
	return affected, ids
}

// AddShapeAnnotation: 登记形状注记（折线/多边形段集），仅参与包围盒聚合与删除。
// 背景：形状的瓦片化渲染不在本核心范围，包围盒仍为所有输入点的精确最小外包。
// 约束：segments 至少含一个非空段（代表点不变量），违反直接 panic
func (m *Manager) AddShapeAnnotation(segments Segments) ID {
	if len(segments) == 0 || len(segments[0]) == 0 {
		panic("annotations: shape annotation requires at least one point")
	}
	m.mu.Lock()
	id := m.allocID()
	m.annotations[id] = newAnnotation(KindShape, segments)
	live := len(m.annotations)
	m.mu.Unlock()

	metrics.AddedTotal.Inc()
	metrics.Live.Set(float64(live))
	logger.L().Debug("anno_add_shape_done", "id", uint32(id))
	return id
}

// RemoveAnnotations: 移除注记并经瓦片存储回收其要素。
// 未知 ID 静默跳过（幂等删除）；句柄失效视作已移除，不是错误。
// 返回实际发生变更的瓦片集合，按 (z,x,y) 排序，供渲染端失效缓存
func (m *Manager) RemoveAnnotations(ids []ID) []maptile.Tile {
	m.mu.Lock()

	touched := make(map[maptile.Tile]struct{})
	removed := 0
	for _, id := range ids {
		a, ok := m.annotations[id]
		if !ok {
			continue
		}
		for tid, e := range m.tiles {
			for i := 0; i < len(e.ids); {
				if e.ids[i] == id {
					e.ids = append(e.ids[:i], e.ids[i+1:]...)
				} else {
					i++
				}
			}
			fs, ok := a.features[tid]
			if !ok {
				continue
			}
			if layer := e.tile.Layer(PointLayerID); layer != nil {
				for _, f := range fs {
					layer.RemoveFeature(f)
				}
			}
			touched[tid] = struct{}{}
		}
		delete(m.annotations, id)
		removed++
	}
	live := len(m.annotations)
	m.mu.Unlock()

	affected := sortedTiles(touched)
	metrics.RemovedTotal.Add(float64(removed))
	metrics.Live.Set(float64(live))
	logger.L().Debug("anno_remove_done",
		"requested", len(ids), "removed", removed, "affected", len(affected))
	m.notify(affected)
	return affected
}

// GetAnnotationsInBounds: 返回包围盒命中的注记 ID（升序）。
// 两级判定：查询框瓦片矩形的严格内部瓦片整体接受（瓦片按构造完全落在框内）；
// 矩形边界上的瓦片逐个比对注记缓存包围盒是否完全包含于查询框。
// 约束：查询框不得跨反子午线（已知缺口）
func (m *Manager) GetAnnotationsInBounds(query geo.LatLngBounds, view MapView) []ID {
	start := time.Now()
	m.mu.Lock()

	z := view.MaxZoom()
	swX, swY := geo.Project(query.SW)
	neX, neY := geo.Project(query.NE)
	// 瓦片 Y 自上而下递增：查询框北边对应较小的 Y
	nw := tileAt(swX, neY, z)
	se := tileAt(neX, swY, z)

	var out []ID
	for tid, e := range m.tiles {
		if tid.Z != z {
			continue
		}
		if tid.X < nw.X || tid.X > se.X || tid.Y < nw.Y || tid.Y > se.Y {
			continue
		}
		if tid.X > nw.X && tid.X < se.X && tid.Y > nw.Y && tid.Y < se.Y {
			out = append(out, e.ids...)
			continue
		}
		for _, id := range e.ids {
			if a, ok := m.annotations[id]; ok && query.Contains(a.bounds) {
				out = append(out, id)
			}
		}
	}
	m.mu.Unlock()

	// Go 映射遍历无序；对外保证确定性的升序序列
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	metrics.QueryDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	logger.L().Debug("anno_query_done", "zoom", int(z), "matched", len(out))
	return out
}

// GetBoundsForAnnotations: 各存活注记代表点的并集包围盒；未知 ID 跳过，空输入返回空盒
func (m *Manager) GetBoundsForAnnotations(ids []ID) geo.LatLngBounds {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := geo.EmptyBounds()
	for _, id := range ids {
		if a, ok := m.annotations[id]; ok {
			b.Extend(a.point())
		}
	}
	return b
}

// GetTile: 直接查瓦片内容，缺失返回 nil，无任何变更。
// 返回内容是快照，仅在下一次变更调用前有效（无跨锁实时视图保证）
func (m *Manager) GetTile(id maptile.Tile) *livetile.Tile {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.tiles[id]; ok {
		return e.tile
	}
	return nil
}

// Count: 当前索引内的注记数
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.annotations)
}

func sortedTiles(set map[maptile.Tile]struct{}) []maptile.Tile {
	out := make([]maptile.Tile, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return out
}
