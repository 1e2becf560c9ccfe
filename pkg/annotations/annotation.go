package annotations

import (
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"anno-index/pkg/geo"
)

// Kind: 注记类型
type Kind uint8

const (
	KindPoint Kind = iota
	KindShape
)

// Segment: 有序坐标串
type Segment []geo.LatLng

// Segments: 多段几何；点注记恰为单段单点
type Segments []Segment

// Annotation: 不可变几何与构造期派生的包围盒。
// features 按瓦片记录本注记产出的要素句柄：非拥有引用，删除时经瓦片存储解析，
// 句柄失效（瓦片或要素已不存在）视作已移除而非错误。
// 约束：实体由 Manager 独占持有，身份是 Manager 分配的整数 ID
type Annotation struct {
	kind     Kind
	geometry Segments
	bounds   geo.LatLngBounds
	features map[maptile.Tile][]*geojson.Feature
}

// newAnnotation: 构造实体并一次性派生包围盒。
// 点注记取代表点的退化盒，形状注记取所有输入点的最小外包
func newAnnotation(kind Kind, geometry Segments) *Annotation {
	a := &Annotation{
		kind:     kind,
		geometry: geometry,
		features: make(map[maptile.Tile][]*geojson.Feature),
	}
	b := geo.EmptyBounds()
	if kind == KindPoint {
		b.Extend(a.point())
	} else {
		for _, seg := range geometry {
			for _, p := range seg {
				b.Extend(p)
			}
		}
	}
	a.bounds = b
	return a
}

// point: 代表点（首段首点）
// 约束：Manager 保证点注记恰有一个点；空几何违反构造不变量，属编程错误
func (a *Annotation) point() geo.LatLng {
	return a.geometry[0][0]
}

func (a *Annotation) Kind() Kind { return a.kind }

// Bounds: 构造期缓存的包围盒，与几何一样在实体生命周期内不变
func (a *Annotation) Bounds() geo.LatLngBounds { return a.bounds }
