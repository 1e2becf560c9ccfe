package annotations

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileExtent: 瓦片边长对应的本地坐标单位数，与级别无关
const TileExtent = 4096

// Placement: 某一级别上的瓦片归属与瓦片内本地偏移
type Placement struct {
	Tile   maptile.Tile
	Offset orb.Point
}

// tileAt: 归一化平面坐标在级别 z 上落入的瓦片（向下取整）
func tileAt(x, y float64, z maptile.Zoom) maptile.Tile {
	scale := float64(uint32(1) << z)
	return maptile.New(uint32(x*scale), uint32(y*scale), z)
}

// placements: 把归一化平面点从 maxZoom 逐级摊到 0 级，每级一个瓦片与本地偏移。
// 约束：低级别瓦片坐标由整数减半（Parent）得到，保证是 maxZoom 瓦片的真实几何祖先；
// 逐级独立取整在瓦片边界上不能保证这一点
func placements(x, y float64, maxZoom maptile.Zoom) []Placement {
	out := make([]Placement, 0, int(maxZoom)+1)
	scale := float64(uint32(1) << maxZoom)
	t := tileAt(x, y, maxZoom)
	for {
		out = append(out, Placement{
			Tile: t,
			Offset: orb.Point{
				TileExtent * (x*scale - float64(t.X)),
				TileExtent * (y*scale - float64(t.Y)),
			},
		})
		if t.Z == 0 {
			return out
		}
		t = t.Parent()
		scale /= 2
	}
}
