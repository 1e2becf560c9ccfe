// 包 geo: 经纬度与地理包围盒的最小数据结构，以及球面墨卡托正向投影。
// 背景：索引内部全部以归一化平面坐标计算，仅在入口处接收 WGS84 经纬度；
// 保持结构轻量以便常驻内存与快速比较。
package geo

import "math"

// LatLng: WGS84 经纬度坐标
type LatLng struct {
	Lat float64
	Lon float64
}

// LatLngBounds: 西南/东北角表示的地理包围盒
// 约束：零值不是合法空盒，应由 EmptyBounds 构造后 Extend 收敛
type LatLngBounds struct {
	SW LatLng
	NE LatLng
}

// EmptyBounds: 反向初始化的空包围盒，任何 Extend 都会收敛到实际范围
func EmptyBounds() LatLngBounds {
	return LatLngBounds{
		SW: LatLng{Lat: 90, Lon: 180},
		NE: LatLng{Lat: -90, Lon: -180},
	}
}

// Empty: 包围盒尚未覆盖任何点
func (b LatLngBounds) Empty() bool {
	return b.SW.Lat > b.NE.Lat || b.SW.Lon > b.NE.Lon
}

// Extend: 扩展包围盒以覆盖给定点
func (b *LatLngBounds) Extend(p LatLng) {
	if p.Lat < b.SW.Lat {
		b.SW.Lat = p.Lat
	}
	if p.Lat > b.NE.Lat {
		b.NE.Lat = p.Lat
	}
	if p.Lon < b.SW.Lon {
		b.SW.Lon = p.Lon
	}
	if p.Lon > b.NE.Lon {
		b.NE.Lon = p.Lon
	}
}

// Union: 扩展包围盒以覆盖另一包围盒；空盒并入无效果
func (b *LatLngBounds) Union(o LatLngBounds) {
	if o.Empty() {
		return
	}
	b.Extend(o.SW)
	b.Extend(o.NE)
}

// Contains: 另一包围盒是否完全落在本包围盒内（闭区间比较）
func (b LatLngBounds) Contains(o LatLngBounds) bool {
	return o.SW.Lat >= b.SW.Lat && o.NE.Lat <= b.NE.Lat &&
		o.SW.Lon >= b.SW.Lon && o.NE.Lon <= b.NE.Lon
}

// Project: 球面墨卡托正向投影，输出归一化平面坐标 [0,1]×[0,1]。
// x 随经度线性增长，y 自北向南增长（瓦片 Y 轴约定）。
// 约束：纬度趋近 ±90° 时中间量发散，调用方不得传入恰好 ±90°
func Project(p LatLng) (x, y float64) {
	sine := math.Sin(p.Lat * math.Pi / 180)
	x = p.Lon/360 + 0.5
	y = 0.5 - 0.25*math.Log((1+sine)/(1-sine))/math.Pi
	return x, y
}
