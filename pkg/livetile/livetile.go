// 包 livetile: 注记瓦片的可渲染内容。瓦片持有命名图层，图层持有有序要素列表；
// 要素以瓦片本地坐标（定长 extent）表达几何，属性表承载符号名等渲染信息。
// 约束：本包不做并发保护，内容由上层瓦片存储独占持有并在其锁内访问；
// 渲染端取到的图层内容应视作快照，仅在下一次变更调用前有效。
package livetile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// NewPointFeature: 以瓦片本地坐标构造点要素
// 背景：要素一经构造即视为不可变；删除按指针身份进行，属性表不参与比较
func NewPointFeature(local orb.Point, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(local)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// Layer: 有序要素集合
type Layer struct {
	features []*geojson.Feature
}

func NewLayer() *Layer { return &Layer{} }

// AddFeature: 追加要素，所有权转移到图层
func (l *Layer) AddFeature(f *geojson.Feature) {
	l.features = append(l.features, f)
}

// RemoveFeature: 按指针身份删除要素；不存在时为幂等空操作，返回是否删除
func (l *Layer) RemoveFeature(f *geojson.Feature) bool {
	for i, x := range l.features {
		if x == f {
			l.features = append(l.features[:i], l.features[i+1:]...)
			return true
		}
	}
	return false
}

// Features: 当前要素切片（快照语义，见包注释）
func (l *Layer) Features() []*geojson.Feature { return l.features }

func (l *Layer) Len() int { return len(l.features) }

// Tile: 命名图层集合
type Tile struct {
	layers map[string]*Layer
}

func NewTile() *Tile {
	return &Tile{layers: make(map[string]*Layer)}
}

// MutableLayer: 写路径取图层，不存在则创建空图层
func (t *Tile) MutableLayer(name string) *Layer {
	l, ok := t.layers[name]
	if !ok {
		l = NewLayer()
		t.layers[name] = l
	}
	return l
}

// Layer: 读路径取图层，不存在返回 nil
func (t *Tile) Layer(name string) *Layer {
	return t.layers[name]
}
