package annotations

import (
	"sort"
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"

	"anno-index/pkg/geo"
)

func tileSet(tiles []maptile.Tile) map[maptile.Tile]int {
	s := make(map[maptile.Tile]int, len(tiles))
	for _, t := range tiles {
		s[t]++
	}
	return s
}

// 赤道/本初子午线点在 maxZoom=2 下的完整加入-查询-移除闭环
func TestAddQueryRemoveEquatorPoint(t *testing.T) {
	m := NewManager()
	m.SetDefaultPointAnnotationSymbol("marker")
	view := FixedMaxZoom(2)

	affected, ids := m.AddPointAnnotations(
		[]geo.LatLng{{Lat: 0, Lon: 0}}, []string{""}, view)

	if len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("ids = %v, want [0]", ids)
	}
	wantTiles := []maptile.Tile{
		maptile.New(2, 2, 2),
		maptile.New(1, 1, 1),
		maptile.New(0, 0, 0),
	}
	if len(affected) != 3 {
		t.Fatalf("affected = %v, want 3 tiles", affected)
	}
	for i, want := range wantTiles {
		if affected[i] != want {
			t.Errorf("affected[%d] = %+v, want %+v", i, affected[i], want)
		}
	}

	// 缺省符号回退写入要素属性
	tile := m.GetTile(maptile.New(2, 2, 2))
	if tile == nil {
		t.Fatal("GetTile(2,2,2) = nil")
	}
	layer := tile.Layer(PointLayerID)
	if layer == nil || layer.Len() != 1 {
		t.Fatal("point layer missing or wrong size")
	}
	if got := layer.Features()[0].Properties["sprite"]; got != "marker" {
		t.Errorf("sprite = %v, want marker (default fallback)", got)
	}

	got := m.GetAnnotationsInBounds(
		geo.LatLngBounds{SW: geo.LatLng{Lat: -1, Lon: -1}, NE: geo.LatLng{Lat: 1, Lon: 1}}, view)
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("GetAnnotationsInBounds = %v, want [0]", got)
	}

	removed := m.RemoveAnnotations(ids)
	if len(removed) != 3 {
		t.Fatalf("removed tiles = %v, want 3", removed)
	}
	wantRemoved := tileSet(wantTiles)
	for _, tid := range removed {
		if wantRemoved[tid] == 0 {
			t.Errorf("unexpected removed tile %+v", tid)
		}
	}
	if m.Count() != 0 {
		t.Errorf("annotation count after removal = %d, want 0", m.Count())
	}
	if layer := m.GetTile(maptile.New(2, 2, 2)).Layer(PointLayerID); layer.Len() != 0 {
		t.Errorf("layer still holds %d features after removal", layer.Len())
	}
}

func TestRoundTripManyPoints(t *testing.T) {
	m := NewManager()
	view := FixedMaxZoom(6)

	points := []geo.LatLng{
		{Lat: 37.8, Lon: -122.5},
		{Lat: 40.7, Lon: -74.0},
		{Lat: -33.9, Lon: 151.2},
		{Lat: 51.5, Lon: -0.1},
	}
	symbols := []string{"a", "b", "c", "d"}
	added, ids := m.AddPointAnnotations(points, symbols, view)

	if len(ids) != len(points) {
		t.Fatalf("ids = %v, want %d entries", ids, len(points))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[i-1]+1 {
			t.Errorf("ids not monotonically increasing: %v", ids)
		}
	}

	removed := m.RemoveAnnotations(ids)
	if m.Count() != 0 {
		t.Errorf("count after removing all = %d, want 0", m.Count())
	}
	// 移除触达的瓦片集合与加入触达的一致（无其它注记共享瓦片内容）
	addedSet, removedSet := tileSet(added), tileSet(removed)
	if len(removedSet) != len(addedSet) {
		t.Fatalf("removed %d distinct tiles, added %d", len(removedSet), len(addedSet))
	}
	for tid := range addedSet {
		if removedSet[tid] == 0 {
			t.Errorf("tile %+v added but not reported on removal", tid)
		}
	}
}

func TestRemoveKeepsOtherAnnotations(t *testing.T) {
	m := NewManager()
	view := FixedMaxZoom(3)

	// 两个注记落入同一条瓦片链
	_, ids := m.AddPointAnnotations(
		[]geo.LatLng{{Lat: 10, Lon: 10}, {Lat: 10.0001, Lon: 10.0001}},
		[]string{"x", "y"}, view)

	m.RemoveAnnotations(ids[:1])
	if m.Count() != 1 {
		t.Fatalf("count = %d, want 1", m.Count())
	}
	// 共享瓦片保留幸存注记的内容
	x, y := geo.Project(geo.LatLng{Lat: 10, Lon: 10})
	tid := tileAt(x, y, 0)
	layer := m.GetTile(tid).Layer(PointLayerID)
	if layer.Len() != 1 {
		t.Errorf("shared tile layer len = %d, want 1", layer.Len())
	}
	entryIDs := m.tiles[tid].ids
	if len(entryIDs) != 1 || entryIDs[0] != ids[1] {
		t.Errorf("contributing ids = %v, want [%d]", entryIDs, ids[1])
	}
}

func TestRemoveIdempotent(t *testing.T) {
	m := NewManager()
	view := FixedMaxZoom(2)
	_, ids := m.AddPointAnnotations([]geo.LatLng{{Lat: 5, Lon: 5}}, []string{"s"}, view)

	if got := m.RemoveAnnotations([]ID{999}); len(got) != 0 {
		t.Errorf("removing unknown id affected %v, want none", got)
	}
	m.RemoveAnnotations(ids)
	if got := m.RemoveAnnotations(ids); len(got) != 0 {
		t.Errorf("second removal affected %v, want none", got)
	}
	if got := m.RemoveAnnotations(nil); len(got) != 0 {
		t.Errorf("empty removal affected %v, want none", got)
	}
}

func TestQueryInteriorAndBoundaryTiles(t *testing.T) {
	m := NewManager()
	view := FixedMaxZoom(4)

	inside := geo.LatLng{Lat: 0.1, Lon: 0.1}
	nearEdge := geo.LatLng{Lat: 20, Lon: 20}
	farAway := geo.LatLng{Lat: -60, Lon: -120}
	_, ids := m.AddPointAnnotations(
		[]geo.LatLng{inside, nearEdge, farAway},
		[]string{"a", "b", "c"}, view)

	query := geo.LatLngBounds{SW: geo.LatLng{Lat: -30, Lon: -30}, NE: geo.LatLng{Lat: 30, Lon: 30}}
	got := m.GetAnnotationsInBounds(query, view)

	want := []ID{ids[0], ids[1]}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if len(got) != len(want) {
		t.Fatalf("query = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("query = %v, want %v", got, want)
		}
	}

	// 命中注记的缓存包围盒必须与查询框相交（此处为点注记，必在框内）
	b := m.GetBoundsForAnnotations(got)
	if !query.Contains(b) {
		t.Errorf("bounds of matched annotations %+v escape query box %+v", b, query)
	}
}

func TestQueryResultsSorted(t *testing.T) {
	m := NewManager()
	view := FixedMaxZoom(2)

	var points []geo.LatLng
	var symbols []string
	for i := 0; i < 8; i++ {
		points = append(points, geo.LatLng{Lat: float64(i), Lon: float64(i)})
		symbols = append(symbols, "s")
	}
	_, ids := m.AddPointAnnotations(points, symbols, view)

	got := m.GetAnnotationsInBounds(
		geo.LatLngBounds{SW: geo.LatLng{Lat: -1, Lon: -1}, NE: geo.LatLng{Lat: 10, Lon: 10}}, view)
	if len(got) != len(ids) {
		t.Fatalf("query matched %d, want %d", len(got), len(ids))
	}
	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }) {
		t.Errorf("query result %v not sorted", got)
	}
}

func TestGetBoundsForAnnotations(t *testing.T) {
	m := NewManager()
	view := FixedMaxZoom(2)
	_, ids := m.AddPointAnnotations(
		[]geo.LatLng{{Lat: 10, Lon: 20}, {Lat: -5, Lon: -40}},
		[]string{"a", "b"}, view)

	b := m.GetBoundsForAnnotations(append(ids, 12345)) // 未知 ID 跳过
	want := geo.LatLngBounds{SW: geo.LatLng{Lat: -5, Lon: -40}, NE: geo.LatLng{Lat: 10, Lon: 20}}
	if b != want {
		t.Errorf("bounds = %+v, want %+v", b, want)
	}

	if got := m.GetBoundsForAnnotations(nil); !got.Empty() {
		t.Errorf("bounds of no ids = %+v, want empty", got)
	}
}

func TestAddPanicsOnMismatchedLengths(t *testing.T) {
	m := NewManager()
	defer func() {
		if recover() == nil {
			t.Error("mismatched symbols length did not panic")
		}
	}()
	m.AddPointAnnotations([]geo.LatLng{{Lat: 0, Lon: 0}}, nil, FixedMaxZoom(2))
}

func TestShapeAnnotationBounds(t *testing.T) {
	m := NewManager()
	segments := Segments{
		{{Lat: 0, Lon: 0}, {Lat: 10, Lon: 5}},
		{{Lat: -3, Lon: 12}},
	}
	id := m.AddShapeAnnotation(segments)

	a := m.annotations[id]
	if a.Kind() != KindShape {
		t.Fatalf("kind = %v, want KindShape", a.Kind())
	}
	want := geo.LatLngBounds{SW: geo.LatLng{Lat: -3, Lon: 0}, NE: geo.LatLng{Lat: 10, Lon: 12}}
	if a.Bounds() != want {
		t.Errorf("shape bounds = %+v, want %+v", a.Bounds(), want)
	}

	// 形状不产出瓦片要素，但删除同样幂等
	if got := m.RemoveAnnotations([]ID{id}); len(got) != 0 {
		t.Errorf("shape removal affected tiles %v, want none", got)
	}
	if m.Count() != 0 {
		t.Errorf("count = %d, want 0", m.Count())
	}
}

func TestMaxZoomQueriedPerCall(t *testing.T) {
	m := NewManager()
	view := &mutableView{z: 2}

	affected, _ := m.AddPointAnnotations([]geo.LatLng{{Lat: 0, Lon: 1}}, []string{"s"}, view)
	if len(affected) != 3 {
		t.Fatalf("affected at maxZoom=2: %d tiles, want 3", len(affected))
	}
	view.z = 4
	affected, _ = m.AddPointAnnotations([]geo.LatLng{{Lat: 0, Lon: 1}}, []string{"s"}, view)
	if len(affected) != 5 {
		t.Errorf("affected at maxZoom=4: %d tiles, want 5", len(affected))
	}
}

type mutableView struct{ z maptile.Zoom }

func (v *mutableView) MaxZoom() maptile.Zoom { return v.z }

func TestNewManagerFromEnv(t *testing.T) {
	t.Setenv("ANNO_DEFAULT_SYMBOL", "envmarker")
	t.Setenv("ANNO_NOTIFY_WORKERS", "2")
	m, err := NewManagerFromEnv()
	if err != nil {
		t.Fatalf("NewManagerFromEnv() error: %v", err)
	}
	defer m.Close()

	m.AddPointAnnotations([]geo.LatLng{{Lat: 1, Lon: 1}}, []string{""}, FixedMaxZoom(1))
	x, y := geo.Project(geo.LatLng{Lat: 1, Lon: 1})
	layer := m.GetTile(tileAt(x, y, 1)).Layer(PointLayerID)
	if got := layer.Features()[0].Properties["sprite"]; got != "envmarker" {
		t.Errorf("sprite = %v, want envmarker from environment", got)
	}
}

type chanObserver struct{ ch chan []maptile.Tile }

func (o *chanObserver) InvalidateTiles(tiles []maptile.Tile) { o.ch <- tiles }

func TestObserverReceivesInvalidationHints(t *testing.T) {
	m := NewManager()
	defer m.Close()
	obs := &chanObserver{ch: make(chan []maptile.Tile, 4)}
	m.SetObserver(obs)

	affected, _ := m.AddPointAnnotations([]geo.LatLng{{Lat: 0, Lon: 0}}, []string{"s"}, FixedMaxZoom(2))

	select {
	case got := <-obs.ch:
		if len(got) != len(affected) {
			t.Errorf("hint carried %d tiles, want %d", len(got), len(affected))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no invalidation hint delivered")
	}
}

func TestObserverDebounceCoalesces(t *testing.T) {
	m := NewManager()
	defer m.Close()
	obs := &chanObserver{ch: make(chan []maptile.Tile, 4)}
	m.SetObserver(obs)
	m.SetNotifyDebounce(50 * time.Millisecond)

	_, ids1 := m.AddPointAnnotations([]geo.LatLng{{Lat: 0, Lon: 0}}, []string{"s"}, FixedMaxZoom(1))
	m.RemoveAnnotations(ids1)

	select {
	case got := <-obs.ch:
		// 两次变更合并为一次投递：加入 2 片 + 移除 2 片
		if len(got) != 4 {
			t.Errorf("coalesced hint carried %d tiles, want 4", len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no coalesced hint delivered")
	}
	select {
	case got := <-obs.ch:
		t.Errorf("second hint %v delivered, want single coalesced delivery", got)
	case <-time.After(150 * time.Millisecond):
	}
}
