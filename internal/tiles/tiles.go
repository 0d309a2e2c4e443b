// Package tiles computes Web-Mercator tile coordinates and builds the
// thumbnail URLs shown in the layer picker.
package tiles

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"parahub/client-go/internal/config"
)

// MaxLatitude is the Mercator projection limit. Latitudes beyond it are
// clamped before projecting so the poles never reach the log term.
const MaxLatitude = 85.0511

// TileXY returns the (x, y) tile indices containing (lat, lng) at zoom.
func TileXY(lat, lng float64, zoom int) (uint32, uint32) {
	lat = clampLat(lat)
	lng = clampLng(lng)
	t := maptile.At(orb.Point{lng, lat}, maptile.Zoom(zoom))
	return t.X, t.Y
}

func clampLat(lat float64) float64 {
	if lat > MaxLatitude {
		return MaxLatitude
	}
	if lat < -MaxLatitude {
		return -MaxLatitude
	}
	return lat
}

func clampLng(lng float64) float64 {
	if lng > 180 {
		return 180
	}
	if lng < -180 {
		return -180
	}
	return lng
}

// TileURL expands a {z}/{x}/{y} template for the tile containing (lat, lng).
// Templates with the coordinates in {z}/{y}/{x} order expand just as well.
func TileURL(template string, lat, lng float64, zoom int) string {
	x, y := TileXY(lat, lng, zoom)
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(zoom),
		"{x}", strconv.FormatUint(uint64(x), 10),
		"{y}", strconv.FormatUint(uint64(y), 10),
	)
	return r.Replace(template)
}

// Preview is one layer-picker thumbnail.
type Preview struct {
	Layer config.LayerID `json:"layer"`
	Label string         `json:"label"`
	URL   string         `json:"url"`
}

// Previewer memoizes thumbnail URLs per viewport. Thumbnails stay coarse:
// the preview zoom never exceeds the configured cap no matter how far in the
// live view is zoomed.
type Previewer struct {
	layers  []config.Layer
	zoomCap int

	haveLast         bool
	lastLat, lastLng float64
	lastZoom         int
	cached           []Preview
}

func NewPreviewer(layers []config.Layer, zoomCap int) *Previewer {
	if zoomCap <= 0 {
		zoomCap = 10
	}
	return &Previewer{layers: layers, zoomCap: zoomCap}
}

// Previews returns thumbnail URLs for the viewport centered at (lat, lng) at
// the given live zoom, recomputing only when the viewport actually changed.
func (p *Previewer) Previews(lat, lng float64, zoom int) []Preview {
	if p.haveLast && lat == p.lastLat && lng == p.lastLng && zoom == p.lastZoom {
		return p.cached
	}

	pz := zoom
	if pz > p.zoomCap {
		pz = p.zoomCap
	}
	if pz < 0 {
		pz = 0
	}

	out := make([]Preview, 0, len(p.layers))
	for _, l := range p.layers {
		out = append(out, Preview{
			Layer: l.ID,
			Label: l.Label,
			URL:   TileURL(l.URL, lat, lng, pz),
		})
	}

	p.haveLast = true
	p.lastLat, p.lastLng, p.lastZoom = lat, lng, zoom
	p.cached = out
	return out
}
