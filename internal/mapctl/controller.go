// Package mapctl owns the map interaction state machine: cursor tracking,
// context-menu placement, debounced elevation lookups and tile preview
// recomputation. It is the only component with event-ordering and
// cancellation concerns.
package mapctl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"parahub/client-go/internal/config"
	"parahub/client-go/internal/elevation"
	"parahub/client-go/internal/forms"
	"parahub/client-go/internal/metrics"
	"parahub/client-go/internal/model"
	"parahub/client-go/internal/perf"
	"parahub/client-go/internal/tiles"
)

// Backend is the slice of the REST client the controller needs.
type Backend interface {
	Spots(ctx context.Context) ([]model.Spot, error)
	CreateSpot(ctx context.Context, spot model.Spot) (model.Spot, error)
	CreateTerrainPoint(ctx context.Context, tp model.TerrainPoint) (model.TerrainPoint, error)
}

// ElevationLookup resolves elevations; satisfied by *elevation.Client.
type ElevationLookup interface {
	Lookup(ctx context.Context, lat, lng float64) (float64, error)
}

// NoticeKind classifies a transient user-facing notice.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// Notice is an auto-dismissing message shown over the map.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// ContextMenu anchors the right-click menu: the screen pixel it opened at
// and the geographic coordinate it captured. The two travel together; a menu
// is either fully present or fully absent.
type ContextMenu struct {
	ScreenX int     `json:"screenX"`
	ScreenY int     `json:"screenY"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Viewport is the settled map view.
type Viewport struct {
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
	Zoom      int     `json:"zoom"`
}

// Options tunes a Controller. Zero values get defaults.
type Options struct {
	MoveThresholdDeg float64
	DebounceDelay    time.Duration
	NoticeTTL        time.Duration
	PreviewZoomCap   int
	Layers           []config.Layer
	DefaultViewport  Viewport
}

// Controller is the map interaction state machine. All event methods are
// safe for concurrent use; asynchronous lookups never touch state after
// Close.
type Controller struct {
	log     zerolog.Logger
	backend Backend
	elev    ElevationLookup
	metrics *metrics.Metrics
	bus     *perf.Bus

	// lifetime of async work; cancelled on Close
	ctx    context.Context
	cancel context.CancelFunc

	thresholdDeg  float64
	debounceDelay time.Duration
	noticeTTL     time.Duration

	mu sync.Mutex

	viewport    Viewport
	cursor      *forms.LatLng
	activeLayer config.LayerID
	menu        *ContextMenu

	placing  bool
	draftAt  *forms.LatLng
	spotForm bool
	terrain  bool

	spots         []model.Spot
	terrainPoints []model.TerrainPoint

	elevationShown  bool
	cursorElevation *float64
	lastIssued      *forms.LatLng
	debounceTimer   *time.Timer
	gen             uint64

	previewer *tiles.Previewer
	previews  []tiles.Preview

	notice       *Notice
	noticeExpiry time.Time
	onNotice     func(Notice)

	closed bool
}

// New builds a Controller. onNotice, metrics and bus may be nil.
func New(log zerolog.Logger, backend Backend, elev ElevationLookup, m *metrics.Metrics, bus *perf.Bus, onNotice func(Notice), opts Options) *Controller {
	threshold := opts.MoveThresholdDeg
	if threshold <= 0 {
		threshold = 1e-4
	}
	delay := opts.DebounceDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	ttl := opts.NoticeTTL
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	layers := opts.Layers
	if len(layers) == 0 {
		layers = config.DefaultLayers()
	}
	vp := opts.DefaultViewport
	if vp.Zoom == 0 {
		vp = Viewport{CenterLat: 55.75, CenterLng: 37.61, Zoom: 5}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		log:           log,
		backend:       backend,
		elev:          elev,
		metrics:       m,
		bus:           bus,
		ctx:           ctx,
		cancel:        cancel,
		thresholdDeg:  threshold,
		debounceDelay: delay,
		noticeTTL:     ttl,
		viewport:      vp,
		activeLayer:   layers[0].ID,
		previewer:     tiles.NewPreviewer(layers, opts.PreviewZoomCap),
		onNotice:      onNotice,
	}
	c.previews = c.previewer.Previews(vp.CenterLat, vp.CenterLng, vp.Zoom)
	return c
}

// Close cancels the pending debounce timer and any in-flight lookup. No
// state changes happen after Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	c.mu.Unlock()
	c.cancel()
}

// LoadSpots fetches the spot list from the backend and replaces the
// in-memory collection. Disabled spots are not shown on the map.
func (c *Controller) LoadSpots(ctx context.Context) error {
	var spots []model.Spot
	fetch := func() error {
		var err error
		spots, err = c.backend.Spots(ctx)
		return err
	}

	var err error
	if c.bus != nil {
		err = c.bus.ProfileCall("spots.list", fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		c.log.Error().Err(err).Msg("failed to load spots")
		c.raise(NoticeError, "Failed to load spots")
		return err
	}

	visible := spots[:0]
	for _, s := range spots {
		if s.IsEnabled {
			visible = append(visible, s)
		}
	}

	c.mu.Lock()
	c.spots = visible
	c.mu.Unlock()
	return nil
}

// Spots returns a copy of the in-memory spot list.
func (c *Controller) Spots() []model.Spot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Spot, len(c.spots))
	copy(out, c.spots)
	return out
}

// TerrainPoints returns a copy of the in-memory terrain point list.
func (c *Controller) TerrainPoints() []model.TerrainPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.TerrainPoint, len(c.terrainPoints))
	copy(out, c.terrainPoints)
	return out
}

// SetPlacing toggles "placing a new spot" mode, in which the next primary
// click captures the draft coordinate.
func (c *Controller) SetPlacing(on bool) {
	c.mu.Lock()
	c.placing = on
	c.mu.Unlock()
}

// Click handles a primary click at a geographic coordinate. Any open context
// menu closes. In placing mode the coordinate becomes the new-spot draft and
// the spot form opens.
func (c *Controller) Click(lat, lng float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.menu = nil
	if !c.placing {
		return
	}
	c.placing = false
	c.draftAt = &forms.LatLng{Lat: lat, Lng: lng}
	c.spotForm = true
}

// PointerMove updates the live cursor and, when the elevation readout is on,
// schedules a debounced lookup.
func (c *Controller) PointerMove(lat, lng float64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cursor = &forms.LatLng{Lat: lat, Lng: lng}
	if !c.elevationShown {
		c.mu.Unlock()
		return
	}

	// Only schedule if the cursor moved beyond the threshold from the last
	// coordinate a lookup was actually issued for.
	if c.lastIssued != nil &&
		abs(lat-c.lastIssued.Lat) <= c.thresholdDeg &&
		abs(lng-c.lastIssued.Lng) <= c.thresholdDeg {
		c.mu.Unlock()
		return
	}

	// Cancel-and-replace: a newer position supersedes a pending lookup.
	if c.debounceTimer != nil {
		if c.debounceTimer.Stop() {
			c.metrics.IncDebounceCancel()
		}
	}
	pos := forms.LatLng{Lat: lat, Lng: lng}
	c.debounceTimer = time.AfterFunc(c.debounceDelay, func() {
		c.fireLookup(pos)
	})
	c.mu.Unlock()
}

func (c *Controller) fireLookup(pos forms.LatLng) {
	c.mu.Lock()
	if c.closed || c.elev == nil {
		c.mu.Unlock()
		return
	}
	c.gen++
	token := c.gen
	c.lastIssued = &pos
	c.mu.Unlock()

	start := time.Now()
	ele, err := c.elev.Lookup(c.ctx, pos.Lat, pos.Lng)
	elapsed := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	// A response whose token is no longer the latest belongs to a stale
	// cursor position; showing it would race newer data.
	if token != c.gen {
		c.metrics.IncStaleResponse()
		return
	}

	switch {
	case errors.Is(err, elevation.ErrTimeout):
		c.metrics.ObserveElevationLookup("timeout", elapsed)
		c.cursorElevation = nil
		c.raiseLocked(NoticeError, "Elevation lookup timed out")
	case err != nil:
		c.metrics.ObserveElevationLookup("error", elapsed)
		c.cursorElevation = nil
		c.raiseLocked(NoticeError, "Elevation unavailable")
	default:
		c.metrics.ObserveElevationLookup("ok", elapsed)
		v := ele
		c.cursorElevation = &v
	}
}

// ContextClick opens the context menu anchored at a screen pixel, capturing
// the geographic coordinate under it.
func (c *Controller) ContextClick(screenX, screenY int, lat, lng float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menu = &ContextMenu{ScreenX: screenX, ScreenY: screenY, Lat: lat, Lng: lng}
}

// DragStart closes the context menu: a menu anchored to a stale screen
// position must not remain clickable.
func (c *Controller) DragStart() {
	c.mu.Lock()
	c.menu = nil
	c.mu.Unlock()
}

// ZoomStart closes the context menu for the same reason as DragStart.
func (c *Controller) ZoomStart() {
	c.mu.Lock()
	c.menu = nil
	c.mu.Unlock()
}

// MoveEnd records the settled viewport. This is the only trigger for
// recomputing tile preview URLs.
func (c *Controller) MoveEnd(centerLat, centerLng float64, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = Viewport{CenterLat: centerLat, CenterLng: centerLng, Zoom: zoom}
	c.previews = c.previewer.Previews(centerLat, centerLng, zoom)
}

// MenuAddSpot starts the spot creation flow from the open context menu and
// clears the menu. Returns false if no menu is open.
func (c *Controller) MenuAddSpot() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.menu == nil {
		return false
	}
	c.draftAt = &forms.LatLng{Lat: c.menu.Lat, Lng: c.menu.Lng}
	c.spotForm = true
	c.menu = nil
	return true
}

// MenuAddTerrainPoint starts the terrain point creation flow from the open
// context menu and clears the menu. Returns false if no menu is open.
func (c *Controller) MenuAddTerrainPoint() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.menu == nil {
		return false
	}
	c.draftAt = &forms.LatLng{Lat: c.menu.Lat, Lng: c.menu.Lng}
	c.terrain = true
	c.menu = nil
	return true
}

// DraftOrigin returns the captured coordinate a creation flow was opened
// from, or nil when no flow is active.
func (c *Controller) DraftOrigin() *forms.LatLng {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draftAt == nil {
		return nil
	}
	v := *c.draftAt
	return &v
}

// CloseForms abandons any open creation flow.
func (c *Controller) CloseForms() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spotForm, c.terrain = false, false
	c.draftAt = nil
}

// CreateSpot submits a spot draft to the backend and, on success, appends
// the persisted record to the in-memory list. Failures raise a notice and
// keep the list unchanged; the caller's form state is not cleared.
func (c *Controller) CreateSpot(ctx context.Context, spot model.Spot) (model.Spot, error) {
	var created model.Spot
	call := func() error {
		var err error
		created, err = c.backend.CreateSpot(ctx, spot)
		return err
	}

	var err error
	if c.bus != nil {
		err = c.bus.ProfileCall("spots.create", call)
	} else {
		err = call()
	}
	if err != nil {
		c.log.Error().Err(err).Str("name", spot.Name).Msg("create spot failed")
		c.raise(NoticeError, "Failed to add spot")
		return model.Spot{}, err
	}

	c.metrics.IncEntityCreated("spot")
	c.mu.Lock()
	c.spots = append(c.spots, created)
	c.spotForm = false
	c.draftAt = nil
	c.mu.Unlock()

	c.raise(NoticeSuccess, "Spot added")
	return created, nil
}

// CreateTerrainPoint mirrors CreateSpot for terrain points.
func (c *Controller) CreateTerrainPoint(ctx context.Context, tp model.TerrainPoint) (model.TerrainPoint, error) {
	var created model.TerrainPoint
	call := func() error {
		var err error
		created, err = c.backend.CreateTerrainPoint(ctx, tp)
		return err
	}

	var err error
	if c.bus != nil {
		err = c.bus.ProfileCall("terrain_points.create", call)
	} else {
		err = call()
	}
	if err != nil {
		c.log.Error().Err(err).Str("name", tp.Name).Msg("create terrain point failed")
		c.raise(NoticeError, "Failed to add terrain point")
		return model.TerrainPoint{}, err
	}

	c.metrics.IncEntityCreated("terrain_point")
	c.mu.Lock()
	c.terrainPoints = append(c.terrainPoints, created)
	c.terrain = false
	c.draftAt = nil
	c.mu.Unlock()

	c.raise(NoticeSuccess, "Terrain point added")
	return created, nil
}

// SetLayer switches the active tile layer. Unknown ids are ignored.
func (c *Controller) SetLayer(id config.LayerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.previews {
		if p.Layer == id {
			c.activeLayer = id
			return
		}
	}
}

// SetElevationShown toggles the cursor elevation readout. Turning it off
// clears the displayed value.
func (c *Controller) SetElevationShown(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elevationShown = on
	if !on {
		c.cursorElevation = nil
		c.lastIssued = nil
		if c.debounceTimer != nil {
			c.debounceTimer.Stop()
			c.debounceTimer = nil
		}
	}
}

// Snapshot is the controller state the UI renders from.
type Snapshot struct {
	Viewport        Viewport        `json:"viewport"`
	Cursor          *forms.LatLng   `json:"cursor,omitempty"`
	CursorElevation *float64        `json:"cursorElevation,omitempty"`
	ActiveLayer     config.LayerID  `json:"activeLayer"`
	ContextMenu     *ContextMenu    `json:"contextMenu,omitempty"`
	Previews        []tiles.Preview `json:"previews"`
	SpotFormOpen    bool            `json:"spotFormOpen"`
	TerrainFormOpen bool            `json:"terrainFormOpen"`
	DraftOrigin     *forms.LatLng   `json:"draftOrigin,omitempty"`
	Notice          *Notice         `json:"notice,omitempty"`
	SpotCount       int             `json:"spotCount"`
}

// Snapshot returns a consistent copy of the rendered state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Viewport:        c.viewport,
		ActiveLayer:     c.activeLayer,
		Previews:        c.previews,
		SpotFormOpen:    c.spotForm,
		TerrainFormOpen: c.terrain,
		SpotCount:       len(c.spots),
	}
	if c.cursor != nil {
		v := *c.cursor
		s.Cursor = &v
	}
	if c.cursorElevation != nil {
		v := *c.cursorElevation
		s.CursorElevation = &v
	}
	if c.menu != nil {
		v := *c.menu
		s.ContextMenu = &v
	}
	if c.draftAt != nil {
		v := *c.draftAt
		s.DraftOrigin = &v
	}
	if c.notice != nil && time.Now().Before(c.noticeExpiry) {
		v := *c.notice
		s.Notice = &v
	}
	return s
}

func (c *Controller) raise(kind NoticeKind, msg string) {
	c.mu.Lock()
	c.raiseLocked(kind, msg)
	c.mu.Unlock()
}

// raiseLocked stores the notice with its expiry and notifies the subscriber.
// Caller holds c.mu.
func (c *Controller) raiseLocked(kind NoticeKind, msg string) {
	n := Notice{Kind: kind, Message: msg}
	c.notice = &n
	c.noticeExpiry = time.Now().Add(c.noticeTTL)
	if c.onNotice != nil {
		go c.onNotice(n)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
