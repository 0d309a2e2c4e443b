package mapctl

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"parahub/client-go/internal/elevation"
	"parahub/client-go/internal/model"
)

type fakeElevation struct {
	mu     sync.Mutex
	calls  []coord
	result float64
	err    error
	gate   chan struct{} // when non-nil, each call blocks until it closes
}

type coord struct{ lat, lng float64 }

func (f *fakeElevation) Lookup(ctx context.Context, lat, lng float64) (float64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, coord{lat, lng})
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeElevation) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeElevation) lastCall() (coord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return coord{}, false
	}
	return f.calls[len(f.calls)-1], true
}

type fakeBackend struct {
	mu      sync.Mutex
	spots   []model.Spot
	created []model.Spot
	err     error
	nextID  int64
}

func (b *fakeBackend) Spots(ctx context.Context) ([]model.Spot, error) {
	return b.spots, b.err
}

func (b *fakeBackend) CreateSpot(ctx context.Context, s model.Spot) (model.Spot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return model.Spot{}, b.err
	}
	b.nextID++
	id := b.nextID
	s.ID = &id
	b.created = append(b.created, s)
	return s, nil
}

func (b *fakeBackend) CreateTerrainPoint(ctx context.Context, tp model.TerrainPoint) (model.TerrainPoint, error) {
	if b.err != nil {
		return model.TerrainPoint{}, b.err
	}
	b.nextID++
	id := b.nextID
	tp.ID = &id
	return tp, nil
}

func newTestController(t *testing.T, elev ElevationLookup, backend Backend) *Controller {
	t.Helper()
	if backend == nil {
		backend = &fakeBackend{}
	}
	c := New(zerolog.Nop(), backend, elev, nil, nil, nil, Options{
		DebounceDelay: 5 * time.Millisecond,
	})
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPointerMove_subThresholdIssuesNoLookup(t *testing.T) {
	elev := &fakeElevation{result: 214}
	c := newTestController(t, elev, nil)
	c.SetElevationShown(true)

	c.PointerMove(55.75, 37.61)
	waitFor(t, func() bool { return elev.callCount() == 1 }, "first move never issued a lookup")

	// Everything within the threshold of the last fetched position is noise.
	c.PointerMove(55.75+5e-5, 37.61)
	c.PointerMove(55.75, 37.61-9e-5)
	time.Sleep(30 * time.Millisecond)

	if n := elev.callCount(); n != 1 {
		t.Fatalf("sub-threshold moves issued lookups: %d calls", n)
	}

	waitFor(t, func() bool {
		s := c.Snapshot()
		return s.CursorElevation != nil && *s.CursorElevation == 214
	}, "elevation never reached the snapshot")
}

func TestPointerMove_cancelAndReplace(t *testing.T) {
	elev := &fakeElevation{result: 100}
	backend := &fakeBackend{}
	c := New(zerolog.Nop(), backend, elev, nil, nil, nil, Options{
		DebounceDelay: 40 * time.Millisecond,
	})
	defer c.Close()
	c.SetElevationShown(true)

	c.PointerMove(10, 10)
	time.Sleep(5 * time.Millisecond)
	c.PointerMove(20, 20)

	waitFor(t, func() bool { return elev.callCount() >= 1 }, "replacement lookup never fired")
	time.Sleep(60 * time.Millisecond)

	if n := elev.callCount(); n != 1 {
		t.Fatalf("expected one lookup after cancel-and-replace, got %d", n)
	}
	if last, ok := elev.lastCall(); !ok || last.lat != 20 || last.lng != 20 {
		t.Fatalf("lookup issued for the superseded position: %+v", last)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	firstGate := make(chan struct{})
	elev := &fakeElevation{result: 100, gate: firstGate}
	c := newTestController(t, elev, nil)
	c.SetElevationShown(true)

	// First lookup fires and parks on the gate.
	c.PointerMove(10, 10)
	waitFor(t, func() bool { return elev.callCount() == 1 }, "first lookup never fired")

	// Second lookup: let it resolve immediately with a fresher value.
	elev.mu.Lock()
	elev.gate = nil
	elev.result = 200
	elev.mu.Unlock()
	c.PointerMove(20, 20)
	waitFor(t, func() bool { return elev.callCount() == 2 }, "second lookup never fired")
	waitFor(t, func() bool {
		s := c.Snapshot()
		return s.CursorElevation != nil && *s.CursorElevation == 200
	}, "fresh elevation never applied")

	// Now the stale first response comes back; it must not clobber the
	// fresher value.
	close(firstGate)
	time.Sleep(20 * time.Millisecond)

	s := c.Snapshot()
	if s.CursorElevation == nil || *s.CursorElevation != 200 {
		t.Fatalf("stale response overwrote fresh elevation: %+v", s.CursorElevation)
	}
}

func TestTimeoutGetsDistinctNotice(t *testing.T) {
	elev := &fakeElevation{err: elevation.ErrTimeout}
	c := newTestController(t, elev, nil)
	c.SetElevationShown(true)

	c.PointerMove(10, 10)
	waitFor(t, func() bool { return c.Snapshot().Notice != nil }, "timeout never raised a notice")

	s := c.Snapshot()
	if s.CursorElevation != nil {
		t.Fatalf("timed-out lookup must not leave an elevation value")
	}
	if s.Notice.Kind != NoticeError || !strings.Contains(s.Notice.Message, "timed out") {
		t.Fatalf("expected a timeout-specific notice, got %+v", s.Notice)
	}
}

func TestGenericFailureNotice(t *testing.T) {
	elev := &fakeElevation{err: errors.New("boom")}
	c := newTestController(t, elev, nil)
	c.SetElevationShown(true)

	c.PointerMove(10, 10)
	waitFor(t, func() bool { return c.Snapshot().Notice != nil }, "failure never raised a notice")

	if msg := c.Snapshot().Notice.Message; strings.Contains(msg, "timed out") {
		t.Fatalf("generic failure must not claim a timeout: %q", msg)
	}
}

func TestClose_cancelsPendingLookup(t *testing.T) {
	elev := &fakeElevation{result: 1}
	backend := &fakeBackend{}
	c := New(zerolog.Nop(), backend, elev, nil, nil, nil, Options{
		DebounceDelay: 50 * time.Millisecond,
	})
	c.SetElevationShown(true)

	c.PointerMove(10, 10)
	c.Close()
	time.Sleep(80 * time.Millisecond)

	if n := elev.callCount(); n != 0 {
		t.Fatalf("lookup fired after Close: %d calls", n)
	}
}

func TestContextMenuLifecycle(t *testing.T) {
	c := newTestController(t, nil, nil)

	c.ContextClick(400, 300, 55.75, 37.61)
	s := c.Snapshot()
	if s.ContextMenu == nil {
		t.Fatal("context click did not open the menu")
	}
	if s.ContextMenu.ScreenX != 400 || s.ContextMenu.ScreenY != 300 ||
		s.ContextMenu.Lat != 55.75 || s.ContextMenu.Lng != 37.61 {
		t.Fatalf("menu must carry both anchor and payload: %+v", s.ContextMenu)
	}

	c.DragStart()
	if c.Snapshot().ContextMenu != nil {
		t.Fatal("drag must close the menu")
	}

	c.ContextClick(10, 10, 1, 2)
	c.ZoomStart()
	if c.Snapshot().ContextMenu != nil {
		t.Fatal("zoom must close the menu")
	}

	c.ContextClick(10, 10, 1, 2)
	c.Click(3, 4)
	if c.Snapshot().ContextMenu != nil {
		t.Fatal("primary click must close the menu")
	}
}

func TestMenuAddSpot(t *testing.T) {
	c := newTestController(t, nil, nil)

	if c.MenuAddSpot() {
		t.Fatal("MenuAddSpot must fail without an open menu")
	}

	c.ContextClick(100, 100, 55.75, 37.61)
	if !c.MenuAddSpot() {
		t.Fatal("MenuAddSpot failed with an open menu")
	}

	s := c.Snapshot()
	if s.ContextMenu != nil {
		t.Fatal("starting a flow must close the menu")
	}
	if !s.SpotFormOpen {
		t.Fatal("spot form did not open")
	}
	if s.DraftOrigin == nil || s.DraftOrigin.Lat != 55.75 || s.DraftOrigin.Lng != 37.61 {
		t.Fatalf("draft origin not captured from the menu: %+v", s.DraftOrigin)
	}
}

func TestMoveEndRecomputesPreviews(t *testing.T) {
	c := newTestController(t, nil, nil)

	before := c.Snapshot().Previews
	if len(before) == 0 {
		t.Fatal("expected previews for the default viewport")
	}

	// Pointer movement alone must not touch previews.
	c.PointerMove(1, 1)
	c.PointerMove(2, 2)
	after := c.Snapshot().Previews
	if &before[0] != &after[0] {
		t.Fatal("pointer movement recomputed previews")
	}

	c.MoveEnd(55.75, 37.61, 10)
	moved := c.Snapshot().Previews

	var osm, satellite string
	for _, p := range moved {
		switch p.Layer {
		case "standard":
			osm = p.URL
		case "satellite":
			satellite = p.URL
		}
	}
	if !strings.Contains(osm, "/10/618/320") {
		t.Fatalf("unexpected osm preview url %q", osm)
	}
	// The satellite provider addresses tiles as {z}/{y}/{x}.
	if !strings.Contains(satellite, "/10/320/618") {
		t.Fatalf("unexpected satellite preview url %q", satellite)
	}
}

func TestLoadSpotsFiltersDisabled(t *testing.T) {
	id1, id2 := int64(1), int64(2)
	backend := &fakeBackend{spots: []model.Spot{
		{ID: &id1, Name: "Open Hill", IsEnabled: true},
		{ID: &id2, Name: "Closed Hill", IsEnabled: false},
	}}
	c := newTestController(t, nil, backend)

	if err := c.LoadSpots(context.Background()); err != nil {
		t.Fatalf("LoadSpots: %v", err)
	}
	spots := c.Spots()
	if len(spots) != 1 || spots[0].Name != "Open Hill" {
		t.Fatalf("disabled spot leaked into the list: %+v", spots)
	}
}

func TestCreateSpot_appendsAndNotifies(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, nil, backend)

	created, err := c.CreateSpot(context.Background(), model.Spot{
		Name: "Test Hill", Latitude: 55.75, Longitude: 37.61, IsEnabled: true,
	})
	if err != nil {
		t.Fatalf("CreateSpot: %v", err)
	}
	if created.ID == nil {
		t.Fatal("persisted spot must carry its server id")
	}

	s := c.Snapshot()
	if s.SpotCount != 1 {
		t.Fatalf("created spot not appended, count %d", s.SpotCount)
	}
	if s.Notice == nil || s.Notice.Kind != NoticeSuccess {
		t.Fatalf("expected a success notice, got %+v", s.Notice)
	}
}

func TestCreateSpot_failureKeepsList(t *testing.T) {
	backend := &fakeBackend{err: errors.New("backend down")}
	c := newTestController(t, nil, backend)

	if _, err := c.CreateSpot(context.Background(), model.Spot{Name: "x"}); err == nil {
		t.Fatal("expected an error")
	}
	s := c.Snapshot()
	if s.SpotCount != 0 {
		t.Fatal("failed creation must not grow the list")
	}
	if s.Notice == nil || s.Notice.Kind != NoticeError {
		t.Fatalf("expected an error notice, got %+v", s.Notice)
	}
}

func TestRightClickToSpotFlow(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, &fakeElevation{result: 214}, backend)

	c.ContextClick(420, 280, 55.75, 37.61)
	if !c.MenuAddSpot() {
		t.Fatal("MenuAddSpot failed")
	}

	origin := c.DraftOrigin()
	if origin == nil {
		t.Fatal("no draft origin")
	}

	created, err := c.CreateSpot(context.Background(), model.Spot{
		Name:      "Test Hill",
		Latitude:  origin.Lat,
		Longitude: origin.Lng,
		Elevation: 214,
		IsEnabled: true,
	})
	if err != nil {
		t.Fatalf("CreateSpot: %v", err)
	}
	if created.Latitude != 55.75 || created.Longitude != 37.61 || created.Elevation != 214 {
		t.Fatalf("captured coordinate lost on the way to the backend: %+v", created)
	}

	s := c.Snapshot()
	if s.SpotFormOpen || s.DraftOrigin != nil {
		t.Fatalf("creation flow not cleaned up: %+v", s)
	}
}

func TestSetElevationShown_offClearsState(t *testing.T) {
	elev := &fakeElevation{result: 50}
	c := newTestController(t, elev, nil)
	c.SetElevationShown(true)

	c.PointerMove(10, 10)
	waitFor(t, func() bool { return c.Snapshot().CursorElevation != nil }, "lookup never resolved")

	c.SetElevationShown(false)
	if c.Snapshot().CursorElevation != nil {
		t.Fatal("disabling the readout must clear the value")
	}

	c.PointerMove(30, 30)
	time.Sleep(30 * time.Millisecond)
	if n := elev.callCount(); n != 1 {
		t.Fatalf("lookups issued while the readout is off: %d", n)
	}
}
