// Package forms holds the creation-form draft state for spots and terrain
// points. A form owns its draft exclusively; the only inbound side effect is
// the one-time pre-fill on open, driven by the auto-fill preference.
package forms

import (
	"context"
	"errors"
	"sync"

	"parahub/client-go/internal/model"
	"parahub/client-go/internal/prefs"
)

// ErrNameRequired blocks submission of a draft with an empty name. No
// network call is made in that case.
var ErrNameRequired = errors.New("name is required")

// ErrUnknownSpot blocks selecting an owner that is not in the offered list.
var ErrUnknownSpot = errors.New("unknown owning spot")

// LatLng is a captured map coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ElevationFetcher resolves the elevation for a coordinate. nil means the
// form cannot auto-fill elevation.
type ElevationFetcher func(ctx context.Context, lat, lng float64) (float64, error)

// SpotForm is the draft state behind the spot creation modal.
type SpotForm struct {
	mu       sync.Mutex
	mode     prefs.AutoFillMode
	captured *LatLng
	fetch    ElevationFetcher
	onSubmit func(model.Spot)
	epoch    int
	draft    model.Spot
}

// NewSpotForm builds a form for one opening. captured is the map coordinate
// the form was opened from, nil when opened without one.
func NewSpotForm(mode prefs.AutoFillMode, captured *LatLng, fetch ElevationFetcher, onSubmit func(model.Spot)) *SpotForm {
	f := &SpotForm{mode: mode, captured: captured, fetch: fetch, onSubmit: onSubmit}
	f.draft = f.defaults()
	return f
}

func (f *SpotForm) defaults() model.Spot {
	d := model.Spot{
		IsEnabled:          true,
		XCDifficulty:       1,
		LearningDifficulty: 1,
	}
	if f.mode == prefs.AutoFillCoordsElevation && f.captured != nil {
		d.Latitude = f.captured.Lat
		d.Longitude = f.captured.Lng
	}
	return d
}

// Open seeds the draft and starts the asynchronous elevation fill when the
// mode calls for it. The returned channel closes once the fill has settled
// (immediately when there is nothing to fetch).
func (f *SpotForm) Open(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	f.mu.Lock()
	f.epoch++
	epoch := f.epoch
	f.draft = f.defaults()
	mode, captured, fetch := f.mode, f.captured, f.fetch
	f.mu.Unlock()

	if mode == prefs.AutoFillNone || captured == nil || fetch == nil {
		close(done)
		return done
	}

	// Elevation is fetched from the externally captured coordinate even in
	// elevation-only mode, not from whatever the coordinate fields hold.
	go func() {
		defer close(done)
		ele, err := fetch(ctx, captured.Lat, captured.Lng)
		if err != nil {
			return // fail soft: elevation stays at its default
		}
		f.mu.Lock()
		if f.epoch == epoch {
			f.draft.Elevation = ele
		}
		f.mu.Unlock()
	}()
	return done
}

// Edit mutates the draft under the form's lock; every field the UI shows is
// owned by this draft.
func (f *SpotForm) Edit(fn func(*model.Spot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.draft)
}

// Draft returns a copy of the current draft.
func (f *SpotForm) Draft() model.Spot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Submit validates the draft, hands it verbatim to the submit callback and
// resets to mode-appropriate defaults. Submission is fire-and-forget: the
// reset does not wait for the caller's success or failure signal.
func (f *SpotForm) Submit() error {
	f.mu.Lock()
	if f.draft.Name == "" {
		f.mu.Unlock()
		return ErrNameRequired
	}
	out := f.draft
	out.SuitableWinds = model.NormalizeWinds(out.SuitableWinds)
	f.epoch++
	f.draft = f.defaults()
	cb := f.onSubmit
	f.mu.Unlock()

	if cb != nil {
		cb(out)
	}
	return nil
}

// TerrainForm is the draft state behind the terrain point creation modal.
type TerrainForm struct {
	mu       sync.Mutex
	mode     prefs.AutoFillMode
	captured *LatLng
	fetch    ElevationFetcher
	onSubmit func(model.TerrainPoint)
	spots    []model.Spot
	epoch    int
	draft    model.TerrainPoint
}

// NewTerrainForm builds a terrain point form. spots is the list offered for
// choosing an owner; choosing none is allowed.
func NewTerrainForm(mode prefs.AutoFillMode, captured *LatLng, spots []model.Spot, fetch ElevationFetcher, onSubmit func(model.TerrainPoint)) *TerrainForm {
	f := &TerrainForm{mode: mode, captured: captured, spots: spots, fetch: fetch, onSubmit: onSubmit}
	f.draft = f.defaults()
	return f
}

func (f *TerrainForm) defaults() model.TerrainPoint {
	d := model.TerrainPoint{
		IsEnabled: true,
		Type:      model.PointBeacon,
	}
	if f.mode == prefs.AutoFillCoordsElevation && f.captured != nil {
		d.Latitude = f.captured.Lat
		d.Longitude = f.captured.Lng
	}
	return d
}

// Open seeds the draft and starts the elevation fill, mirroring SpotForm.
func (f *TerrainForm) Open(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	f.mu.Lock()
	f.epoch++
	epoch := f.epoch
	f.draft = f.defaults()
	mode, captured, fetch := f.mode, f.captured, f.fetch
	f.mu.Unlock()

	if mode == prefs.AutoFillNone || captured == nil || fetch == nil {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ele, err := fetch(ctx, captured.Lat, captured.Lng)
		if err != nil {
			return
		}
		f.mu.Lock()
		if f.epoch == epoch {
			f.draft.Elevation = ele
		}
		f.mu.Unlock()
	}()
	return done
}

// Edit mutates the draft under the form's lock.
func (f *TerrainForm) Edit(fn func(*model.TerrainPoint)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.draft)
}

// Draft returns a copy of the current draft.
func (f *TerrainForm) Draft() model.TerrainPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// SelectSpot sets the owning spot by id; id == nil clears the selection.
// The id must come from the offered list.
func (f *TerrainForm) SelectSpot(id *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id == nil {
		f.draft.SpotID = nil
		return nil
	}
	for _, s := range f.spots {
		if s.ID != nil && *s.ID == *id {
			v := *id
			f.draft.SpotID = &v
			return nil
		}
	}
	return ErrUnknownSpot
}

// Submit validates and hands off the draft, then resets, like SpotForm.
func (f *TerrainForm) Submit() error {
	f.mu.Lock()
	if f.draft.Name == "" {
		f.mu.Unlock()
		return ErrNameRequired
	}
	if !f.draft.Type.Valid() {
		f.draft.Type = model.PointBeacon
	}
	out := f.draft
	f.epoch++
	f.draft = f.defaults()
	cb := f.onSubmit
	f.mu.Unlock()

	if cb != nil {
		cb(out)
	}
	return nil
}
