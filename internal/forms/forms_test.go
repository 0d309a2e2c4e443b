package forms

import (
	"context"
	"errors"
	"testing"

	"parahub/client-go/internal/model"
	"parahub/client-go/internal/prefs"
)

func fixedElevation(v float64) ElevationFetcher {
	return func(ctx context.Context, lat, lng float64) (float64, error) {
		return v, nil
	}
}

func failingElevation() ElevationFetcher {
	return func(ctx context.Context, lat, lng float64) (float64, error) {
		return 0, errors.New("lookup failed")
	}
}

func TestSpotForm_autoFillCoordsElevation(t *testing.T) {
	captured := &LatLng{Lat: 55.75, Lng: 37.61}
	f := NewSpotForm(prefs.AutoFillCoordsElevation, captured, fixedElevation(214), nil)

	// Coordinates populate immediately, before the lookup resolves.
	d := f.Draft()
	if d.Latitude != 55.75 || d.Longitude != 37.61 {
		t.Fatalf("coordinates not pre-filled: %+v", d)
	}

	<-f.Open(context.Background())

	d = f.Draft()
	if d.Elevation != 214 {
		t.Fatalf("elevation not filled after lookup, got %v", d.Elevation)
	}
}

func TestSpotForm_autoFillNoneLeavesCoordsZero(t *testing.T) {
	captured := &LatLng{Lat: 55.75, Lng: 37.61}
	f := NewSpotForm(prefs.AutoFillNone, captured, fixedElevation(214), nil)

	<-f.Open(context.Background())

	d := f.Draft()
	if d.Latitude != 0 || d.Longitude != 0 || d.Elevation != 0 {
		t.Fatalf("none mode must leave fields at defaults, got %+v", d)
	}
}

func TestSpotForm_autoFillElevationOnly(t *testing.T) {
	captured := &LatLng{Lat: 55.75, Lng: 37.61}
	f := NewSpotForm(prefs.AutoFillElevation, captured, fixedElevation(214), nil)

	<-f.Open(context.Background())

	d := f.Draft()
	if d.Latitude != 0 || d.Longitude != 0 {
		t.Fatalf("elevation-only mode must not fill coordinates, got %+v", d)
	}
	if d.Elevation != 214 {
		t.Fatalf("elevation-only mode must still fetch elevation from the captured point, got %v", d.Elevation)
	}
}

func TestSpotForm_failedLookupLeavesDefault(t *testing.T) {
	f := NewSpotForm(prefs.AutoFillCoordsElevation, &LatLng{Lat: 1, Lng: 2}, failingElevation(), nil)
	<-f.Open(context.Background())
	if d := f.Draft(); d.Elevation != 0 {
		t.Fatalf("failed lookup must leave elevation at default, got %v", d.Elevation)
	}
}

func TestSpotForm_submitValidatesAndResets(t *testing.T) {
	var submitted []model.Spot
	f := NewSpotForm(prefs.AutoFillCoordsElevation, &LatLng{Lat: 55.75, Lng: 37.61}, nil, func(s model.Spot) {
		submitted = append(submitted, s)
	})
	<-f.Open(context.Background())

	if err := f.Submit(); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("empty name must block submit, got %v", err)
	}
	if len(submitted) != 0 {
		t.Fatalf("blocked submit must not reach the callback")
	}

	f.Edit(func(d *model.Spot) {
		d.Name = "Test Hill"
		d.Description = "south facing"
		d.SuitableWinds = []model.Wind{{Direction: model.WindS, MinSpeed: 2, MaxSpeed: 6}}
	})
	if err := f.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(submitted))
	}
	got := submitted[0]
	if got.Name != "Test Hill" || got.Latitude != 55.75 || got.XCDifficulty != 1 || got.LearningDifficulty != 1 {
		t.Fatalf("draft not handed over verbatim: %+v", got)
	}

	// Reset happens without waiting for any success signal.
	d := f.Draft()
	if d.Name != "" || d.Description != "" {
		t.Fatalf("draft not reset after submit: %+v", d)
	}
	if d.Latitude != 55.75 || d.Longitude != 37.61 {
		t.Fatalf("reset must restore mode-appropriate defaults: %+v", d)
	}
}

func TestSpotForm_lateElevationDiscardedAfterReset(t *testing.T) {
	release := make(chan struct{})
	fetch := func(ctx context.Context, lat, lng float64) (float64, error) {
		<-release
		return 999, nil
	}
	f := NewSpotForm(prefs.AutoFillCoordsElevation, &LatLng{Lat: 1, Lng: 2}, fetch, func(model.Spot) {})
	done := f.Open(context.Background())

	f.Edit(func(d *model.Spot) { d.Name = "x" })
	if err := f.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	close(release)
	<-done

	if d := f.Draft(); d.Elevation != 0 {
		t.Fatalf("stale elevation applied to a reset draft: %v", d.Elevation)
	}
}

func TestTerrainForm_ownerSelection(t *testing.T) {
	id := int64(9)
	spots := []model.Spot{{ID: &id, Name: "Hill"}}
	f := NewTerrainForm(prefs.AutoFillNone, nil, spots, nil, nil)

	unknown := int64(12)
	if err := f.SelectSpot(&unknown); !errors.Is(err, ErrUnknownSpot) {
		t.Fatalf("expected ErrUnknownSpot, got %v", err)
	}
	if err := f.SelectSpot(&id); err != nil {
		t.Fatalf("SelectSpot: %v", err)
	}
	if d := f.Draft(); d.SpotID == nil || *d.SpotID != 9 {
		t.Fatalf("owner not set: %+v", d)
	}
	if err := f.SelectSpot(nil); err != nil {
		t.Fatalf("clearing owner: %v", err)
	}
	if d := f.Draft(); d.SpotID != nil {
		t.Fatalf("owner not cleared")
	}
}

func TestTerrainForm_submit(t *testing.T) {
	var got []model.TerrainPoint
	f := NewTerrainForm(prefs.AutoFillCoordsElevation, &LatLng{Lat: 47.1, Lng: 9.5}, nil, fixedElevation(1800), func(tp model.TerrainPoint) {
		got = append(got, tp)
	})
	<-f.Open(context.Background())

	if err := f.Submit(); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected name guard, got %v", err)
	}

	f.Edit(func(d *model.TerrainPoint) {
		d.Name = "Upper takeoff"
		d.Type = model.PointTakeoff
	})
	if err := f.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected one submission")
	}
	if got[0].Type != model.PointTakeoff || got[0].Latitude != 47.1 || got[0].Elevation != 1800 {
		t.Fatalf("unexpected submission: %+v", got[0])
	}

	if d := f.Draft(); d.Name != "" || d.Type != model.PointBeacon {
		t.Fatalf("terrain draft not reset to defaults: %+v", d)
	}
}
