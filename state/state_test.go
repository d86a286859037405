package state

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/runstr/trackd/events"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/fix"
	"github.com/runstr/trackd/types/workout"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testWorkout(id string, start time.Time) *workout.Workout {
	return &workout.Workout{
		ID:       id,
		UserID:   "user-1",
		Activity: activity.Running,
		Start:    start,
		End:      start.Add(30 * time.Minute),
		Duration: 30 * time.Minute,
		Distance: 6000,
		Route: []fix.Fix{
			{Latitude: 44.9778, Longitude: -93.2650, Accuracy: 5, Time: start},
			{Latitude: 44.9878, Longitude: -93.2650, Accuracy: 5, Time: start.Add(time.Minute)},
		},
		DistanceSource: "gps",
		AveragePace:    5.0,
	}
}

func TestStoreAndReadWorkout(t *testing.T) {
	s := testStore(t)
	start := time.Date(2025, 6, 1, 7, 30, 0, 0, time.UTC)

	w := testWorkout("w-abc", start)
	if err := s.StoreWorkout(w); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadWorkout("w-abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.Distance != 6000 || got.Activity != activity.Running {
		t.Errorf("round trip mangled record: %+v", got)
	}
	if !got.Start.Equal(start) {
		t.Errorf("start = %v, want %v", got.Start, start)
	}

	if _, err := s.ReadWorkout("nope"); err == nil {
		t.Error("missing ID did not error")
	}
}

func TestListWorkoutsOrdered(t *testing.T) {
	s := testStore(t)
	base := time.Date(2025, 6, 1, 7, 30, 0, 0, time.UTC)

	// Stored out of order; listed by start time.
	for _, d := range []time.Duration{48 * time.Hour, 0, 24 * time.Hour} {
		w := testWorkout("w-"+d.String(), base.Add(d))
		if err := s.StoreWorkout(w); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListWorkouts()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("listed %d workouts, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Start.Before(got[i-1].Start) {
			t.Errorf("listing out of order at %d: %v before %v", i, got[i].Start, got[i-1].Start)
		}
	}
}

func TestKVRoundTrip(t *testing.T) {
	s := testStore(t)
	if err := s.WriteKV([]byte("units"), []byte("metric")); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadKV([]byte("units"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "metric" {
		t.Errorf("ReadKV = %q, want metric", got)
	}
	missing, err := s.ReadKV([]byte("absent"))
	if err != nil || missing != nil {
		t.Errorf("missing key = %q, %v, want nil, nil", missing, err)
	}
	if err := s.WriteKV(nil, []byte("x")); err == nil {
		t.Error("nil key accepted")
	}
}

func TestLastSnapshotCache(t *testing.T) {
	s := testStore(t)
	if _, ok := s.LastSnapshot("user-1"); ok {
		t.Error("cold cache returned a snapshot")
	}
	s.SetLastSnapshot("user-1", events.Snapshot{SessionID: "s-1", Distance: 420})
	snap, ok := s.LastSnapshot("user-1")
	if !ok || snap.Distance != 420 {
		t.Errorf("cached snapshot = %+v, %v", snap, ok)
	}
}

func TestWriteRouteGZ(t *testing.T) {
	s := testStore(t)
	w := testWorkout("w-route", time.Date(2025, 6, 1, 7, 30, 0, 0, time.UTC))

	path, err := s.WriteRouteGZ(w)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	ft := &geojson.Feature{}
	if err := json.NewDecoder(gz).Decode(ft); err != nil {
		t.Fatal(err)
	}
	if ft.Properties["ID"] != "w-route" {
		t.Errorf("route feature ID = %v", ft.Properties["ID"])
	}
	if ft.Geometry.GeoJSONType() != "LineString" {
		t.Errorf("geometry type = %q, want LineString", ft.Geometry.GeoJSONType())
	}
}
