package fix

import (
	"testing"
	"time"
)

func TestDecodeFixesFlatArray(t *testing.T) {
	data := []byte(`[
		{"lat": 45.0, "lon": -93.0, "accuracy": 8.0, "speed": 2.5, "time": "2025-06-01T07:30:00Z"},
		{"latitude": 45.001, "longitude": -93.0, "acc": 9.5, "timestamp": 1748763030}
	]`)
	fixes, err := DecodeFixes(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(fixes) != 2 {
		t.Fatalf("got %d fixes, want 2", len(fixes))
	}
	if fixes[0].Accuracy != 8.0 || fixes[0].Speed != 2.5 {
		t.Errorf("first fix = %+v", fixes[0])
	}
	if fixes[1].Accuracy != 9.5 {
		t.Errorf("aliased accuracy key not decoded: %+v", fixes[1])
	}
	if fixes[1].HasSpeed() {
		t.Errorf("missing speed should decode as unavailable, got %v", fixes[1].Speed)
	}
}

func TestDecodeFixesSingleObject(t *testing.T) {
	data := []byte(`{"lat": 45.0, "lng": -93.0, "time": "2025-06-01T07:30:00Z"}`)
	fixes, err := DecodeFixes(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(fixes) != 1 {
		t.Fatalf("got %d fixes, want 1", len(fixes))
	}
	if fixes[0].Longitude != -93.0 {
		t.Errorf("lng alias not decoded: %+v", fixes[0])
	}
}

func TestDecodeFixesFeatureCollection(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-93.0,45.0]},
		 "properties":{"Time":"2025-06-01T07:30:00Z","Accuracy":7.0,"Speed":3.0}}
	]}`)
	fixes, err := DecodeFixes(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(fixes) != 1 {
		t.Fatalf("got %d fixes, want 1", len(fixes))
	}
	f := fixes[0]
	if f.Latitude != 45.0 || f.Longitude != -93.0 {
		t.Errorf("coordinates = %v,%v", f.Latitude, f.Longitude)
	}
	if f.Accuracy != 7.0 || f.Speed != 3.0 {
		t.Errorf("properties not decoded: %+v", f)
	}
	want := time.Date(2025, 6, 1, 7, 30, 0, 0, time.UTC)
	if !f.Time.Equal(want) {
		t.Errorf("time = %v, want %v", f.Time, want)
	}
}

func TestDecodeFixesRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{
		[]byte(`"nope"`),
		[]byte(`[]`),
		[]byte(`[{"lat": 1.0}]`),
		[]byte(`{"lat": 45.0, "lon": -93.0}`), // no time
	} {
		if _, err := DecodeFixes(data); err == nil {
			t.Errorf("expected error for %s", data)
		}
	}
}
