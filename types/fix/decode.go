package fix

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

var ErrDecodeFixes = errors.New("could not decode as fix, fix array, or geojson")

// Trackers and exports disagree on field names. Accept the common spellings,
// including the capitalized geojson-property variants.
var (
	latKeys  = []string{"lat", "latitude"}
	lonKeys  = []string{"lon", "lng", "longitude"}
	accKeys  = []string{"accuracy", "acc", "horizontal_accuracy", "horizontalAccuracy", "Accuracy"}
	spdKeys  = []string{"speed", "velocity", "Speed"}
	altKeys  = []string{"elevation", "altitude", "alt", "Elevation"}
	hdgKeys  = []string{"heading", "course", "bearing", "Heading"}
	timeKeys = []string{"time", "timestamp", "unixtime", "Time", "UnixTime"}
)

func firstOf(r gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func decodeTime(v gjson.Result) (time.Time, error) {
	if !v.Exists() {
		return time.Time{}, errors.New("missing time field")
	}
	if v.Type == gjson.Number {
		// Unix seconds, possibly fractional.
		sec := v.Float()
		return time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9)), nil
	}
	t, err := time.Parse(time.RFC3339, v.String())
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		return time.Time{}, errors.New("zero time")
	}
	return t, nil
}

// DecodeFix decodes one flat JSON object into a Fix.
func DecodeFix(r gjson.Result) (Fix, error) {
	if !r.IsObject() {
		return Fix{}, fmt.Errorf("not an object: %s", r.Type)
	}
	lat, lon := firstOf(r, latKeys), firstOf(r, lonKeys)
	if !lat.Exists() || !lon.Exists() {
		return Fix{}, errors.New("missing coordinate fields")
	}
	t, err := decodeTime(firstOf(r, timeKeys))
	if err != nil {
		return Fix{}, err
	}
	f := Fix{
		Latitude:  lat.Float(),
		Longitude: lon.Float(),
		Time:      t,
		Speed:     -1,
	}
	if v := firstOf(r, accKeys); v.Exists() {
		f.Accuracy = v.Float()
	}
	if v := firstOf(r, spdKeys); v.Exists() {
		f.Speed = v.Float()
	}
	if v := firstOf(r, altKeys); v.Exists() {
		f.Altitude = v.Float()
	}
	if v := firstOf(r, hdgKeys); v.Exists() {
		f.Heading = v.Float()
	}
	return f, nil
}

// DecodeFixes is a shotgun decoder for pushed location payloads.
// It accepts a single flat object, an array of flat objects, or a geojson
// FeatureCollection of point features with the usual properties.
func DecodeFixes(data []byte) ([]Fix, error) {
	parsed := gjson.ParseBytes(data)

	if features := parsed.Get("features"); features.Exists() && features.IsArray() {
		out := make([]Fix, 0, len(features.Array()))
		for _, ft := range features.Array() {
			coords := ft.Get("geometry.coordinates")
			if !coords.IsArray() || len(coords.Array()) < 2 {
				return nil, fmt.Errorf("%w: feature without point coordinates", ErrDecodeFixes)
			}
			props := ft.Get("properties")
			t, err := decodeTime(firstOf(props, timeKeys))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDecodeFixes, err)
			}
			f := Fix{
				Longitude: coords.Array()[0].Float(),
				Latitude:  coords.Array()[1].Float(),
				Time:      t,
				Speed:     -1,
			}
			if v := firstOf(props, accKeys); v.Exists() {
				f.Accuracy = v.Float()
			}
			if v := firstOf(props, spdKeys); v.Exists() {
				f.Speed = v.Float()
			}
			if v := firstOf(props, altKeys); v.Exists() {
				f.Altitude = v.Float()
			}
			if v := firstOf(props, hdgKeys); v.Exists() {
				f.Heading = v.Float()
			}
			out = append(out, f)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: empty feature collection", ErrDecodeFixes)
		}
		return out, nil
	}

	if parsed.IsObject() {
		f, err := DecodeFix(parsed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFixes, err)
		}
		return []Fix{f}, nil
	}

	if parsed.IsArray() {
		arr := parsed.Array()
		if len(arr) == 0 {
			return nil, fmt.Errorf("%w: empty array", ErrDecodeFixes)
		}
		out := make([]Fix, 0, len(arr))
		for _, el := range arr {
			f, err := DecodeFix(el)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDecodeFixes, err)
			}
			out = append(out, f)
		}
		return out, nil
	}

	return nil, ErrDecodeFixes
}
