package influxdb

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/types/workout"
)

// ExportWorkouts posts finalized workout summaries to an InfluxDB Write API.
// Because it accepts a slice, use batches. The Write API will buffer and
// flush. The last error encountered is returned.
func ExportWorkouts(workouts []*workout.Workout) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(params.INFLUXDB_URL, params.INFLUXDB_TOKEN, opts)
	writeAPI := client.WriteAPI(params.INFLUXDB_ORG, params.INFLUXDB_BUCKET)

	// Errors returns a channel for reading errors which occur during async
	// writes. Must be called before performing any writes for errors to be
	// collected. The chan is unbuffered and must be drained or the writer
	// will block.
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, w := range workouts {
		p := influxdb2.NewPointWithMeasurement("workout").
			SetTime(w.End).
			AddTag("user", w.UserID).
			AddTag("activity", w.Activity.String()).
			AddTag("distance_source", w.DistanceSource).
			AddField("distance", w.Distance).
			AddField("duration", w.Duration.Seconds()).
			AddField("pace", w.AveragePace).
			AddField("elevation_gain", w.ElevationGain).
			AddField("elevation_loss", w.ElevationLoss).
			AddField("route_points", len(w.Route)).
			AddField("cells", w.CellCount)

		if w.Calories > 0 {
			p.AddField("calories", w.Calories)
		}
		if w.AvgHeartRate > 0 {
			p.AddField("heart_rate_avg", w.AvgHeartRate)
		}
		if w.Steps > 0 {
			p.AddField("steps", w.Steps)
			if w.StepsEstimated {
				p.AddField("steps_estimated", 1)
			}
		}
		writeAPI.WritePoint(p)

		at := w.Start
		for _, s := range w.Splits {
			if !s.Complete {
				continue
			}
			at = at.Add(s.Duration)
			sp := influxdb2.NewPointWithMeasurement("split").
				SetTime(at).
				AddTag("user", w.UserID).
				AddTag("workout", w.ID).
				AddField("n", s.Sequence).
				AddField("duration", s.Duration.Seconds()).
				AddField("pace", s.Pace)
			writeAPI.WritePoint(sp)
		}
	}

	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
