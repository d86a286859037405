/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runstr/trackd/geo/gate"
	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/sensor"
	"github.com/runstr/trackd/tracker"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/workout"
)

var optSimActivity string
var optSimImperial bool
var optSimUser string
var optSimJSON bool
var optSimSynthetic int

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a recorded fix stream through the pipeline",
	Long: `Replays NDJSON fixes from stdin through a full tracking session,
using the fix timestamps as the session clock, and prints the finalized
workout. Useful for regression-checking pipeline changes against recorded
runs. With --synthetic N, generates an N-second noisy straight-line run
instead of reading stdin.

Example:

  zcat morning-run.ndjson.gz | trackd simulate --activity running
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		act := activity.FromString(optSimActivity)
		if !act.IsKnown() {
			log.Fatalf("unknown activity %q", optSimActivity)
		}
		config := params.DefaultTrackerConfig()
		if optSimImperial {
			config.Split = &params.SplitConfig{Distance: params.SplitDistanceImperial}
		}

		session := tracker.NewSession(optSimUser, act, config)
		ctx := context.Background()
		started := false
		rejected := map[gate.Reason]int{}
		total := 0

		var source sensor.Source = sensor.NewReplay(os.Stdin)
		if optSimSynthetic > 0 {
			source = &sensor.Synthetic{
				StartLat:    44.9778,
				StartLon:    -93.2650,
				Speed:       act.MeanSpeed(),
				Accuracy:    8,
				JitterSigma: 2,
				Count:       optSimSynthetic,
				Start:       time.Now(),
			}
		}

		if err := source.Begin(ctx); err != nil {
			log.Fatalln(err)
		}
		for f := range source.Fixes(ctx) {
			if !started {
				if err := session.Begin(f.Time); err != nil {
					log.Fatalln(err)
				}
				started = true
			}
			// The fix stamp is the clock; replay runs faster than life.
			reason, _ := session.ProcessFix(f, f.Time)
			if reason != gate.Accepted {
				rejected[reason]++
			}
			total++
		}
		if !started {
			log.Fatalln("no fixes to replay")
		}

		route := session.Route()
		if len(route) == 0 {
			log.Fatalln("no fixes accepted")
		}
		w, err := session.Finalize(route[len(route)-1].Time)
		if err != nil {
			log.Fatalln(err)
		}
		for reason, n := range rejected {
			slog.Info("Rejected fixes", "reason", reason, "count", n)
		}
		slog.Info("Replayed session", "fixes", humanize.Comma(int64(total)))

		if optSimJSON {
			json.NewEncoder(os.Stdout).Encode(w)
			return
		}
		printWorkout(w)
	},
}

func printWorkout(w *workout.Workout) {
	fmt.Printf("%s %s  %s\n", w.Activity.Emoji(), w.Activity, w.Start.Format("2006-01-02 15:04"))
	fmt.Printf("  distance  %skm (%s)\n",
		humanize.CommafWithDigits(w.Distance/1000, 2), w.DistanceSource)
	fmt.Printf("  duration  %s\n", w.Duration.Round(time.Second))
	fmt.Printf("  pace      %s /km\n", workout.FormatPace(w.AveragePace))
	for _, s := range w.Splits {
		mark := " "
		if !s.Complete {
			mark = "~"
		}
		fmt.Printf("  split %2d%s %s  %s /km\n",
			s.Sequence, mark, s.Duration.Round(time.Second), workout.FormatPace(s.Pace))
	}
	if w.Steps > 0 {
		est := ""
		if w.StepsEstimated {
			est = " (estimated)"
		}
		fmt.Printf("  steps     %s%s\n", humanize.Comma(int64(w.Steps)), est)
	}
	fmt.Printf("  route     %s points, %s cells\n",
		humanize.Comma(int64(len(w.Route))), humanize.Comma(int64(w.CellCount)))
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	pFlags := simulateCmd.PersistentFlags()
	pFlags.StringVar(&optSimActivity, "activity", "running", "activity type (running|walking|cycling)")
	pFlags.BoolVar(&optSimImperial, "imperial", false, "mile splits instead of kilometer splits")
	pFlags.StringVar(&optSimUser, "user", "", "user identity stamped onto the record")
	pFlags.BoolVar(&optSimJSON, "json", false, "print the full record as JSON")
	pFlags.IntVar(&optSimSynthetic, "synthetic", 0, "generate a synthetic run of this many seconds instead of reading stdin")
}
