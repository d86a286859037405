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
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runstr/trackd/metrics/influxdb"
	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/state"
	"github.com/runstr/trackd/types/workout"
)

var optWorkoutsDataDir string
var optWorkoutsJSON bool
var optWorkoutsExport bool

// workoutsCmd represents the workouts command
var workoutsCmd = &cobra.Command{
	Use:   "workouts",
	Short: "List stored workouts",
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		store, err := state.Open(optWorkoutsDataDir)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		workouts, err := store.ListWorkouts()
		if err != nil {
			log.Fatalln(err)
		}

		if optWorkoutsExport {
			if err := influxdb.ExportWorkouts(workouts); err != nil {
				log.Fatalln(err)
			}
			slog.Info("Exported workouts", "count", len(workouts))
		}
		if optWorkoutsJSON {
			json.NewEncoder(os.Stdout).Encode(workouts)
			return
		}
		for _, w := range workouts {
			fmt.Printf("%s  %s %-8s %8skm  %8s  %s /km  (%s)\n",
				w.Start.Format("2006-01-02 15:04"),
				w.Activity.Emoji(), w.Activity,
				humanize.CommafWithDigits(w.Distance/1000, 2),
				w.Duration.Round(time.Second),
				workout.FormatPace(w.AveragePace),
				humanize.Time(w.Start))
		}
	},
}

func init() {
	rootCmd.AddCommand(workoutsCmd)

	pFlags := workoutsCmd.PersistentFlags()
	pFlags.StringVar(&optWorkoutsDataDir, "datadir", params.DefaultDatadirRoot, "root directory for the store")
	pFlags.BoolVar(&optWorkoutsJSON, "json", false, "print records as JSON")
	pFlags.BoolVar(&optWorkoutsExport, "export", false, "export records to InfluxDB (TRACKD_INFLUXDB_* env)")
}
