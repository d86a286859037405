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
	"errors"
	"log"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/runstr/trackd/common"
	"github.com/runstr/trackd/daemon/webd"
	"github.com/runstr/trackd/health"
	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/state"
)

var optHTTPAddr string
var optHTTPPort int
var optAuthToken string
var optUserID string
var optDataDir string

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the tracking daemon",
	Long:  `Serves session control, fix ingest, and workout queries over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		store, err := state.Open(optDataDir)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		server := webd.NewWebDaemon(&params.WebDaemonConfig{
			NetAddr:   optHTTPAddr,
			NetPort:   optHTTPPort,
			DataDir:   optDataDir,
			AuthToken: optAuthToken,
			UserID:    optUserID,
		}, store, health.NewSimulated(0))

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-common.Interrupted()
			slog.Info("Interrupted, shutting down")
			cancel()
		}()

		if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()
	pFlags := webdCmd.PersistentFlags()
	pFlags.StringVar(&optHTTPAddr, "address", defaults.NetAddr, "HTTP address to listen on")
	pFlags.IntVar(&optHTTPPort, "port", defaults.NetPort, "HTTP port to listen on")
	pFlags.StringVar(&optAuthToken, "token", "", "auth token for session control and ingest (empty allows all)")
	pFlags.StringVar(&optUserID, "user", "", "user identity stamped onto sessions")
	pFlags.StringVar(&optDataDir, "datadir", defaults.DataDir, "root directory for the store and route files")
}
