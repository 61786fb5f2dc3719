/***************************************************************
 *
 * Copyright (C) 2025, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pelicanplatform/cvmfs-publish/config"
)

var (
	cfgFile     string
	debug       bool
	logLocation string

	rootCmd = &cobra.Command{
		Use:   "cvmfs-publish",
		Short: "Coordinate transactional publication into a CVMFS repository",
		Long: `cvmfs-publish drives the publication workflow of a content-addressed
repository: it aborts any stale transaction, runs throttled garbage
collection, renews the proxy credential when needed, opens a transaction,
runs the configured synchronization jobs, and commits — or rolls back when
a job fails.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.InitLogging(debug, logLocation)
		},
	}
)

func Execute() error {
	egrp, egrpCtx := errgroup.WithContext(context.Background())
	ctx, cancel := context.WithCancel(egrpCtx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigs)
	egrp.Go(func() error {
		select {
		case sig := <-sigs:
			log.Warnf("Received signal %v; canceling the run", sig)
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	exeErr := rootCmd.ExecuteContext(ctx)
	cancel()
	if err := egrp.Wait(); err != nil {
		log.Errorln("Shutdown error:", err)
	}
	if exeErr != nil {
		log.Errorln("Fatal error:", exeErr)
	}
	return exeErr
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/cvmfs-publish/config.yaml", "Publication configuration file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logs")
	rootCmd.PersistentFlags().StringVarP(&logLocation, "log", "l", "", "Specified log output file")

	// Register the version flag here just so --help will show it; actual
	// checking happens in main.go.
	rootCmd.PersistentFlags().Bool("version", false, "Print the version and exit")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
