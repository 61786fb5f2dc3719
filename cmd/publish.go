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
	"github.com/spf13/cobra"

	"github.com/pelicanplatform/cvmfs-publish/config"
	"github.com/pelicanplatform/cvmfs-publish/executor"
	"github.com/pelicanplatform/cvmfs-publish/publisher"
)

var (
	dryRun bool

	publishCmd = &cobra.Command{
		Use:   "publish",
		Short: "Run one publication cycle against the configured repository",
		RunE:  publishMain,
	}
)

func init() {
	publishCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log the external commands that would run without executing them")
	rootCmd.AddCommand(publishCmd)
}

func publishMain(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	exec := executor.New()
	if dryRun {
		exec = executor.NewDryRun()
	}
	return publisher.New(cfg, exec, dryRun).Run(cmd.Context())
}
