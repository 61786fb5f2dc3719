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
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pelicanplatform/cvmfs-publish/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved publication configuration",
	Long: `Load the configuration file, apply defaults and job validation, and
print the result as YAML.  Useful to confirm what a publication run would
actually do.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		rendered, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "unable to render configuration")
		}
		fmt.Print(string(rendered))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
