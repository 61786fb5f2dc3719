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

package config

import (
	"fmt"
	"strings"
	"unicode"
)

type (
	// rawJob is one Jobs entry as it appears in the configuration file.
	// Ignore and Include are comma-and-whitespace-delimited token lists.
	rawJob struct {
		Name                string `mapstructure:"Name"`
		Concurrency         int    `mapstructure:"Concurrency"`
		MetadataConcurrency int    `mapstructure:"MetadataConcurrency"`
		MaxTime             int    `mapstructure:"MaxTime"`
		Ignore              string `mapstructure:"Ignore"`
		Include             string `mapstructure:"Include"`
		Source              string `mapstructure:"Source"`
		BulkSource          string `mapstructure:"BulkSource"`
		Destination         string `mapstructure:"Destination"`
	}

	// SyncJobSpec is one validated synchronization job.  Source and
	// Destination are mandatory; a zero value for any other field means the
	// corresponding cvmfs-sync flag is omitted and the tool default applies.
	SyncJobSpec struct {
		Name                string   `yaml:"Name"`
		Concurrency         int      `yaml:"Concurrency,omitempty"`
		MetadataConcurrency int      `yaml:"MetadataConcurrency,omitempty"`
		MaxTime             int      `yaml:"MaxTime,omitempty"`
		Ignore              []string `yaml:"Ignore,omitempty"`
		Include             []string `yaml:"Include,omitempty"`
		Source              string   `yaml:"Source"`
		BulkSource          string   `yaml:"BulkSource,omitempty"`
		Destination         string   `yaml:"Destination"`
	}
)

// splitTokens breaks a comma-and-whitespace-delimited option value into its
// tokens, dropping empties.
func splitTokens(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// resolveJob validates one Jobs entry.  idx is the zero-based position in the
// configuration, used to synthesize a name when the entry has none.
func resolveJob(idx int, raw rawJob) (SyncJobSpec, error) {
	name := raw.Name
	if name == "" {
		name = fmt.Sprintf("job%d", idx+1)
	}
	if raw.Source == "" {
		return SyncJobSpec{}, configError("job %s does not specify a Source", name)
	}
	if raw.Destination == "" {
		return SyncJobSpec{}, configError("job %s does not specify a Destination", name)
	}
	for option, value := range map[string]int{
		"Concurrency":         raw.Concurrency,
		"MetadataConcurrency": raw.MetadataConcurrency,
		"MaxTime":             raw.MaxTime,
	} {
		if value < 0 {
			return SyncJobSpec{}, configError("job %s: %s must be a positive integer, not %d", name, option, value)
		}
	}

	return SyncJobSpec{
		Name:                name,
		Concurrency:         raw.Concurrency,
		MetadataConcurrency: raw.MetadataConcurrency,
		MaxTime:             raw.MaxTime,
		Ignore:              splitTokens(raw.Ignore),
		Include:             splitTokens(raw.Include),
		Source:              raw.Source,
		BulkSource:          raw.BulkSource,
		Destination:         raw.Destination,
	}, nil
}
