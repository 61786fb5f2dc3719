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

// Package config loads the publication configuration into a single immutable
// PublicationConfig value.  The value is parsed once per run and handed
// explicitly to every component that needs it; nothing in cvmfs-publish reads
// viper state after startup.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// DefaultCacheDir holds per-repository state such as the last-GC stamp.
	DefaultCacheDir = "/var/cache/cvmfs-publish"

	// DefaultGCIntervalMinutes throttles garbage collection to once per day.
	DefaultGCIntervalMinutes = 1440
)

type (
	// Authorization configures how the commit step is authorized.  AuthzFile
	// and AuthzCommand are mutually exclusive sources of the authorization
	// material; when both are set the command wins and a warning is logged.
	Authorization struct {
		AuthzFile     string `mapstructure:"AuthzFile" yaml:"AuthzFile,omitempty"`
		AuthzCommand  string `mapstructure:"AuthzCommand" yaml:"AuthzCommand,omitempty"`
		Credential    string `mapstructure:"Credential" yaml:"Credential,omitempty"`
		VomsAttribute string `mapstructure:"VomsAttribute" yaml:"VomsAttribute,omitempty"`
	}

	// PublicationConfig is the full configuration of one publication run.
	PublicationConfig struct {
		Repository        string        `mapstructure:"Repository" yaml:"Repository"`
		CacheDir          string        `mapstructure:"CacheDir" yaml:"CacheDir"`
		GCIntervalMinutes int           `mapstructure:"GCIntervalMinutes" yaml:"GCIntervalMinutes"`
		Authorization     Authorization `mapstructure:"Authorization" yaml:"Authorization,omitempty"`
		Jobs              []SyncJobSpec `mapstructure:"-" yaml:"Jobs,omitempty"`
	}

	// Error indicates the configuration file failed validation.
	Error struct {
		msg string
	}
)

func (e *Error) Error() string {
	return e.msg
}

func configError(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// GCInterval returns the configured GC throttle interval.
func (config *PublicationConfig) GCInterval() time.Duration {
	return time.Duration(config.GCIntervalMinutes) * time.Minute
}

// Load reads the configuration file at path and returns the validated,
// immutable publication configuration.
func Load(path string) (*PublicationConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("cvmfs_publish")
	v.AutomaticEnv()
	v.SetDefault("CacheDir", DefaultCacheDir)
	v.SetDefault("GCIntervalMinutes", DefaultGCIntervalMinutes)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "unable to read configuration file %s", path)
	}

	config := PublicationConfig{}
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "unable to parse configuration file %s", path)
	}
	if config.Repository == "" {
		return nil, configError("configuration %s does not name a Repository", path)
	}
	if config.GCIntervalMinutes <= 0 {
		return nil, configError("GCIntervalMinutes must be a positive integer, not %d", config.GCIntervalMinutes)
	}
	if config.Authorization.AuthzFile != "" && config.Authorization.AuthzCommand != "" {
		// Historically the generator command silently won here; keep that
		// behavior but make it visible.
		log.Warningln("Both AuthzFile and AuthzCommand are configured; the generator command takes precedence")
	}

	var rawJobs []rawJob
	if err := v.UnmarshalKey("Jobs", &rawJobs); err != nil {
		return nil, errors.Wrapf(err, "unable to parse Jobs in configuration file %s", path)
	}
	for idx, raw := range rawJobs {
		job, err := resolveJob(idx, raw)
		if err != nil {
			return nil, err
		}
		config.Jobs = append(config.Jobs, job)
	}

	return &config, nil
}
