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

// Package syncjob turns a validated job specification into one invocation of
// the external synchronization tool.  The tool owns all file diffing and its
// own worker pool; this layer only assembles arguments and reports the exit
// status.
package syncjob

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/pelicanplatform/cvmfs-publish/config"
	"github.com/pelicanplatform/cvmfs-publish/executor"
)

// SyncBin is the external synchronization tool.
const SyncBin = "cvmfs-sync"

// Runner executes sync jobs one child process at a time, with no retries.
type Runner struct {
	exec executor.Executor
	env  []string
}

// NewRunner returns a Runner.  env entries ("KEY=value") are exported to
// every job, e.g. the proxy location for authenticated sources.
func NewRunner(exec executor.Executor, env []string) *Runner {
	return &Runner{exec: exec, env: env}
}

// Args assembles the cvmfs-sync argument list for one job.  Zero-valued
// options are omitted so the tool defaults apply; a bulk-transfer source is
// appended to the primary source as a comma-joined pair.
func Args(job config.SyncJobSpec) []string {
	var args []string
	if job.Concurrency > 0 {
		args = append(args, "--concurrency", strconv.Itoa(job.Concurrency))
	}
	if job.MetadataConcurrency > 0 {
		args = append(args, "--metadata-concurrency", strconv.Itoa(job.MetadataConcurrency))
	}
	if job.MaxTime > 0 {
		args = append(args, "--max-time", strconv.Itoa(job.MaxTime))
	}
	if len(job.Ignore) > 0 {
		args = append(args, "--ignore", strings.Join(job.Ignore, ","))
	}
	if len(job.Include) > 0 {
		args = append(args, "--include", strings.Join(job.Include, ","))
	}
	source := job.Source
	if job.BulkSource != "" {
		source += "," + job.BulkSource
	}
	return append(args, source, job.Destination)
}

// Run synchronizes one job and blocks until the tool exits.  A non-zero exit
// status is a job failure and is returned as an error for the caller to act
// on.
func (r *Runner) Run(ctx context.Context, job config.SyncJobSpec) error {
	logger := log.WithFields(log.Fields{"job": job.Name})
	logger.Infof("Synchronizing %s into %s", job.Source, job.Destination)
	cmd := executor.Command{Program: SyncBin, Args: Args(job), Env: r.env}
	if err := r.exec.Run(ctx, logger, cmd); err != nil {
		return errors.Wrapf(err, "sync job %s failed", job.Name)
	}
	logger.Infoln("Synchronization complete")
	return nil
}
