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

// Package cvmfs drives the public operations of the repository server tool.
// The tool's transaction state is opaque to cvmfs-publish; the only
// observable outcome of each operation is its exit status.
package cvmfs

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/pelicanplatform/cvmfs-publish/executor"
)

// ServerBin is the repository server tool invoked for every transaction
// and GC operation.
const ServerBin = "cvmfs_server"

// gcRetention is the fixed retention window passed to gc: objects must be
// unreferenced at least this long before they are collected.
const gcRetention = "2 days ago"

// Server runs cvmfs_server operations against one repository.
type Server struct {
	repo   string
	exec   executor.Executor
	logger *log.Entry
}

func NewServer(repo string, exec executor.Executor) *Server {
	return &Server{
		repo:   repo,
		exec:   exec,
		logger: log.WithFields(log.Fields{"tool": ServerBin, "repo": repo}),
	}
}

func (s *Server) run(ctx context.Context, args ...string) error {
	return s.exec.Run(ctx, s.logger, executor.Command{Program: ServerBin, Args: args})
}

// Abort discards any open transaction.  Callers are expected to tolerate
// failure; aborting when no transaction exists is not an error condition
// from the orchestrator's point of view.
func (s *Server) Abort(ctx context.Context) error {
	s.logger.Infoln("Aborting any open transaction")
	return s.run(ctx, "abort", "-f", s.repo)
}

// Transaction opens a new transaction on the repository.
func (s *Server) Transaction(ctx context.Context) error {
	s.logger.Infoln("Opening transaction")
	if err := s.run(ctx, "transaction", s.repo); err != nil {
		return errors.Wrapf(err, "failed to open transaction on %s", s.repo)
	}
	return nil
}

// Publish commits the open transaction.  When authzFile is non-empty it is
// attached to the commit via the membership-requirement flag.
func (s *Server) Publish(ctx context.Context, authzFile string) error {
	args := []string{"publish"}
	if authzFile != "" {
		args = append(args, "-F", authzFile)
	}
	args = append(args, s.repo)
	s.logger.Infoln("Publishing transaction")
	if err := s.run(ctx, args...); err != nil {
		return errors.Wrapf(err, "failed to publish transaction on %s", s.repo)
	}
	return nil
}

// GC collects repository objects that have been unreferenced for longer than
// the retention window.
func (s *Server) GC(ctx context.Context) error {
	s.logger.Infoln("Running garbage collection with retention", gcRetention)
	if err := s.run(ctx, "gc", "-f", "-t", gcRetention, s.repo); err != nil {
		return errors.Wrapf(err, "garbage collection failed on %s", s.repo)
	}
	return nil
}
