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

// Package publisher sequences one publication run against a repository:
// abort any stale transaction, run throttled garbage collection, provision
// authorization material, ensure the credential, open a transaction, run
// every sync job, and commit — rolling the transaction back when a job
// fails.
package publisher

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/pelicanplatform/cvmfs-publish/authz"
	"github.com/pelicanplatform/cvmfs-publish/config"
	"github.com/pelicanplatform/cvmfs-publish/credential"
	"github.com/pelicanplatform/cvmfs-publish/cvmfs"
	"github.com/pelicanplatform/cvmfs-publish/executor"
	"github.com/pelicanplatform/cvmfs-publish/syncjob"
)

// Publisher coordinates one publication run.  All external tools are driven
// sequentially; job-internal concurrency is delegated to the sync tool.
type Publisher struct {
	cfg    *config.PublicationConfig
	server *cvmfs.Server
	runner *syncjob.Runner
	creds  *credential.Policy
	authz  *authz.Provisioner
	gc     *gcThrottle
	logger *log.Entry
}

// New wires a Publisher from the configuration.  dryRun suppresses the GC
// stamp update so a dry run leaves no state behind; the executor passed in
// decides whether commands actually spawn.
func New(cfg *config.PublicationConfig, exec executor.Executor, dryRun bool) *Publisher {
	server := cvmfs.NewServer(cfg.Repository, exec)
	creds := credential.NewPolicy(cfg.Authorization, exec)
	return &Publisher{
		cfg:    cfg,
		server: server,
		runner: syncjob.NewRunner(exec, creds.Env()),
		creds:  creds,
		authz:  authz.NewProvisioner(cfg.Authorization, exec),
		gc:     newGCThrottle(cfg, server, !dryRun),
		logger: log.WithFields(log.Fields{"repo": cfg.Repository}),
	}
}

// Run executes one publication cycle.  Any returned error means the run
// failed and the process should exit non-zero; whether a transaction was
// rolled back first depends on where the failure happened (see runJobs).
func (p *Publisher) Run(ctx context.Context) error {
	lock, err := acquireRunLock(p.cfg.CacheDir, p.cfg.Repository)
	if err != nil {
		return err
	}
	defer lock.release()

	// A transaction left over from an interrupted run would block this one.
	// Failure here normally just means no stale transaction existed.
	if err := p.server.Abort(ctx); err != nil {
		p.logger.Warningln("Ignoring abort failure:", err)
	}

	p.gc.Run(ctx)

	material, cleanup, err := p.authz.Provision(ctx)
	defer cleanup()
	if err != nil {
		return err
	}

	if err := p.creds.Ensure(ctx); err != nil {
		return err
	}

	if err := p.server.Transaction(ctx); err != nil {
		return err
	}

	if jobErr := p.runJobs(ctx); jobErr != nil {
		if err := p.server.Abort(ctx); err != nil {
			p.logger.Warningln("Failed to abort transaction after job failure:", err)
		}
		return jobErr
	}

	if err := p.server.Publish(ctx, material.Path); err != nil {
		return err
	}
	p.logger.Infoln("Publication complete")
	return nil
}

// runJobs runs every configured job in declaration order and returns the
// first failure.  The caller decides what the failure means for the open
// transaction.
func (p *Publisher) runJobs(ctx context.Context) error {
	for _, job := range p.cfg.Jobs {
		if err := p.runner.Run(ctx, job); err != nil {
			return err
		}
	}
	return nil
}
