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

// Package authz resolves the authorization material attached to the commit
// operation.  The material comes from a static file, from an external
// generator command writing a temporary file scoped to the run, or not at
// all.
package authz

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/pelicanplatform/cvmfs-publish/config"
	"github.com/pelicanplatform/cvmfs-publish/executor"
)

// Material is the resolved authorization material for one run.  An empty
// Path means publication proceeds without authorization at this layer.
type Material struct {
	Path string
}

// Provisioner resolves authorization material from the configuration.
type Provisioner struct {
	cfg    config.Authorization
	exec   executor.Executor
	logger *log.Entry
}

func NewProvisioner(cfg config.Authorization, exec executor.Executor) *Provisioner {
	return &Provisioner{
		cfg:    cfg,
		exec:   exec,
		logger: log.WithFields(log.Fields{"component": "authz"}),
	}
}

// buildCommand splits the generator template on whitespace and substitutes
// the output path for every "{}" token; when the template carries no token
// the path is appended as the final argument.
func buildCommand(template, path string) []string {
	parts := strings.Fields(template)
	replaced := false
	for idx, part := range parts {
		if strings.Contains(part, "{}") {
			parts[idx] = strings.ReplaceAll(part, "{}", path)
			replaced = true
		}
	}
	if !replaced {
		parts = append(parts, path)
	}
	return parts
}

// Provision resolves the authorization material for one run.  The returned
// cleanup must be invoked when the run ends, on every exit path; it removes
// the generated temporary file, if any.  When both a static file and a
// generator command are configured the command wins.
func (p *Provisioner) Provision(ctx context.Context) (Material, func(), error) {
	noop := func() {}
	switch {
	case p.cfg.AuthzCommand != "":
		tmp, err := os.CreateTemp("", "cvmfs-publish-authz-*")
		if err != nil {
			return Material{}, noop, errors.Wrap(err, "unable to create temporary authorization file")
		}
		tmpPath := tmp.Name()
		if err := tmp.Close(); err != nil {
			return Material{}, noop, errors.Wrapf(err, "unable to close temporary authorization file %s", tmpPath)
		}
		cleanup := func() {
			if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
				p.logger.Warningln("Failed to remove temporary authorization file:", err)
			}
		}
		argv := buildCommand(p.cfg.AuthzCommand, tmpPath)
		p.logger.Infoln("Generating authorization material via:", strings.Join(argv, " "))
		cmd := executor.Command{Program: argv[0], Args: argv[1:]}
		if err := p.exec.Run(ctx, p.logger, cmd); err != nil {
			return Material{}, cleanup, errors.Wrap(err, "authorization generator command failed")
		}
		return Material{Path: tmpPath}, cleanup, nil
	case p.cfg.AuthzFile != "":
		p.logger.Infoln("Using static authorization file", p.cfg.AuthzFile)
		return Material{Path: p.cfg.AuthzFile}, noop, nil
	default:
		return Material{}, noop, nil
	}
}
