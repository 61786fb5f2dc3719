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

// Package credential manages the time-limited proxy credential that
// authorizes synchronization.  Credential state is never persisted by
// cvmfs-publish; it is queried live from the proxy tools on every run.
package credential

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/pelicanplatform/cvmfs-publish/config"
	"github.com/pelicanplatform/cvmfs-publish/executor"
)

const (
	InfoBin = "voms-proxy-info"
	InitBin = "voms-proxy-init"

	// DefaultMinLifetime is the remaining lifetime below which the
	// credential is renewed rather than reused.
	DefaultMinLifetime = 6 * time.Hour

	// renewValidity is the validity window requested on renewal (7 days).
	renewValidity = "168:00"
)

// Policy decides whether the current credential needs renewal and performs
// the renewal when it does.
type Policy struct {
	// ProxyPath is an explicit credential location; empty means the proxy
	// tools use their default lookup.
	ProxyPath string

	// VomsAttribute, when set, must be present on the credential with the
	// same minimum remaining lifetime as the credential itself.
	VomsAttribute string

	// MinLifetime below which renewal is triggered.
	MinLifetime time.Duration

	exec   executor.Executor
	logger *log.Entry
}

func NewPolicy(authz config.Authorization, exec executor.Executor) *Policy {
	return &Policy{
		ProxyPath:     authz.Credential,
		VomsAttribute: authz.VomsAttribute,
		MinLifetime:   DefaultMinLifetime,
		exec:          exec,
		logger:        log.WithFields(log.Fields{"tool": "voms-proxy"}),
	}
}

// Env returns the environment entries child processes need to pick up the
// managed credential.
func (p *Policy) Env() []string {
	if p.ProxyPath == "" {
		return nil
	}
	return []string{"X509_USER_PROXY=" + p.ProxyPath}
}

// remaining queries voms-proxy-info for a lifetime flag (--timeleft or
// --actimeleft) and parses the answer as seconds.
func (p *Policy) remaining(ctx context.Context, flag string) (time.Duration, error) {
	var args []string
	if p.ProxyPath != "" {
		args = append(args, "--file", p.ProxyPath)
	}
	args = append(args, flag)
	output, err := p.exec.Output(ctx, executor.Command{Program: InfoBin, Args: args})
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseInt(output, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected %s %s output %q", InfoBin, flag, output)
	}
	return time.Duration(seconds) * time.Second, nil
}

// valid reports whether the current credential satisfies the policy.  Any
// failure while checking counts as invalid: the policy fails open toward
// renewal, never toward skipping authentication.
func (p *Policy) valid(ctx context.Context) bool {
	left, err := p.remaining(ctx, "--timeleft")
	if err != nil {
		p.logger.Warningln("Unable to check credential validity; will renew:", err)
		return false
	}
	if left < p.MinLifetime {
		p.logger.Infof("Credential has %v remaining, below the %v threshold", left, p.MinLifetime)
		return false
	}
	if p.VomsAttribute != "" {
		acLeft, err := p.remaining(ctx, "--actimeleft")
		if err != nil {
			p.logger.Warningln("Unable to check attribute certificate validity; will renew:", err)
			return false
		}
		if acLeft < p.MinLifetime {
			p.logger.Infof("Attribute certificate has %v remaining, below the %v threshold", acLeft, p.MinLifetime)
			return false
		}
	}
	return true
}

// Ensure renews the credential unless a valid one with sufficient remaining
// lifetime already exists.  A renewal failure is fatal to the caller's run.
func (p *Policy) Ensure(ctx context.Context) error {
	if p.valid(ctx) {
		p.logger.Infoln("Existing credential is valid; skipping renewal")
		return nil
	}
	args := []string{"--valid", renewValidity}
	if p.VomsAttribute != "" {
		args = append(args, "--voms", p.VomsAttribute)
	}
	if p.ProxyPath != "" {
		args = append(args, "--out", p.ProxyPath)
	}
	p.logger.Infoln("Renewing credential with validity", renewValidity)
	if err := p.exec.Run(ctx, p.logger, executor.Command{Program: InitBin, Args: args}); err != nil {
		return errors.Wrap(err, "failed to renew credential")
	}
	return nil
}
