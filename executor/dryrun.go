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

package executor

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type dryRunExecutor struct{}

// NewDryRun returns an Executor that logs each command it would have run and
// pretends every invocation succeeded with empty output.
func NewDryRun() Executor {
	return dryRunExecutor{}
}

func (dryRunExecutor) Run(_ context.Context, logger *log.Entry, cmd Command) error {
	logger.Infoln("Dry run; would execute:", cmd.String())
	return nil
}

func (dryRunExecutor) Output(_ context.Context, cmd Command) (string, error) {
	log.Infoln("Dry run; would execute:", cmd.String())
	return "", nil
}
