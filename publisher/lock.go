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

package publisher

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// runLock serializes publication runs per repository.  The GC stamp file and
// the credential store assume a single orchestrator process at a time; the
// lock turns that assumption into an enforced precondition instead of a
// scheduling convention.
type runLock struct {
	fl *flock.Flock
}

func acquireRunLock(cacheDir, repo string) (*runLock, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "unable to create cache directory %s", cacheDir)
	}
	fl := flock.New(filepath.Join(cacheDir, repo+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "unable to acquire publication lock %s", fl.Path())
	}
	if !locked {
		return nil, errors.Errorf("another publication run for %s holds the lock %s", repo, fl.Path())
	}
	return &runLock{fl: fl}, nil
}

func (l *runLock) release() {
	if err := l.fl.Unlock(); err != nil {
		log.Warningln("Failed to release publication lock:", err)
	}
}
