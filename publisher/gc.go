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
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/pelicanplatform/cvmfs-publish/config"
	"github.com/pelicanplatform/cvmfs-publish/cvmfs"
)

// gcThrottle decides whether garbage collection runs this cycle, based on a
// persisted last-run stamp at <cache_dir>/<repo>.last_gc.  The stamp file's
// whole contents are the decimal Unix time of the last GC attempt.
type gcThrottle struct {
	server   *cvmfs.Server
	cacheDir string
	repo     string
	interval time.Duration
	persist  bool
	now      func() time.Time
	logger   *log.Entry
}

func newGCThrottle(cfg *config.PublicationConfig, server *cvmfs.Server, persist bool) *gcThrottle {
	return &gcThrottle{
		server:   server,
		cacheDir: cfg.CacheDir,
		repo:     cfg.Repository,
		interval: cfg.GCInterval(),
		persist:  persist,
		now:      time.Now,
		logger:   log.WithFields(log.Fields{"component": "gc", "repo": cfg.Repository}),
	}
}

func (g *gcThrottle) stampPath() string {
	return filepath.Join(g.cacheDir, g.repo+".last_gc")
}

// shouldRun reads the stamp file, creating it if absent, and persists the
// decision time before any collection starts: a crash mid-GC must not lose
// the stamp and cause a retry storm on every following cycle.
func (g *gcThrottle) shouldRun() (bool, error) {
	if !g.persist {
		// Dry runs leave no state behind; decide from the stamp as-is.
		contents, err := os.ReadFile(g.stampPath())
		if err != nil {
			contents = nil
		}
		lastRun, err := strconv.ParseInt(strings.TrimSpace(string(contents)), 10, 64)
		if err != nil {
			lastRun = 0
		}
		return g.now().Sub(time.Unix(lastRun, 0)) >= g.interval, nil
	}

	if err := os.MkdirAll(g.cacheDir, 0755); err != nil {
		return false, errors.Wrapf(err, "unable to create cache directory %s", g.cacheDir)
	}
	fp, err := os.OpenFile(g.stampPath(), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return false, errors.Wrapf(err, "unable to open GC stamp file %s", g.stampPath())
	}
	defer fp.Close()

	contents, err := io.ReadAll(fp)
	if err != nil {
		return false, errors.Wrapf(err, "unable to read GC stamp file %s", g.stampPath())
	}
	lastRun, err := strconv.ParseInt(strings.TrimSpace(string(contents)), 10, 64)
	if err != nil {
		// Empty or corrupt stamp forces a collection.
		lastRun = 0
	}

	now := g.now()
	if elapsed := now.Sub(time.Unix(lastRun, 0)); elapsed < g.interval {
		g.logger.Infof("Last GC was %v ago, under the %v interval; skipping", elapsed.Round(time.Second), g.interval)
		return false, nil
	}
	// Overwrite in place; the decimal stamp width is stable, and a corrupt
	// tail just forces the next collection.
	if _, err := fp.WriteAt([]byte(strconv.FormatInt(now.Unix(), 10)), 0); err != nil {
		return false, errors.Wrapf(err, "unable to update GC stamp file %s", g.stampPath())
	}
	return true, nil
}

// Run performs one throttled GC cycle.  GC must never block publication, so
// every failure here is logged at warning level and swallowed.
func (g *gcThrottle) Run(ctx context.Context) {
	proceed, err := g.shouldRun()
	if err != nil {
		g.logger.Warningln("Skipping garbage collection:", err)
		return
	}
	if !proceed {
		return
	}
	if err := g.server.GC(ctx); err != nil {
		g.logger.Warningln("Garbage collection failed:", err)
	}
}
