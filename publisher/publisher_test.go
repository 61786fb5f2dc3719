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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelicanplatform/cvmfs-publish/config"
	"github.com/pelicanplatform/cvmfs-publish/credential"
	"github.com/pelicanplatform/cvmfs-publish/cvmfs"
	"github.com/pelicanplatform/cvmfs-publish/mock"
	"github.com/pelicanplatform/cvmfs-publish/syncjob"
)

const testRepo = "data.example.org"

func testConfig(t *testing.T, jobs ...config.SyncJobSpec) *config.PublicationConfig {
	t.Helper()
	return &config.PublicationConfig{
		Repository:        testRepo,
		CacheDir:          t.TempDir(),
		GCIntervalMinutes: config.DefaultGCIntervalMinutes,
		Jobs:              jobs,
	}
}

// seedFreshGCStamp keeps GC out of orchestration tests that are not about it.
func seedFreshGCStamp(t *testing.T, cfg *config.PublicationConfig) {
	t.Helper()
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	path := filepath.Join(cfg.CacheDir, cfg.Repository+".last_gc")
	require.NoError(t, os.WriteFile(path, []byte(stamp), 0644))
}

func validCredential(exec *mock.Executor) {
	// 10 hours remaining, above the 6 hour renewal threshold
	exec.Script(credential.InfoBin, mock.Result{Stdout: "36000"})
}

func TestRunHappyPath(t *testing.T) {
	cfg := testConfig(t, config.SyncJobSpec{Name: "a", Source: "/data/a", Destination: "/repo/a"})
	seedFreshGCStamp(t, cfg)
	exec := mock.NewExecutor()
	validCredential(exec)

	require.NoError(t, New(cfg, exec, false).Run(context.Background()))

	assert.Equal(t, [][]string{
		{"abort", "-f", testRepo},
		{"transaction", testRepo},
		{"publish", testRepo},
	}, exec.Calls(cvmfs.ServerBin))
	assert.Equal(t, [][]string{{"/data/a", "/repo/a"}}, exec.Calls(syncjob.SyncBin))
	assert.Empty(t, exec.Calls(credential.InitBin), "a valid credential must not be renewed")
}

func TestRunJobFailureAbortsOnce(t *testing.T) {
	cfg := testConfig(t,
		config.SyncJobSpec{Name: "a", Source: "/data/a", Destination: "/repo/a"},
		config.SyncJobSpec{Name: "b", Source: "/data/b", Destination: "/repo/b"},
	)
	seedFreshGCStamp(t, cfg)
	exec := mock.NewExecutor()
	validCredential(exec)
	exec.Script(syncjob.SyncBin, mock.Result{Err: errors.New("exit status 1")})

	err := New(cfg, exec, false).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync job a failed")

	// One stale-transaction abort up front, one rollback after the failure,
	// and never a publish.
	assert.Equal(t, [][]string{
		{"abort", "-f", testRepo},
		{"transaction", testRepo},
		{"abort", "-f", testRepo},
	}, exec.Calls(cvmfs.ServerBin))
	assert.Len(t, exec.Calls(syncjob.SyncBin), 1, "the second job must not run after the first fails")
}

func TestRunTransactionFailureStopsBeforeJobs(t *testing.T) {
	cfg := testConfig(t, config.SyncJobSpec{Name: "a", Source: "/data/a", Destination: "/repo/a"})
	seedFreshGCStamp(t, cfg)
	exec := mock.NewExecutor()
	validCredential(exec)
	exec.Script(cvmfs.ServerBin,
		mock.Result{}, // stale abort
		mock.Result{Err: errors.New("transaction already open")},
	)

	err := New(cfg, exec, false).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, exec.Calls(syncjob.SyncBin))
	assert.Len(t, exec.Calls(cvmfs.ServerBin), 2, "no publish or rollback after a failed start")
}

func TestRunIgnoresStaleAbortFailure(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	cfg := testConfig(t)
	seedFreshGCStamp(t, cfg)
	exec := mock.NewExecutor()
	validCredential(exec)
	exec.Script(cvmfs.ServerBin, mock.Result{Err: errors.New("no transaction open")})

	require.NoError(t, New(cfg, exec, false).Run(context.Background()))
	assert.Equal(t, [][]string{
		{"abort", "-f", testRepo},
		{"transaction", testRepo},
		{"publish", testRepo},
	}, exec.Calls(cvmfs.ServerBin))

	// The swallowed failure surfaces as a warning
	var swallowed *log.Entry
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "Ignoring abort failure") {
			swallowed = entry
			break
		}
	}
	require.NotNil(t, swallowed)
	assert.Equal(t, log.WarnLevel, swallowed.Level)
}

func TestRunRenewalFailureStopsBeforeTransaction(t *testing.T) {
	cfg := testConfig(t, config.SyncJobSpec{Name: "a", Source: "/data/a", Destination: "/repo/a"})
	seedFreshGCStamp(t, cfg)
	exec := mock.NewExecutor()
	exec.Script(credential.InfoBin, mock.Result{Err: errors.New("no proxy found")})
	exec.Script(credential.InitBin, mock.Result{Err: errors.New("exit status 1")})

	err := New(cfg, exec, false).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, [][]string{{"abort", "-f", testRepo}}, exec.Calls(cvmfs.ServerBin),
		"no transaction may be opened when renewal fails")
	assert.Empty(t, exec.Calls(syncjob.SyncBin))
}

func TestRunGeneratedAuthz(t *testing.T) {
	cfg := testConfig(t)
	cfg.Authorization.AuthzCommand = "generate-authz {}"
	seedFreshGCStamp(t, cfg)
	exec := mock.NewExecutor()
	validCredential(exec)

	require.NoError(t, New(cfg, exec, false).Run(context.Background()))

	generatorCalls := exec.Calls("generate-authz")
	require.Len(t, generatorCalls, 1)
	authzPath := generatorCalls[0][0]

	serverCalls := exec.Calls(cvmfs.ServerBin)
	require.Len(t, serverCalls, 3)
	assert.Equal(t, []string{"publish", "-F", authzPath, testRepo}, serverCalls[2])

	_, statErr := os.Stat(authzPath)
	assert.True(t, os.IsNotExist(statErr), "generated authz file must be gone after the run")
}

func TestRunGeneratorFailureStopsRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Authorization.AuthzCommand = "generate-authz {}"
	seedFreshGCStamp(t, cfg)
	exec := mock.NewExecutor()
	exec.Script("generate-authz", mock.Result{Err: errors.New("exit status 2")})

	err := New(cfg, exec, false).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, [][]string{{"abort", "-f", testRepo}}, exec.Calls(cvmfs.ServerBin))
	assert.Empty(t, exec.Calls(credential.InitBin), "the run stops before credential handling")
}

func TestRunRefusesConcurrentRun(t *testing.T) {
	cfg := testConfig(t)
	lock, err := acquireRunLock(cfg.CacheDir, cfg.Repository)
	require.NoError(t, err)
	defer lock.release()

	exec := mock.NewExecutor()
	err = New(cfg, exec, false).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, exec.Invocations(), "nothing may run while another publication holds the lock")
}

// Two back-to-back runs with no transaction in between: both stale aborts are
// tolerated and both runs publish.
func TestRunTwiceIsIdempotentOnAbort(t *testing.T) {
	cfg := testConfig(t)
	seedFreshGCStamp(t, cfg)
	exec := mock.NewExecutor()
	validCredential(exec)
	exec.Script(cvmfs.ServerBin, mock.Result{Err: errors.New("no transaction open")})

	require.NoError(t, New(cfg, exec, false).Run(context.Background()))

	validCredential(exec)
	exec.Script(cvmfs.ServerBin, mock.Result{Err: errors.New("no transaction open")})
	require.NoError(t, New(cfg, exec, false).Run(context.Background()))

	assert.Len(t, exec.Calls(cvmfs.ServerBin), 6)
}
