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

package syncjob

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelicanplatform/cvmfs-publish/config"
	"github.com/pelicanplatform/cvmfs-publish/mock"
)

func TestArgsMinimal(t *testing.T) {
	job := config.SyncJobSpec{Name: "a", Source: "/data/a", Destination: "/repo/a"}
	assert.Equal(t, []string{"/data/a", "/repo/a"}, Args(job))
}

func TestArgsFull(t *testing.T) {
	job := config.SyncJobSpec{
		Name:                "full",
		Concurrency:         8,
		MetadataConcurrency: 2,
		MaxTime:             3600,
		Ignore:              []string{".git", "*.tmp"},
		Include:             []string{"run*"},
		Source:              "/data/a",
		BulkSource:          "root://xfer.example.org//data/a",
		Destination:         "/repo/a",
	}
	assert.Equal(t, []string{
		"--concurrency", "8",
		"--metadata-concurrency", "2",
		"--max-time", "3600",
		"--ignore", ".git,*.tmp",
		"--include", "run*",
		"/data/a,root://xfer.example.org//data/a",
		"/repo/a",
	}, Args(job))
}

func TestRunInvokesSyncTool(t *testing.T) {
	exec := mock.NewExecutor()
	runner := NewRunner(exec, []string{"X509_USER_PROXY=/tmp/x509up"})
	job := config.SyncJobSpec{Name: "a", Source: "/data/a", Destination: "/repo/a"}

	require.NoError(t, runner.Run(context.Background(), job))

	invocations := exec.Invocations()
	require.Len(t, invocations, 1)
	assert.Equal(t, SyncBin, invocations[0].Program)
	assert.Equal(t, []string{"/data/a", "/repo/a"}, invocations[0].Args)
	assert.Equal(t, []string{"X509_USER_PROXY=/tmp/x509up"}, invocations[0].Env)
}

func TestRunReportsFailure(t *testing.T) {
	exec := mock.NewExecutor()
	exec.Script(SyncBin, mock.Result{Err: errors.New("exit status 1")})
	runner := NewRunner(exec, nil)
	job := config.SyncJobSpec{Name: "flaky", Source: "/data/a", Destination: "/repo/a"}

	err := runner.Run(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flaky")
}
