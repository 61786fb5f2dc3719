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

// Package executor is the subprocess boundary for cvmfs-publish.  Every
// external tool (cvmfs_server, cvmfs-sync, the proxy utilities, authz
// generators) is driven through the Executor interface so unit tests can
// script tool behavior without spawning processes.
package executor

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type (
	// Command describes one external tool invocation.  Env entries are in
	// "KEY=value" form and are appended to the current environment.
	Command struct {
		Program string
		Args    []string
		Env     []string
	}

	// Executor runs external commands.  Run streams the child's stdout and
	// stderr into the supplied logger and blocks until the child exits; a
	// non-zero exit status comes back as an error wrapping the underlying
	// *exec.ExitError.  Output captures the child's stdout instead.
	Executor interface {
		Run(ctx context.Context, logger *log.Entry, cmd Command) error
		Output(ctx context.Context, cmd Command) (string, error)
	}

	osExecutor struct{}
)

// New returns an Executor backed by os/exec.
func New() Executor {
	return osExecutor{}
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Program}, c.Args...), " ")
}

// forwardToLogger copies the child's stdout and stderr line-by-line into the
// given logger until both streams close.
func forwardToLogger(logger *log.Entry, cmdStdout io.ReadCloser, cmdStderr io.ReadCloser) {
	stdoutScanner := bufio.NewScanner(cmdStdout)
	stdoutLines := make(chan string, 10)

	stderrScanner := bufio.NewScanner(cmdStderr)
	stderrLines := make(chan string, 10)
	go func() {
		defer close(stdoutLines)
		for stdoutScanner.Scan() {
			stdoutLines <- stdoutScanner.Text()
		}
	}()
	go func() {
		defer close(stderrLines)
		for stderrScanner.Scan() {
			stderrLines <- stderrScanner.Text()
		}
	}()
	for stdoutLines != nil || stderrLines != nil {
		select {
		case stdoutLine, ok := <-stdoutLines:
			if ok {
				logger.Info(stdoutLine)
			} else {
				stdoutLines = nil
			}
		case stderrLine, ok := <-stderrLines:
			if ok {
				logger.Warning(stderrLine)
			} else {
				stderrLines = nil
			}
		}
	}
}

func (osExecutor) Run(ctx context.Context, logger *log.Entry, cmd Command) error {
	execCmd := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	if execCmd.Err != nil {
		return errors.Wrapf(execCmd.Err, "unable to invoke %s", cmd.Program)
	}
	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}
	cmdStdout, err := execCmd.StdoutPipe()
	if err != nil {
		return errors.Wrapf(err, "failed to create stdout pipe for %s", cmd.Program)
	}
	cmdStderr, err := execCmd.StderrPipe()
	if err != nil {
		return errors.Wrapf(err, "failed to create stderr pipe for %s", cmd.Program)
	}

	logger.Debugln("Running command:", cmd.String())
	if err := execCmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to launch %s", cmd.Program)
	}
	forwardToLogger(logger, cmdStdout, cmdStderr)
	if err := execCmd.Wait(); err != nil {
		return errors.Wrapf(err, "%s failed", cmd.String())
	}
	return nil
}

func (osExecutor) Output(ctx context.Context, cmd Command) (string, error) {
	execCmd := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	if execCmd.Err != nil {
		return "", errors.Wrapf(execCmd.Err, "unable to invoke %s", cmd.Program)
	}
	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}
	output, err := execCmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "%s failed", cmd.String())
	}
	return strings.TrimSpace(string(output)), nil
}

// ExitStatus digs the child's exit code out of an error returned by Run or
// Output.  It returns -1 when the error does not carry one (launch failures,
// canceled contexts).
func ExitStatus(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
