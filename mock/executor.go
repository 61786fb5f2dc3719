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

//
// Create mockups of the external tools cvmfs-publish drives
//
// Allows unit tests to exercise the publication workflow without
// spawning cvmfs_server, cvmfs-sync, or the proxy utilities.
//

package mock

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/pelicanplatform/cvmfs-publish/executor"
)

type (
	// Invocation is one recorded external command.
	Invocation struct {
		Program string
		Args    []string
		Env     []string
	}

	// Result scripts the outcome of a single invocation of a program.
	Result struct {
		Stdout string
		Err    error
	}

	// Executor implements executor.Executor against scripted results.  Each
	// program name has a FIFO queue of results; when the queue is empty an
	// invocation succeeds with empty output.  Every invocation is recorded.
	Executor struct {
		mu          sync.Mutex
		scripts     map[string][]Result
		invocations []Invocation
	}
)

func NewExecutor() *Executor {
	return &Executor{scripts: make(map[string][]Result)}
}

// Script appends results to the program's queue, consumed one per invocation.
func (e *Executor) Script(program string, results ...Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[program] = append(e.scripts[program], results...)
}

func (e *Executor) consume(cmd executor.Command) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invocations = append(e.invocations, Invocation{Program: cmd.Program, Args: cmd.Args, Env: cmd.Env})
	queue := e.scripts[cmd.Program]
	if len(queue) == 0 {
		return Result{}
	}
	e.scripts[cmd.Program] = queue[1:]
	return queue[0]
}

func (e *Executor) Run(_ context.Context, _ *log.Entry, cmd executor.Command) error {
	return e.consume(cmd).Err
}

func (e *Executor) Output(_ context.Context, cmd executor.Command) (string, error) {
	result := e.consume(cmd)
	return result.Stdout, result.Err
}

// Invocations returns every recorded command, in order.
func (e *Executor) Invocations() []Invocation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Invocation(nil), e.invocations...)
}

// Calls returns the argument lists recorded for one program, in order.
func (e *Executor) Calls(program string) [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var calls [][]string
	for _, inv := range e.invocations {
		if inv.Program == program {
			calls = append(calls, inv.Args)
		}
	}
	return calls
}
