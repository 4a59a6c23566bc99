//  Copyright 2024 the ovf-edit-tools Authors. All Rights Reserved.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package shell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
)

// To rebuild mocks, run `go generate ./...`
//go:generate go run github.com/golang/mock/mockgen -package mocks -source $GOFILE -mock_names=Executor=MockShellExecutor -destination ../../mocks/mock_shell_executor.go

// Executor is a shim over cmd.Output() that allows for testing.
type Executor interface {
	// Exec executes program with args, and returns stdout if the return code
	// is zero. If nonzero, stderr is included in error.
	Exec(ctx context.Context, program string, args ...string) (string, error)
	// ExecLines is similar to Exec, except it splits the output on newlines.
	// All empty lines are discarded.
	ExecLines(ctx context.Context, program string, args ...string) ([]string, error)
}

// NewShellExecutor creates a shell.Executor that is implemented by exec.CommandContext.
func NewShellExecutor() Executor {
	return &defaultShellExecutor{}
}

type defaultShellExecutor struct {
}

func (d *defaultShellExecutor) Exec(ctx context.Context, program string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	stdout, err := cmd.Output()
	return string(stdout), classify(program, err)
}

func (d *defaultShellExecutor) ExecLines(ctx context.Context, program string, args ...string) (allLines []string, err error) {
	cmd := exec.CommandContext(ctx, program, args...)
	stdout, err := cmd.Output()
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			allLines = append(allLines, line)
		}
	}
	return allLines, classify(program, err)
}

// classify maps process launch and exit failures onto the helper error kinds.
func classify(program string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return errs.Errf(errs.HelperNotFound, "helper program %q not found in PATH", program)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errs.Errf(errs.HelperFailed, "%v exited with %v, stderr: %s",
			program, exitErr.ExitCode(), bytes.TrimSpace(exitErr.Stderr))
	}
	return errs.Wrap(errs.HelperFailed, err)
}
