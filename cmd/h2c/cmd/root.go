/**
 * Copyright 2020 Appvia Ltd <info@appvia.io>
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var silentErr = errors.New("silentErr")

var rootCmd = &cobra.Command{
	Use:           "h2c",
	Short:         "Convert rendered Kubernetes manifests into a Docker-Compose project.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// NewRootCmd returns the root command, for tests that want to invoke it
// directly instead of through Execute/os.Exit.
func NewRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		cmd.Println(err)
		cmd.Println(cmd.UsageString())
		return silentErr
	})
}

// Execute runs the root command, exiting the process with the
// appropriate code (spec §6 "Exit codes").
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if err != silentErr {
			fmt.Fprintln(os.Stderr, err)
		}
		if code, ok := err.(exitCoder); ok {
			os.Exit(code.ExitCode())
		}
		os.Exit(1)
	}
}

// exitCoder lets a RunE return a non-1 exit code (spec §6: "2 — empty
// output") without cobra itself knowing about process exit codes.
type exitCoder interface {
	error
	ExitCode() int
}

type exitCodeError struct {
	error
	code int
}

func (e exitCodeError) ExitCode() int { return e.code }

func newExitCodeError(code int, err error) error {
	return exitCodeError{error: err, code: code}
}
