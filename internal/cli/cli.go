// Copyright 2019 IBM Corp.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli holds the flags, configuration loading and error reporting
// shared by the iam-token commands.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/IBM/iam-token-go/config"
	"github.com/IBM/iam-token-go/iam"
)

const (
	FlagConfig    = "config"
	FlagEnvPrefix = "env-prefix"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
)

// RegisterConfigFlags adds the configuration flags to flags.
func RegisterConfigFlags(flags *pflag.FlagSet) {
	flags.StringP(FlagConfig, "c", "", "Path to a YAML configuration file")
	flags.String(FlagEnvPrefix, config.DefaultEnvPrefix, "Prefix of the environment variables to read")
	flags.String(FlagLogLevel, "warn", "Log level: trace, debug, info, warn, error")
	flags.String(FlagLogFormat, "text", "Log format: text or json")
}

// LoadConfiguration loads the configuration, applying log flags only when
// they were set explicitly.
func LoadConfiguration(flags *pflag.FlagSet) (*config.Configuration, error) {
	configFile, _ := flags.GetString(FlagConfig)
	envPrefix, _ := flags.GetString(FlagEnvPrefix)

	opts := []config.Option{
		config.WithConfigFile(configFile),
		config.WithEnvPrefix(envPrefix),
	}

	overrides := map[string]string{
		FlagLogLevel:  "log_level",
		FlagLogFormat: "log_format",
	}
	for flag, key := range overrides {
		if flags.Changed(flag) {
			val, _ := flags.GetString(flag)
			opts = append(opts, config.WithOverride(key, val))
		}
	}

	return config.NewConfiguration(opts...)
}

// FormatError renders err as the single result line. IAM rejections keep the
// status code and response text.
func FormatError(err error) string {
	var statusErr *iam.UnexpectedStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("Error: %d %s", statusErr.StatusCode, statusErr.Message())
	}
	return "Error: " + err.Error()
}

// ReportedError marks an error whose result line was already written.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string {
	return e.Err.Error()
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}

func Reported(err error) error {
	return &ReportedError{Err: err}
}

// Execute runs cmd. Errors raised before the command body ran, such as
// unknown flags or unexpected arguments, are written to stderr.
func Execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if err == nil {
		return nil
	}

	var reported *ReportedError
	if !errors.As(err, &reported) {
		fmt.Fprintln(cmd.ErrOrStderr(), FormatError(err))
		fmt.Fprintf(cmd.ErrOrStderr(), "Run '%s --help' for usage.\n", cmd.CommandPath())
	}

	return err
}

func ExitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
