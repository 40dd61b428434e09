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

package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/spf13/cobra"

	"github.com/IBM/iam-token-go/iam"
	"github.com/IBM/iam-token-go/internal/cli"
	"github.com/IBM/iam-token-go/logging"
)

// usage: iam-token-info [--config FILE] [--log-level LEVEL] [--log-format text|json]
//
// Small CLI utility for outputting an IAM Access Token and metadata to console.
// The output is intended be used with `grep` or `awk` to grab fields and values.
//
// For example, to see when the token expires:
//
//    `iam-token-info | awk '/Expiry/ { print $2 }'`
//
// Like iam-token, this utility does not cache responses and retrieves a new
// token from IAM on every call.

func main() {
	os.Exit(cli.ExitCode(cli.Execute(newRootCommand(iam.NewFetcher()))))
}

func newRootCommand(fetcher *iam.Fetcher) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "iam-token-info",
		Short:         "Print an IAM access token together with its metadata",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			cfg, err := cli.LoadConfiguration(cmd.Flags())
			if err != nil {
				fmt.Fprintln(out, cli.FormatError(err))
				return cli.Reported(err)
			}

			logger := logging.NewLogger(cfg.Logging(), cmd.ErrOrStderr())

			token, err := fetcher.FetchAccessToken(logger.WithContext(cmd.Context()), iam.NewTokenRequest(cfg.APIKey))
			if err != nil {
				fmt.Fprintln(out, cli.FormatError(err))
				return cli.Reported(err)
			}

			printToken(out, token)

			return nil
		},
	}

	cli.RegisterConfigFlags(cmd.Flags())

	return cmd
}

func printToken(w io.Writer, token *iam.Token) {
	v := reflect.ValueOf(*token)
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		switch ft := v.Field(i).Interface().(type) {
		case time.Time:
			fmt.Fprintf(w, "%-15s %s\n", t.Field(i).Name, ft.Format(time.RFC3339))
		default:
			fmt.Fprintf(w, "%-15s %s\n", t.Field(i).Name, ft)
		}
	}
}
