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
	"os"

	"github.com/spf13/cobra"

	"github.com/IBM/iam-token-go/iam"
	"github.com/IBM/iam-token-go/internal/cli"
	"github.com/IBM/iam-token-go/logging"
)

// usage: iam-token [--config FILE] [--log-level LEVEL] [--log-format text|json]
//
// Small CLI utility that exchanges an IBM Cloud API key for an IAM access
// token and prints it to stdout as a single line:
//
//    Access Token: <token>
//
// or, when IAM rejects the request,
//
//    Error: <status_code> <response_text>
//
// The API key is read from IBMCLOUD_API_KEY or the api_key entry of the
// config file. It is never accepted as a flag.
//
// This utility does not cache responses, and will retrieve a new token from IAM
// every call. To grab just the token:
//
//    `iam-token | awk '/^Access Token:/ { print $3 }'`

// nolint: gochecknoglobals
var Version = "master"

func main() {
	os.Exit(cli.ExitCode(cli.Execute(newRootCommand(iam.NewFetcher()))))
}

func newRootCommand(fetcher *iam.Fetcher) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "iam-token",
		Short:         "Exchange an IBM Cloud API key for an IAM access token",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, fetcher)
		},
	}

	cli.RegisterConfigFlags(cmd.Flags())

	return cmd
}

func run(cmd *cobra.Command, fetcher *iam.Fetcher) error {
	out := cmd.OutOrStdout()

	cfg, err := cli.LoadConfiguration(cmd.Flags())
	if err != nil {
		fmt.Fprintln(out, cli.FormatError(err))
		return cli.Reported(err)
	}

	logger := logging.NewLogger(cfg.Logging(), cmd.ErrOrStderr())
	logger.Debug().Stringer("config", cfg).Msg("Configuration loaded")

	token, err := fetcher.FetchAccessToken(logger.WithContext(cmd.Context()), iam.NewTokenRequest(cfg.APIKey))
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to retrieve access token")
		fmt.Fprintln(out, cli.FormatError(err))
		return cli.Reported(err)
	}

	fmt.Fprintf(out, "Access Token: %s\n", token.AccessToken)

	return nil
}
