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
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"

	"github.com/IBM/iam-token-go/config"
	"github.com/IBM/iam-token-go/iam"
	"github.com/IBM/iam-token-go/internal/cli"
)

const (
	testPrefix = "IAMTOKENCMDTEST_"
	testKey    = "UNH-test-api-key-value"
)

// executeCommand runs the root command against a gock intercepted client and
// returns what it wrote to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	client := &http.Client{}
	gock.InterceptClient(client)
	t.Cleanup(func() { gock.RestoreClient(client) })

	cmd := newRootCommand(iam.NewFetcher(iam.WithHTTPClient(iam.NewHTTPClient(client))))

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--env-prefix", testPrefix}, args...))

	err := cli.Execute(cmd)

	return stdout.String(), stderr.String(), err
}

func TestRun_StatusOK_PrintsAccessToken(t *testing.T) {
	defer gock.Off()
	gock.New("https://iam.cloud.ibm.com").
		Post("/identity/token").
		Reply(200).
		JSON(map[string]string{"access_token": "abc123"})

	t.Setenv(testPrefix+"API_KEY", testKey)

	stdout, _, err := executeCommand(t)
	require.NoError(t, err)

	assert.Equal(t, "Access Token: abc123\n", stdout)
	assert.Equal(t, 0, cli.ExitCode(err))
	assert.True(t, gock.IsDone())
}

func TestRun_NonOKStatus_PrintsStatusAndBody(t *testing.T) {
	defer gock.Off()
	gock.New("https://iam.cloud.ibm.com").
		Post("/identity/token").
		Reply(400).
		BodyString("invalid_grant")

	t.Setenv(testPrefix+"API_KEY", testKey)

	stdout, _, err := executeCommand(t)

	assert.Equal(t, "Error: 400 invalid_grant\n", stdout)
	assert.Equal(t, 1, cli.ExitCode(err))
}

func TestRun_MalformedBody_PrintsError(t *testing.T) {
	defer gock.Off()
	gock.New("https://iam.cloud.ibm.com").
		Post("/identity/token").
		Reply(200).
		BodyString("not json")

	t.Setenv(testPrefix+"API_KEY", testKey)

	stdout, _, err := executeCommand(t)

	var malformed *iam.MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
	assert.Regexp(t, `^Error: iam: malformed token response transaction_id='[0-9a-f-]+': .+\n$`, stdout)
	assert.Equal(t, 1, cli.ExitCode(err))
}

func TestRun_ConnectionError_PrintsError(t *testing.T) {
	defer gock.Off()
	gock.New("https://iam.cloud.ibm.com").
		Post("/identity/token").
		ReplyError(errors.New("no such host"))

	t.Setenv(testPrefix+"API_KEY", testKey)

	stdout, _, err := executeCommand(t)

	var netErr *iam.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Contains(t, stdout, "Error: iam: error during request to IAM")
	assert.Contains(t, stdout, "no such host")
	assert.Equal(t, 1, cli.ExitCode(err))
}

func TestRun_NoAPIKey_PrintsConfigurationError(t *testing.T) {
	defer gock.Off()
	gock.New("https://iam.cloud.ibm.com").
		Post("/identity/token").
		Reply(200).
		JSON(map[string]string{"access_token": "abc123"})

	stdout, _, err := executeCommand(t)

	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Equal(t, "Error: configuration error: 'api_key' is a required field\n", stdout)
	assert.True(t, gock.IsPending())
}

func TestRun_ConfigFile_ProvidesAPIKey(t *testing.T) {
	defer gock.Off()
	gock.New("https://iam.cloud.ibm.com").
		Post("/identity/token").
		Reply(200).
		JSON(map[string]string{"access_token": "fromfile"})

	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("api_key: "+testKey+"\n"), 0o600))

	stdout, _, err := executeCommand(t, "--config", file)
	require.NoError(t, err)

	assert.Equal(t, "Access Token: fromfile\n", stdout)
}

func TestRun_TraceLogging_NeverPrintsAPIKey(t *testing.T) {
	defer gock.Off()
	gock.New("https://iam.cloud.ibm.com").
		Post("/identity/token").
		Reply(401).
		BodyString("Provided API key could not be found: " + testKey)

	t.Setenv(testPrefix+"API_KEY", testKey)

	stdout, stderr, err := executeCommand(t, "--log-level", "trace", "--log-format", "json")
	require.Error(t, err)

	assert.Contains(t, stderr, "Requesting IAM access token")
	assert.NotContains(t, stderr, testKey)
	assert.NotContains(t, stdout, testKey)
	assert.Equal(t, "Error: 401 Provided API key could not be found: ****\n", stdout)
}

func TestRun_PositionalArguments_ReportedOnStderr(t *testing.T) {
	t.Setenv(testPrefix+"API_KEY", testKey)

	stdout, stderr, err := executeCommand(t, "unexpected")

	require.Error(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "Error: unknown command \"unexpected\" for \"iam-token\"\n"+
		"Run 'iam-token --help' for usage.\n", stderr)
	assert.Equal(t, 1, cli.ExitCode(err))
}

func TestRun_UnknownFlag_ReportedOnStderr(t *testing.T) {
	t.Setenv(testPrefix+"API_KEY", testKey)

	stdout, stderr, err := executeCommand(t, "--bogus")

	require.Error(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error: unknown flag: --bogus")
	assert.Contains(t, stderr, "Run 'iam-token --help' for usage.")
	assert.Equal(t, 1, cli.ExitCode(err))
}

func TestRun_RunErrors_NotRepeatedOnStderr(t *testing.T) {
	stdout, stderr, err := executeCommand(t)

	require.Error(t, err)
	assert.Equal(t, "Error: configuration error: 'api_key' is a required field\n", stdout)
	assert.NotContains(t, stderr, "Error:")
}
