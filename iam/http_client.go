// Copyright 2020 IBM Corp.
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

package iam

import (
	"context"
	"net/http"

	rhttp "github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

type RetryableHTTPClient struct {
	RetryClient *rhttp.Client
}

// NewDefaultHTTPClient returns a client that keeps the net/http defaults for
// timeouts, transport and redirects.
func NewDefaultHTTPClient() HTTPClient {
	return NewHTTPClient(&http.Client{})
}

// NewHTTPClient wraps client so every token request is sent exactly once.
func NewHTTPClient(client *http.Client) HTTPClient {
	return &RetryableHTTPClient{GetRetryableClient(client)}
}

func (rc *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	retryableRequest, err := rhttp.FromRequest(req)
	if err != nil {
		return nil, err
	}
	return rc.RetryClient.Do(retryableRequest)
}

// GetRetryableClient returns a retryablehttp client with retries disabled.
// An API key exchange is sent once; a failed attempt is reported to the caller.
func GetRetryableClient(client *http.Client) *rhttp.Client {
	// build base client with the library defaults and override as needed
	rc := rhttp.NewClient()
	rc.Logger = nil
	rc.HTTPClient = client
	rc.RetryMax = 0
	rc.CheckRetry = iamCheckRetry
	rc.ErrorHandler = rhttp.PassthroughErrorHandler
	rc.RequestLogHook = logRequest
	rc.ResponseLogHook = logResponse
	return rc
}

// iamCheckRetry never asks for another attempt. Context errors take
// precedence over transport errors so cancellation is reported as such.
func iamCheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, err
}

func logRequest(_ rhttp.Logger, req *http.Request, attempt int) {
	zerolog.Ctx(req.Context()).Trace().
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Str("transaction_id", req.Header.Get(transactionIDHeader)).
		Int("attempt", attempt).
		Msg("Sending request")
}

func logResponse(_ rhttp.Logger, resp *http.Response) {
	if resp.Request == nil {
		return
	}
	zerolog.Ctx(resp.Request.Context()).Trace().
		Str("status", resp.Status).
		Int64("content_length", resp.ContentLength).
		Msg("Response received")
}
