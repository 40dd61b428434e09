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

package iam

import (
	"fmt"
	"strings"
)

// NetworkError wraps a transport level failure: DNS, refused connections,
// TLS problems, timeouts and context cancellation.
type NetworkError struct {
	Err           error
	TransactionID string // value of the Transaction-Id header sent with the request
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("iam: error during request to IAM transaction_id='%s': %s", e.TransactionID, e.Err.Error())
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UnexpectedStatusError is returned for any IAM response other than 200 OK.
type UnexpectedStatusError struct {
	StatusCode    int    // HTTP status code returned by IAM
	Body          []byte // raw response body, API key redacted
	TransactionID string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("iam: unexpected status %d transaction_id='%s': %s",
		e.StatusCode, e.TransactionID, e.Message())
}

// Message returns the response body as text with surrounding whitespace removed.
func (e *UnexpectedStatusError) Message() string {
	return strings.Trim(string(e.Body), " \r\n")
}

// MalformedResponseError is returned when IAM answered 200 but the body is
// not JSON or carries no access_token.
type MalformedResponseError struct {
	Err           error
	Body          []byte
	TransactionID string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("iam: malformed token response transaction_id='%s': %s", e.TransactionID, e.Err.Error())
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
