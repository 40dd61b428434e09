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

// Package iam exchanges an IBM Cloud API key for an IAM access token.
//
// Every call performs exactly one request against the IAM token endpoint.
// Nothing is cached between calls; callers that need caching or refresh
// scheduling must build it on top of this package.
package iam

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// IAMTokenURL is the IBM Cloud IAM endpoint that issues access tokens.
	IAMTokenURL = "https://iam.cloud.ibm.com/identity/token"

	// GrantTypeAPIKey identifies the API key credential exchange.
	GrantTypeAPIKey = "urn:ibm:params:oauth:grant-type:apikey"

	transactionIDHeader = "Transaction-Id"
	redacted            = "****"
)

var (
	ErrEmptyAPIKey        = errors.New("iam: APIKey is empty")
	ErrMissingAccessToken = errors.New("iam: response does not contain an access_token")
	ErrEmptyTokenEndpoint = errors.New("iam: token endpoint is empty")

	defaultFetcher = NewFetcher()
)

// TokenRequest holds everything needed to ask IAM for a token. It is passed
// by value and never modified once built.
type TokenRequest struct {
	Endpoint  string
	GrantType string
	APIKey    string
}

// NewTokenRequest returns a request against IAMTokenURL using the API key
// grant type.
func NewTokenRequest(apiKey string) TokenRequest {
	return TokenRequest{
		Endpoint:  IAMTokenURL,
		GrantType: GrantTypeAPIKey,
		APIKey:    apiKey,
	}
}

// Form returns the form fields sent to IAM: grant_type and apikey, nothing else.
func (r TokenRequest) Form() url.Values {
	return url.Values{
		"grant_type": []string{r.GrantType},
		"apikey":     []string{r.APIKey},
	}
}

// Token is an IAM access token along with the metadata IAM returns with it.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	Expiry       time.Time
}

// Valid reports whether the token is usable right now.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || t.Expiry.After(time.Now())
}

type jsonToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Expiration   int64  `json:"expiration,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func (jt jsonToken) token(now time.Time) *Token {
	tok := &Token{
		AccessToken:  jt.AccessToken,
		RefreshToken: jt.RefreshToken,
		TokenType:    jt.TokenType,
		Scope:        jt.Scope,
	}

	switch {
	case jt.Expiration > 0:
		tok.Expiry = time.Unix(jt.Expiration, 0)
	case jt.ExpiresIn > 0:
		tok.Expiry = now.Add(time.Duration(jt.ExpiresIn) * time.Second)
	}

	return tok
}

// TokenResponse is the outcome of a single exchange with IAM. Token is only
// set when StatusCode is 200 and the body carried an access_token.
type TokenResponse struct {
	StatusCode    int
	Body          []byte
	TransactionID string
	Token         *Token
}

// Fetcher performs token requests. The zero value is not usable, use NewFetcher.
type Fetcher struct {
	client HTTPClient
}

type Option func(*Fetcher)

// WithHTTPClient overrides the client used to talk to IAM.
func WithHTTPClient(client HTTPClient) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{client: NewDefaultHTTPClient()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAccessToken exchanges apiKey for a token using the default fetcher.
func FetchAccessToken(ctx context.Context, apiKey string) (*Token, error) {
	return defaultFetcher.FetchAccessToken(ctx, NewTokenRequest(apiKey))
}

// FetchAccessToken sends req to IAM and returns the token on a 200 response.
//
// Errors are one of *NetworkError, *UnexpectedStatusError or
// *MalformedResponseError, apart from ErrEmptyAPIKey and ErrEmptyTokenEndpoint
// which are returned before any request is made.
func (f *Fetcher) FetchAccessToken(ctx context.Context, req TokenRequest) (*Token, error) {
	resp, err := f.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UnexpectedStatusError{
			StatusCode:    resp.StatusCode,
			Body:          resp.Body,
			TransactionID: resp.TransactionID,
		}
	}

	return resp.Token, nil
}

// Do performs the exchange and returns the raw outcome. A non-200 status is
// not an error at this level; the body is returned untouched except for
// redaction of the API key.
func (f *Fetcher) Do(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if req.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	if req.Endpoint == "" {
		return nil, ErrEmptyTokenEndpoint
	}

	logger := zerolog.Ctx(ctx)

	// IAM records Transaction-Id in its own logs.
	txID := uuid.New().String()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint,
		strings.NewReader(req.Form().Encode()))
	if err != nil {
		return nil, fmt.Errorf("iam: failed to create token request: %w", err)
	}

	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")
	request.Header.Set(transactionIDHeader, txID)

	logger.Debug().
		Str("transaction_id", txID).
		Str("endpoint", req.Endpoint).
		Msg("Requesting IAM access token")

	response, err := f.client.Do(request)
	if err != nil {
		if response != nil {
			response.Body.Close()
		}
		return nil, &NetworkError{Err: err, TransactionID: txID}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &NetworkError{Err: err, TransactionID: txID}
	}

	result := &TokenResponse{
		StatusCode:    response.StatusCode,
		Body:          redact(body, req.APIKey),
		TransactionID: txID,
	}

	logger.Debug().
		Str("transaction_id", txID).
		Int("status_code", response.StatusCode).
		Msg("Received IAM response")

	if response.StatusCode != http.StatusOK {
		return result, nil
	}

	var jt jsonToken
	if err := json.Unmarshal(body, &jt); err != nil {
		return result, &MalformedResponseError{Err: err, Body: result.Body, TransactionID: txID}
	}

	if jt.AccessToken == "" {
		return result, &MalformedResponseError{Err: ErrMissingAccessToken, Body: result.Body, TransactionID: txID}
	}

	result.Token = jt.token(time.Now())

	return result, nil
}

// redact masks occurrences of secret that stand on their own. An occurrence
// embedded in a longer run of key characters is part of some other word and
// is left alone, so a short key cannot mangle the rest of the body.
func redact(body []byte, secret string) []byte {
	if secret == "" {
		return body
	}

	var (
		out  bytes.Buffer
		rest = body
		key  = []byte(secret)
		prev byte
	)

	for {
		idx := bytes.Index(rest, key)
		if idx < 0 {
			out.Write(rest)
			return out.Bytes()
		}

		before := prev
		if idx > 0 {
			before = rest[idx-1]
		}

		end := idx + len(key)
		var after byte
		if end < len(rest) {
			after = rest[end]
		}

		out.Write(rest[:idx])
		if isKeyChar(before) || isKeyChar(after) {
			out.Write(key)
		} else {
			out.WriteString(redacted)
		}

		prev = rest[end-1]
		rest = rest[end:]
	}
}

// isKeyChar reports whether c can appear in an IBM Cloud API key.
func isKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}
