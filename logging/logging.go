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

package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/IBM/iam-token-go/config"
)

// NewLogger returns a logger writing to w. Callers pass stderr so that
// stdout only ever carries the command result.
func NewLogger(conf config.LoggingConfig, w io.Writer) zerolog.Logger {
	if conf.Format == config.LogTextFormat {
		return zerolog.New(zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = w
			cw.TimeFormat = time.RFC3339
			cw.NoColor = true
		})).Level(conf.Level).With().Timestamp().Logger()
	}

	return zerolog.New(w).Level(conf.Level).With().
		Str("component", "iam-token").
		Timestamp().
		Logger()
}
