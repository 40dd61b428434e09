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

// Package config loads the iam-token configuration from defaults, an optional
// YAML file, IBMCLOUD_ prefixed environment variables and command line
// overrides, in that order of precedence.
package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

type LogFormat int

const (
	LogTextFormat LogFormat = iota
	LogJSONFormat
)

func (f LogFormat) String() string {
	if f == LogJSONFormat {
		return "json"
	}
	return "text"
}

type LoggingConfig struct {
	Level  zerolog.Level
	Format LogFormat
}

// Configuration is loaded once at startup and treated as read-only afterwards.
type Configuration struct {
	APIKey    string        `koanf:"api_key" validate:"required"`
	LogLevel  zerolog.Level `koanf:"log_level"`
	LogFormat LogFormat     `koanf:"log_format"`
}

func defaultConfiguration() Configuration {
	return Configuration{
		LogLevel:  zerolog.WarnLevel,
		LogFormat: LogTextFormat,
	}
}

func (c Configuration) Logging() LoggingConfig {
	return LoggingConfig{Level: c.LogLevel, Format: c.LogFormat}
}

// String never includes the API key.
func (c Configuration) String() string {
	apiKey := ""
	if c.APIKey != "" {
		apiKey = "****"
	}
	return fmt.Sprintf("api_key=%q log_level=%s log_format=%s", apiKey, c.LogLevel, c.LogFormat)
}
