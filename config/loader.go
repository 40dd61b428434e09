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

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// DefaultEnvPrefix matches the variable the IBM Cloud CLI and SDKs read the
// API key from, IBMCLOUD_API_KEY.
const DefaultEnvPrefix = "IBMCLOUD_"

var ErrConfiguration = errors.New("configuration error")

type opts struct {
	configFile string
	envPrefix  string
	overrides  map[string]any
}

type Option func(*opts)

// WithConfigFile sets a YAML file to read. A missing file is an error.
func WithConfigFile(file string) Option {
	return func(o *opts) {
		configFile := strings.TrimSpace(file)
		if len(configFile) != 0 {
			o.configFile = configFile
		}
	}
}

func WithEnvPrefix(prefix string) Option {
	return func(o *opts) {
		o.envPrefix = prefix
	}
}

// WithOverride sets a value that takes precedence over every other source.
func WithOverride(key string, value any) Option {
	return func(o *opts) {
		if o.overrides == nil {
			o.overrides = make(map[string]any)
		}
		o.overrides[key] = value
	}
}

// NewConfiguration loads and validates the configuration.
func NewConfiguration(options ...Option) (*Configuration, error) {
	o := opts{envPrefix: DefaultEnvPrefix}
	for _, opt := range options {
		opt(&o)
	}

	cfg := defaultConfiguration()

	parser := koanf.New(".")
	if err := parser.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("%w: failed to load defaults: %w", ErrConfiguration, err)
	}

	if len(o.configFile) != 0 {
		raw, err := os.ReadFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %w", ErrConfiguration, o.configFile, err)
		}

		if err := parser.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: failed to parse yaml config from %s: %w", ErrConfiguration, o.configFile, err)
		}
	}

	if err := parser.Load(envProvider(o.envPrefix), nil); err != nil {
		return nil, fmt.Errorf("%w: failed to parse environment variables: %w", ErrConfiguration, err)
	}

	if len(o.overrides) != 0 {
		if err := parser.Load(confmap.Provider(o.overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("%w: failed to apply overrides: %w", ErrConfiguration, err)
		}
	}

	err := parser.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				logLevelDecodeHookFunc,
				logFormatDecodeHookFunc,
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if err := ValidateStruct(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envProvider maps IBMCLOUD_API_KEY to api_key, IBMCLOUD_LOG_LEVEL to
// log_level and so on.
func envProvider(prefix string) *env.Env {
	return env.Provider(".", env.Opt{
		Prefix: prefix,
		TransformFunc: func(key, val string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, prefix)), val
		},
	})
}

func logLevelDecodeHookFunc(from reflect.Type, to reflect.Type, val any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(zerolog.Level(0)) {
		return val, nil
	}

	str := strings.ToLower(strings.TrimSpace(val.(string))) // nolint: forcetypeassert
	if len(str) == 0 {
		return defaultConfiguration().LogLevel, nil
	}

	level, err := zerolog.ParseLevel(str)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q", str)
	}

	return level, nil
}

func logFormatDecodeHookFunc(from reflect.Type, to reflect.Type, val any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(LogFormat(0)) {
		return val, nil
	}

	switch strings.ToLower(strings.TrimSpace(val.(string))) { // nolint: forcetypeassert
	case "", "text":
		return LogTextFormat, nil
	case "json":
		return LogJSONFormat, nil
	default:
		return nil, fmt.Errorf("invalid log_format %q", val)
	}
}
