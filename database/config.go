/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DB_HOST.
const EnvPrefix = "DB_"

// LoadConfig reads a YAML configuration file on top of DefaultConfig and then
// applies DB_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data, nil)
}

// ParseConfig decodes YAML into a Config and applies environment overrides.
// A nil environ means the process environment.
func ParseConfig(data []byte, environ map[string]string) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := ApplyEnvOverrides(cfg, environ); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides overwrites fields whose DB_* variable is set. Durations
// use Go duration syntax ("30s", "5m").
func ApplyEnvOverrides(cfg *Config, environ map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("database configuration cannot be empty")
	}
	if err := applyEnv(&cfg.ConnectionConfig, environ); err != nil {
		return err
	}
	return applyEnv(&cfg.PaginationConfig, environ)
}

func applyEnv(target interface{}, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}
