// Copyright 2024 The Presto Authors.
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

package executor

import (
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	yaml "gopkg.in/yaml.v2"
)

// Config holds the task executor's constructor-time parameters. It is
// immutable after the executor is built.
type Config struct {
	// Workers is the number of pool workers pulling splits from the queue.
	Workers int `yaml:"workers"`
	// Quantum is the maximum CPU slice granted to a split per pull.
	Quantum time.Duration `yaml:"quantum"`
	// LevelAbsolutePriority selects strict level draining instead of the
	// time-balanced policy.
	LevelAbsolutePriority bool `yaml:"level_absolute_priority"`
	// LevelTimeMultiplier is the target ratio of scheduled time between
	// adjacent levels under the time-balanced policy.
	LevelTimeMultiplier float64 `yaml:"level_time_multiplier"`
}

// DefaultConfig returns the canonical configuration: two workers per CPU,
// one-second quanta, time-balanced selection with a multiplier of 2.
func DefaultConfig() Config {
	return Config{
		Workers:             2 * runtime.NumCPU(),
		Quantum:             time.Second,
		LevelTimeMultiplier: 2.0,
	}
}

// UnmarshalYAML implements yaml.Unmarshaler. Quantum is spelled as a
// duration string ("250ms") in config files.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig struct {
		Workers               int     `yaml:"workers"`
		Quantum               string  `yaml:"quantum"`
		LevelAbsolutePriority bool    `yaml:"level_absolute_priority"`
		LevelTimeMultiplier   float64 `yaml:"level_time_multiplier"`
	}
	raw := rawConfig{
		Workers:               c.Workers,
		Quantum:               c.Quantum.String(),
		LevelAbsolutePriority: c.LevelAbsolutePriority,
		LevelTimeMultiplier:   c.LevelTimeMultiplier,
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	quantum, err := time.ParseDuration(raw.Quantum)
	if err != nil {
		return errors.Wrapf(err, "parsing quantum %q", raw.Quantum)
	}
	*c = Config{
		Workers:               raw.Workers,
		Quantum:               quantum,
		LevelAbsolutePriority: raw.LevelAbsolutePriority,
		LevelTimeMultiplier:   raw.LevelTimeMultiplier,
	}
	return nil
}

// LoadConfig reads a YAML config file, overlaying it on DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// Validate reports configurations the executor refuses to run with. The
// queue itself does not validate; a multiplier at or below 1 yields
// degenerate selection, so it is rejected here instead.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return errors.Newf("workers must be positive, got %d", c.Workers)
	}
	if c.Quantum <= 0 {
		return errors.Newf("quantum must be positive, got %s", c.Quantum)
	}
	if !c.LevelAbsolutePriority && c.LevelTimeMultiplier <= 1.0 {
		return errors.Newf(
			"level time multiplier must exceed 1.0 in time-balanced mode, got %f",
			c.LevelTimeMultiplier)
	}
	return nil
}
