// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"strings"

	"github.com/xyproto/env/v2"
)

// Environment variables read by ConfigFromEnv.
const (
	// GRAPHOPT_MAX_ITERATIONS bounds the number of passes over the graph of each phase.
	GRAPHOPT_MAX_ITERATIONS = "GRAPHOPT_MAX_ITERATIONS"

	// GRAPHOPT_EXCLUDE is a comma-separated list of rule (or pass) names or tags to exclude.
	GRAPHOPT_EXCLUDE = "GRAPHOPT_EXCLUDE"

	// GRAPHOPT_INPLACE enables or disables the inplace phase. It is enabled if not set.
	GRAPHOPT_INPLACE = "GRAPHOPT_INPLACE"
)

// Config of an Optimizer.
type Config struct {
	// MaxIterations bounds the number of passes over the graph of each phase.
	MaxIterations int

	// Exclude lists names or tags of rules and passes not to use.
	Exclude []string

	// Inplace enables the inplace phase.
	Inplace bool
}

// DefaultConfig returns the configuration used when no environment variable is set.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Inplace:       true,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by the environment variables GRAPHOPT_MAX_ITERATIONS,
// GRAPHOPT_EXCLUDE and GRAPHOPT_INPLACE.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.MaxIterations = env.Int(GRAPHOPT_MAX_ITERATIONS, cfg.MaxIterations)
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	cfg.Exclude = splitList(env.Str(GRAPHOPT_EXCLUDE))
	if env.Has(GRAPHOPT_INPLACE) {
		cfg.Inplace = env.Bool(GRAPHOPT_INPLACE)
	}
	return cfg
}

// splitList splits a comma-separated list, trimming spaces and dropping empty elements.
func splitList(s string) []string {
	var list []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			list = append(list, part)
		}
	}
	return list
}
