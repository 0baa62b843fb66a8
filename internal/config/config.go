// Package config implements the configuration loader: a project-level
// YAML file layered under per-invocation options and environment variable
// overrides, producing a single immutable options record.
//
// A direct YAML read bypassing any singleton, with environment override
// precedence (gopkg.in/yaml.v3), using a DDLTIGHTEN_* env convention.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig is the subset of .ddltighten/config.yaml fields read
// directly from disk, lowest-precedence layer of the resolution order
// (defaults -> this file -> per-invocation JSON options -> environment).
type ProjectConfig struct {
	CacheRoot          string `yaml:"cache-root"`
	DefaultParallelism int    `yaml:"default-parallelism"`
	DefaultPolicyMode  string `yaml:"default-policy-mode"`
	DefaultRemediation string `yaml:"default-remediation-mode"`
	TypeMappingPath    string `yaml:"type-mapping-path"`
}

// defaults are applied before the project file is read, so a field absent
// from both the file and the environment still has a defined value.
func defaults() ProjectConfig {
	return ProjectConfig{
		DefaultParallelism: 1,
		DefaultPolicyMode:  "Conservative",
		DefaultRemediation: "Withhold",
	}
}

// Load reads .ddltighten/config.yaml from projectDir, starting from
// defaults(). A missing or unparseable file is not an error — it yields
// the defaults unchanged rather than nil.
func Load(projectDir string) ProjectConfig {
	cfg := defaults()

	path := filepath.Join(projectDir, ".ddltighten", "config.yaml")
	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from a caller-supplied project directory
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaults()
	}
	return cfg
}

// LoadWithEnv layers environment variable overrides on top of Load.
// Supported overrides: DDLTIGHTEN_CACHE_ROOT, DDLTIGHTEN_POLICY_MODE,
// DDLTIGHTEN_REMEDIATION_MODE.
func LoadWithEnv(projectDir string) ProjectConfig {
	cfg := Load(projectDir)

	if v := os.Getenv("DDLTIGHTEN_CACHE_ROOT"); v != "" {
		cfg.CacheRoot = v
	}
	if v := os.Getenv("DDLTIGHTEN_POLICY_MODE"); v != "" {
		cfg.DefaultPolicyMode = v
	}
	if v := os.Getenv("DDLTIGHTEN_REMEDIATION_MODE"); v != "" {
		cfg.DefaultRemediation = v
	}
	return cfg
}
