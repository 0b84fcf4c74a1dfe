// Package config loads pipeline settings from layered YAML files with
// environment overrides.
//
// Precedence, highest first:
//  1. ISSUEFLOW_* environment variables (secrets and CI overrides)
//  2. .issueflow.yaml in the git repository root
//  3. ~/.config/issueflow/config.yaml
//  4. Built-in defaults
package config
