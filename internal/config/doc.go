// Package config provides configuration loading and validation for the
// voice pipeline service. It handles YAML-based configuration with struct
// validation, plus an environment overlay for secrets.
package config
