// Package config handles configuration loading and validation.
//
// Configuration is read from a YAML file and validated using struct
// tags. Unset optional values get defaults.
package config
