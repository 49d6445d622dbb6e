// Package config loads and validates collector configuration.
//
// Configuration is YAML with ${VAR} environment expansion. Credentials
// (PROJECTX_USERNAME, PROJECTX_API_KEY) come from the environment, not
// from config files.
package config
