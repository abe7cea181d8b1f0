package config

import (
	"os"
	"strings"
)

// envKeyReplacer maps nested keys to variable names: storage.type -> STORAGE_TYPE
var envKeyReplacer = strings.NewReplacer(".", "_")

// EnvName returns the environment variable that overrides a config key
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(envKeyReplacer.Replace(key))
}

// Helper functions for type-safe environment variable access

// GetString returns string value or default
func GetString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
