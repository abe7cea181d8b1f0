package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextParse - parse stores the graph
	ValidationContextParse ValidationContext = "parse"
	// ValidationContextGenerate - generate writes bindings and may read the store
	ValidationContextGenerate ValidationContext = "generate"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err)
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			fmt.Fprintf(&sb, "  ! %s\n", warn)
		}
	}

	return sb.String()
}

// Err returns the result as a config error, or nil when valid
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigErrorf("%s", strings.TrimSpace(vr.Error()))
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextParse:
		c.validateStorage(result)
	case ValidationContextGenerate:
		c.validateStorage(result)
		c.validateGeneration(result)
		c.validateLayout(result)
		c.validateComments(result)
	case ValidationContextAll:
		c.validateStorage(result)
		c.validateGeneration(result)
		c.validateLayout(result)
		c.validateComments(result)
		c.validateLogging(result)
	}

	return result
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Type {
	case "sqlite", "":
		if c.Storage.SQLitePath == "" {
			result.AddError("storage.sqlite_path is required for sqlite storage (%s)", EnvName("storage.sqlite_path"))
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("storage.postgres_dsn is required for postgres storage (%s)", EnvName("storage.postgres_dsn"))
		} else if !strings.HasPrefix(c.Storage.PostgresDSN, "postgres://") &&
			!strings.HasPrefix(c.Storage.PostgresDSN, "postgresql://") &&
			!strings.Contains(c.Storage.PostgresDSN, "host=") {
			result.AddWarning("storage.postgres_dsn does not look like a URL or key/value DSN")
		}
	default:
		result.AddError("storage.type must be sqlite or postgres, got %q", c.Storage.Type)
	}
}

func (c *Config) validateGeneration(result *ValidationResult) {
	if c.Generation.OutputDir == "" {
		result.AddError("generation.output_dir is required")
	}
	if c.Generation.Workers < 1 {
		result.AddError("generation.workers must be at least 1, got %d", c.Generation.Workers)
	}
	if ns := c.Generation.RootNamespace; ns != "" {
		for _, part := range strings.Split(ns, ".") {
			if !isIdentifier(part) {
				result.AddError("generation.root_namespace %q is not a valid namespace", ns)
				break
			}
		}
	} else {
		result.AddWarning("generation.root_namespace is empty; types are emitted in the global namespace")
	}
	if c.Generation.RulesFile != "" {
		if _, err := os.Stat(c.Generation.RulesFile); err != nil {
			result.AddError("generation.rules_file %s: %v", c.Generation.RulesFile, err)
		}
	}
}

func (c *Config) validateLayout(result *ValidationResult) {
	if c.Layout.PointerSize != 4 && c.Layout.PointerSize != 8 {
		result.AddError("layout.pointer_size must be 4 or 8, got %d", c.Layout.PointerSize)
	} else if c.Layout.PointerSize != 4 {
		result.AddWarning("layout.pointer_size %d does not match 32-bit decompiler output", c.Layout.PointerSize)
	}
	switch c.Layout.MaxPack {
	case 1, 2, 4, 8, 16:
	default:
		result.AddError("layout.max_pack must be a power of two up to 16, got %d", c.Layout.MaxPack)
	}
}

func (c *Config) validateComments(result *ValidationResult) {
	if c.Comments.Enabled && c.Comments.CachePath == "" {
		result.AddWarning("comments.cache_path is empty; comment lookups are not cached")
	}
}

func (c *Config) validateLogging(result *ValidationResult) {
	if !logLevels[strings.ToLower(c.Logging.Level)] {
		result.AddError("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
