package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateIngest(&c.Ingest)...)
	errs = append(errs, validateQuery(&c.Query)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if s.Path == "" {
		errs = append(errs, ValidationError{Field: "storage.path", Message: "is required"})
	}
	if s.CacheSizeKiB < 0 {
		errs = append(errs, ValidationError{Field: "storage.cache_size_kib", Message: "must not be negative"})
	}
	return errs
}

func validateIngest(i *IngestConfig) ValidationErrors {
	var errs ValidationErrors
	if i.BatchSize < 1 {
		errs = append(errs, ValidationError{Field: "ingest.batch_size", Message: "must be at least 1"})
	}
	if i.ChannelCapacity < 1 {
		errs = append(errs, ValidationError{Field: "ingest.channel_capacity", Message: "must be at least 1"})
	}
	return errs
}

func validateQuery(q *QueryConfig) ValidationErrors {
	var errs ValidationErrors
	if q.Window < 1 {
		errs = append(errs, ValidationError{Field: "query.window", Message: "must be at least 1"})
	}
	if q.Low < 0 || q.Low >= q.High {
		errs = append(errs, ValidationError{Field: "query.low", Message: "must be non-negative and below query.high"})
	}
	if q.High > q.Window {
		errs = append(errs, ValidationError{Field: "query.high", Message: "must not exceed query.window"})
	}
	if q.Step < 1 || q.Step > q.Window {
		errs = append(errs, ValidationError{Field: "query.step", Message: "must be between 1 and query.window"})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", l.Level)})
	}

	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", l.Format)})
	}

	switch strings.ToLower(l.Output) {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{Field: "logging.file_path", Message: "is required when output includes a file"})
		}
	default:
		errs = append(errs, ValidationError{Field: "logging.output", Message: fmt.Sprintf("unknown output %q", l.Output)})
	}

	return errs
}
