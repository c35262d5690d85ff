// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"strings"

	"trieguard.dev/trieguard/internal/portstore"
)

// ValidationError is one configuration violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every violation found by Validate, rather
// than failing on the first one.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks cfg for every violation, returning them all at once.
// The array backing internal/portstore.Store is fixed at compile time,
// so max_ranges is accepted only when it matches portstore.MaxRanges
// exactly. It exists in the schema to make that ceiling visible and
// enforced in config, not to make it runtime-tunable.
func Validate(cfg *Config) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(cfg.Interface) == "" {
		errs = append(errs, ValidationError{Field: "interface", Message: "must not be empty"})
	}

	switch cfg.DefaultAction {
	case "accept", "reject":
	default:
		errs = append(errs, ValidationError{Field: "default_action", Message: fmt.Sprintf("must be \"accept\" or \"reject\", got %q", cfg.DefaultAction)})
	}

	if cfg.MaxRanges != portstore.MaxRanges {
		errs = append(errs, ValidationError{Field: "max_ranges", Message: fmt.Sprintf("must be %d (compiled-in rule store capacity), got %d", portstore.MaxRanges, cfg.MaxRanges)})
	}

	if cfg.Logging != nil {
		switch cfg.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			errs = append(errs, ValidationError{Field: "logging.level", Message: fmt.Sprintf("unrecognised level %q", cfg.Logging.Level)})
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Listen) == "" {
		errs = append(errs, ValidationError{Field: "metrics.listen", Message: "must not be empty when metrics are enabled"})
	}

	if cfg.API != nil && cfg.API.Enabled && strings.TrimSpace(cfg.API.Listen) == "" {
		errs = append(errs, ValidationError{Field: "api.listen", Message: "must not be empty when the API is enabled"})
	}

	return errs
}
