// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"log/syslog"

	"trieguard.dev/trieguard/internal/ferror"
)

// SyslogConfig configures an optional syslog sink for the Logger,
// separate from the main stderr/JSON handler.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns the conventional defaults: disabled, UDP,
// port 514, tag "trieguard", facility 1 (user-level messages).
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "trieguard",
		Facility: 1,
	}
}

// NewSyslogWriter dials a syslog daemon at cfg.Host:cfg.Port and returns
// an io.Writer suitable as a slog.Handler output, defaulting unset
// fields per DefaultSyslogConfig.
func NewSyslogWriter(cfg SyslogConfig) (*syslog.Writer, error) {
	if cfg.Host == "" {
		return nil, ferror.New(ferror.KindIO, "syslog host must not be empty")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "trieguard"
	}
	if cfg.Facility == 0 {
		cfg.Facility = 1
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	w, err := syslog.Dial(cfg.Protocol, addr, syslog.Priority(cfg.Facility)<<3|syslog.LOG_INFO, cfg.Tag)
	if err != nil {
		return nil, ferror.Wrapf(err, ferror.KindIO, "dial syslog at %s", addr)
	}
	return w, nil
}
