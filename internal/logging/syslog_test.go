// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultSyslogConfig(t *testing.T) {
	cfg := DefaultSyslogConfig()

	require.False(t, cfg.Enabled)
	require.Equal(t, 514, cfg.Port)
	require.Equal(t, "udp", cfg.Protocol)
	require.Equal(t, "trieguard", cfg.Tag)
	require.Equal(t, 1, cfg.Facility)
}

func TestNewSyslogWriterMissingHost(t *testing.T) {
	cfg := SyslogConfig{
		Enabled: true,
		Host:    "",
	}

	_, err := NewSyslogWriter(cfg)
	require.Error(t, err)
}

func TestSyslogConfigStruct(t *testing.T) {
	cfg := SyslogConfig{
		Enabled:  true,
		Host:     "syslog.example.com",
		Port:     1514,
		Protocol: "tcp",
		Tag:      "myapp",
		Facility: 3,
	}

	require.True(t, cfg.Enabled)
	require.Equal(t, "syslog.example.com", cfg.Host)
	require.Equal(t, 1514, cfg.Port)
	require.Equal(t, "tcp", cfg.Protocol)
	require.Equal(t, "myapp", cfg.Tag)
	require.Equal(t, 3, cfg.Facility)
}
