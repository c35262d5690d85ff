// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"trieguard.dev/trieguard/internal/ferror"
)

// Save regenerates path from cfg as HCL, so a value changed at runtime
// (for example the default action) can be persisted for the next start.
// Firewall.SetDefaultAction and the HTTP API do not call it; a runtime
// change is not written back to the file unless the caller saves it.
func Save(cfg *Config, path string) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("interface", cty.StringVal(cfg.Interface))
	body.SetAttributeValue("default_action", cty.StringVal(cfg.DefaultAction))
	body.SetAttributeValue("max_ranges", cty.NumberIntVal(int64(cfg.MaxRanges)))

	if cfg.Logging != nil {
		logging := body.AppendNewBlock("logging", nil).Body()
		logging.SetAttributeValue("level", cty.StringVal(cfg.Logging.Level))
		logging.SetAttributeValue("syslog", cty.BoolVal(cfg.Logging.Syslog))
	}
	if cfg.Metrics != nil {
		metrics := body.AppendNewBlock("metrics", nil).Body()
		metrics.SetAttributeValue("enabled", cty.BoolVal(cfg.Metrics.Enabled))
		metrics.SetAttributeValue("listen", cty.StringVal(cfg.Metrics.Listen))
	}
	if cfg.API != nil {
		api := body.AppendNewBlock("api", nil).Body()
		api.SetAttributeValue("enabled", cty.BoolVal(cfg.API.Enabled))
		api.SetAttributeValue("listen", cty.StringVal(cfg.API.Listen))
	}

	if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil {
		return ferror.Wrapf(err, ferror.KindIO, "write config %q", path)
	}
	return nil
}
