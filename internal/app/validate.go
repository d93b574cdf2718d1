package app

import (
	"fmt"
	"strings"

	"github.com/adambraimbridge/webchat/pkg/config"
	"github.com/adambraimbridge/webchat/pkg/logger"
)

// validateConfig checks the effective config early so startup fails fast
// with a clear message.
func validateConfig(eff config.EffectiveConfigResult) error {
	if strings.TrimSpace(eff.Addr) == "" {
		return fmt.Errorf("no listen address configured")
	}
	if strings.TrimSpace(eff.DBPath) == "" {
		return fmt.Errorf("no db path configured")
	}
	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert == "") != (key == "") {
		return fmt.Errorf("tls requires both cert_file and key_file")
	}
	if len(eff.Config.Security.APIKeys.Editor) == 0 {
		logger.Warn("no_editor_keys_configured", "msg", "session lifecycle endpoints will be unreachable")
	}
	if ret := eff.Config.Retention; ret.Enabled && ret.Period.Duration() <= 0 {
		return fmt.Errorf("retention enabled but period not set")
	}
	return nil
}
