// Package banner prints the startup banner and effective configuration.
package banner

import (
	"fmt"

	"github.com/adambraimbridge/webchat/pkg/config"
)

const banner = `
██╗    ██╗███████╗██████╗  ██████╗██╗  ██╗ █████╗ ████████╗
██║    ██║██╔════╝██╔══██╗██╔════╝██║  ██║██╔══██╗╚══██╔══╝
██║ █╗ ██║█████╗  ██████╔╝██║     ███████║███████║   ██║
██║███╗██║██╔══╝  ██╔══██╗██║     ██╔══██║██╔══██║   ██║
╚███╔███╔╝███████╗██████╔╝╚██████╗██║  ██║██║  ██║   ██║
 ╚══╝╚══╝ ╚══════╝╚═════╝  ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// PrintWithEff prints the banner using the effective configuration.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config source: %s\n", src)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/sessions                       - Create a session (editor)")
	fmt.Println("GET  /v1/sessions/{id}/init             - Session snapshot")
	fmt.Println("GET  /v1/sessions/{id}/catchup          - Historical events")
	fmt.Println("POST /v1/sessions/{id}/messages         - Send a message")
	fmt.Println("GET  /v1/sessions/{id}/stream           - Live event websocket")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/sessions' -H 'X-API-Key: <editor-key>'\n", addr)
	fmt.Printf("curl 'http://localhost%s/v1/sessions/<id>/catchup?direction=reversechronological'\n", addr)
}
