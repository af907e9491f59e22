package banner

import (
	"fmt"

	"heartlink/pkg/config"
)

const banner = `
██╗  ██╗███████╗ █████╗ ██████╗ ████████╗██╗     ██╗███╗   ██╗██╗  ██╗
██║  ██║██╔════╝██╔══██╗██╔══██╗╚══██╔══╝██║     ██║████╗  ██║██║ ██╔╝
███████║█████╗  ███████║██████╔╝   ██║   ██║     ██║██╔██╗ ██║█████╔╝
██╔══██║██╔══╝  ██╔══██║██╔══██╗   ██║   ██║     ██║██║╚██╗██║██╔═██╗
██║  ██║███████╗██║  ██║██║  ██║   ██║   ███████╗██║██║ ╚████║██║  ██╗
╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝
`

// Print renders the startup banner with the effective configuration.
func Print(eff config.Effective, version string) {
	cfg := eff.Config
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("REST API:  %s\n", cfg.API.BaseURL)
	fmt.Printf("Push URL:  %s\n", cfg.Realtime.URL)
	fmt.Printf("Session:   %s\n", cfg.Session.Path)
	if cfg.Metrics.Enabled {
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Addr)
	}
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	fmt.Printf("Config sources: %s\n", eff.Source)
	fmt.Println("\n== Commands ===================================================")
	fmt.Println("/to <peerId>   select a conversation")
	fmt.Println("/status        show connection state")
	fmt.Println("/quit          exit")
	fmt.Println("anything else  send to the selected peer")
}
