package cli

import (
	"fmt"
	"os"

	"github.com/sealbot/sealbot/internal/config"
)

// RunStatus displays the current configuration status with styled output.
func RunStatus(cfg *config.Config) {
	cfgPath := config.ConfigPath()

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s sealbot Status", Logo)))
	fmt.Println()

	fmt.Printf("  %-14s %s  %s\n", "Config", StatusBadge(fileExists(cfgPath)), DimStyle.Render(cfgPath))
	fmt.Printf("  %-14s %s\n", "Token", StatusBadge(cfg.Playerok.Token != ""))
	fmt.Printf("  %-14s %s  %s\n", "Proxy", StatusBadge(cfg.Playerok.Proxy != ""), DimStyle.Render(cfg.Playerok.Proxy))
	fmt.Printf("  %-14s %ds poll · %ds timeout · %d challenge retries\n", "Listener",
		cfg.Listener.PollInterval, cfg.Playerok.RequestTimeout, cfg.Playerok.MaxChallengeRetries)

	cursorMode := "in-memory"
	if cfg.Cursors.Persist {
		cursorMode = "sqlite · " + cfg.CursorDBPath()
	}
	fmt.Printf("  %-14s %s\n", "Cursors", DimStyle.Render(cursorMode))
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Notifications"))
	fmt.Printf("    %s  Discord\n", StatusBadge(cfg.Notifications.Discord.Enabled))
	if cfg.Notifications.Discord.Enabled {
		ev := cfg.Notifications.Discord.Events
		fmt.Printf("       %s messages  %s deals  %s status  %s problems\n",
			StatusBadge(ev.NewMessage), StatusBadge(ev.NewDeal),
			StatusBadge(ev.DealStatusChanged), StatusBadge(ev.DealProblems))
	}
	fmt.Println()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
