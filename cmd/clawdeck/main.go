package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"clawdeck/internal/config"
	"clawdeck/internal/logging"
	"clawdeck/internal/ui"
)

// Set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "print version and exit")
		saveConfig  = flag.Bool("save-config", false, "write the effective overrides to the config file and exit")
		debug       = flag.Bool("debug", false, "enable debug logging")

		gatewayURL = flag.String("gateway", "", "gateway URL (overrides discovery)")
		token      = flag.String("token", "", "gateway token (overrides discovery)")
		session    = flag.String("session", "", "default session key")
		wait       = flag.Bool("wait", false, "wait for the agent's response when sending")

		sshHost = flag.String("ssh-host", "", "SSH host to tunnel through")
		sshUser = flag.String("ssh-user", "", "SSH user for the tunnel")
		sshKey  = flag.String("ssh-key", "", "SSH private key path")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("clawdeck %s (%s, built %s)\n", version, commit, date)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "clawdeck: config error: %v\n", err)
		os.Exit(1)
	}

	// Flags are the highest-precedence override source.
	if *gatewayURL != "" {
		cfg.GatewayURL = *gatewayURL
	}
	if *token != "" {
		cfg.Token = *token
	}
	if *session != "" {
		cfg.DefaultSessionKey = *session
	}
	if *wait {
		cfg.WaitForResponse = true
	}
	if *sshHost != "" {
		if cfg.SSH == nil {
			cfg.SSH = &config.SSH{}
		}
		cfg.SSH.Host = *sshHost
	}
	if cfg.SSH != nil {
		if *sshUser != "" {
			cfg.SSH.User = *sshUser
		}
		if *sshKey != "" {
			cfg.SSH.KeyPath = *sshKey
		}
	}

	if *saveConfig {
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "clawdeck: writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", config.FilePath())
		return
	}

	log, err := logging.New(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clawdeck: opening log file: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	app := ui.New(cfg, log, version)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "clawdeck: %v\n", err)
		os.Exit(1)
	}
}
