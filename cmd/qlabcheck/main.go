package main

import (
	"flag"
	"fmt"
	"os"

	"relayshow/lib/config"
	"relayshow/lib/qlab"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file (default $RELAYSHOW_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	client, err := qlab.Dial(cfg.QLab.Host, cfg.QLab.Port)
	if err != nil {
		return err
	}
	defer client.Close()

	version, err := client.Version()
	if err != nil {
		return err
	}
	fmt.Printf("QLab %s at %s:%d\n", version, cfg.QLab.Host, cfg.QLab.Port)

	workspaces, err := client.Workspaces()
	if err != nil {
		return err
	}
	for _, ws := range workspaces {
		fmt.Printf("Workspace %s (%s)\n", ws.DisplayName, ws.UniqueID)
		if cfg.QLab.Workspace != "" && ws.UniqueID != cfg.QLab.Workspace {
			continue
		}
		if err := client.Connect(ws.UniqueID, cfg.QLab.Passcode); err != nil {
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
			continue
		}
		lists, err := client.CueLists(ws.UniqueID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
			continue
		}
		for _, list := range lists {
			printCue(list, 1)
		}
	}
	return nil
}

func printCue(c qlab.Cue, depth int) {
	fmt.Printf("%*s%-6s %-10s %s\n", depth*2, "", c.Number, c.Type, c.Name)
	for _, child := range c.Cues {
		printCue(child, depth+1)
	}
}
