package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"relayshow/lib/config"
	"relayshow/lib/logging"
	"relayshow/lib/matrix"
	"relayshow/lib/outputs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file (default $RELAYSHOW_CONFIG)")
	step := flag.Duration("step", 500*time.Millisecond, "time each channel stays on")
	rounds := flag.Int("rounds", 1, "number of passes over all channels (0 runs until interrupted)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.Log.File = ""
	logger, _ := logging.New(cfg.Log)
	defer midi.CloseDriver()

	outs, err := outputs.Open(cfg.Outputs, logger)
	if err != nil {
		return err
	}
	defer outs.Close()

	m, err := matrix.New(outs.Drivers, cfg.Channels, logger)
	if err != nil {
		return err
	}
	m.SetDebug(true)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Chasing %d channels on %v\n", cfg.Channels, outs.Names)
	for round := 0; *rounds == 0 || round < *rounds; round++ {
		for ch := 1; ch <= cfg.Channels; ch++ {
			if err := m.Set(ch, true); err != nil {
				return err
			}
			select {
			case <-sig:
				fmt.Println()
				return m.Set(ch, false)
			case <-time.After(*step):
			}
			if err := m.Set(ch, false); err != nil {
				return err
			}
		}
	}
	return nil
}
