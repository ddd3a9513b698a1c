package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"relayshow/lib/audio"
	"relayshow/lib/clock"
	"relayshow/lib/config"
	"relayshow/lib/logging"
	"relayshow/lib/matrix"
	"relayshow/lib/night"
	"relayshow/lib/outputs"
	"relayshow/lib/qlab"
	"relayshow/lib/show"
	"relayshow/lib/status"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file (default $RELAYSHOW_CONFIG)")
	debug := flag.Bool("debug", false, "log every decoder and data write")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [show file]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *debug {
		cfg.Log.Debug = true
	}

	logger, logFile := logging.New(cfg.Log)
	defer logFile.Close()
	defer midi.CloseDriver()

	outs, err := outputs.Open(cfg.Outputs, logger)
	if err != nil {
		return err
	}
	defer outs.Close()

	rec := &matrix.Recorder{}
	m, err := matrix.New(append(outs.Drivers, rec), cfg.Channels, logger)
	if err != nil {
		return err
	}
	m.SetDebug(cfg.Log.Debug)

	player, source, closeAudio, err := openAudio(cfg, logger)
	if err != nil {
		return err
	}
	defer closeAudio()

	c := clock.New(source, logger)
	c.Interval = cfg.Clock.PollInterval()
	c.Stale = cfg.Clock.StaleAfter()

	sched := night.New(logger)
	sched.Evening = cfg.Night.Evening
	sched.Morning = cfg.Night.Morning
	sched.DayOffset = cfg.Night.DayOffset
	sched.Interval = time.Duration(cfg.Night.PollIntervalSec) * time.Second

	runner := show.NewRunner(m, c, player, sched, logger)

	if cfg.Status.Addr != "" {
		h := status.Handler(rec, cfg.Channels, func() (string, int) {
			return runner.State().String(), runner.Line()
		})
		go func() {
			logger.Printf("Status on %s", cfg.Status.Addr)
			if err := http.ListenAndServe(cfg.Status.Addr, h); err != nil {
				logger.Printf("ERROR: status server: %v", err)
			}
		}()
	}

	// The session may be blocked on stdin; defers do not run on this path.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logger.Printf("Stopping on %v", s)
		closeAudio()
		outs.Close()
		midi.CloseDriver()
		logFile.Close()
		os.Exit(1)
	}()

	session := &show.Session{
		Runner:    runner,
		Prompter:  show.NewLinePrompter(os.Stdin, os.Stdout),
		Extension: cfg.Extension,
		Log:       logger,
	}
	return session.Run(flag.Arg(0))
}

// openAudio picks the audio player and the time source the clock follows.
// Without a player, the time file is still watched so an external player
// can drive the show.
func openAudio(cfg *config.Config, logger *log.Logger) (show.Player, clock.Source, func() error, error) {
	nop := func() error { return nil }
	times := audio.TimeFile{Path: cfg.Audio.TimeFile}

	switch cfg.Audio.Backend {
	case "mpg123":
		if err := times.Clear(); err != nil {
			return nil, nil, nop, err
		}
		p := &audio.Mpg123{Binary: cfg.Audio.Mpg123.Binary, Times: times, Log: logger}
		return p, times, nop, nil

	case "beep":
		b := &audio.Beep{}
		return b, b, nop, nil

	case "mpd":
		m := &audio.MPD{Network: cfg.Audio.MPD.Network, Address: cfg.Audio.MPD.Address}
		return m, m, m.Close, nil

	case "qlab":
		client, err := qlab.Dial(cfg.QLab.Host, cfg.QLab.Port)
		if err != nil {
			return nil, nil, nop, err
		}
		if err := client.Connect(cfg.QLab.Workspace, cfg.QLab.Passcode); err != nil {
			client.Close()
			return nil, nil, nop, err
		}
		logger.Printf("Connected to QLab workspace %s", cfg.QLab.Workspace)
		p := &qlab.Player{Client: client, Workspace: cfg.QLab.Workspace}
		closeQLab := func() error {
			return errors.Join(p.Stop(), client.Close())
		}
		return p, p, closeQLab, nil
	}
	return nil, times, nop, nil
}
