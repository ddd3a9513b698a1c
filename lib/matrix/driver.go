package matrix

import (
	"errors"
	"sync"
)

// Tee forwards every call to all of its drivers, so a relay board and
// any number of monitors see the same write sequence.
type Tee []Driver

func (t Tee) Enable(on bool) error {
	var errs []error
	for _, d := range t {
		errs = append(errs, d.Enable(on))
	}
	return errors.Join(errs...)
}

func (t Tee) Address(bank int) error {
	var errs []error
	for _, d := range t {
		errs = append(errs, d.Address(bank))
	}
	return errors.Join(errs...)
}

func (t Tee) Write(word uint8) error {
	var errs []error
	for _, d := range t {
		errs = append(errs, d.Write(word))
	}
	return errors.Join(errs...)
}

// Recorder is a Driver that keeps the word last latched into each bank.
// It is safe to read from other goroutines while the show writes to it.
type Recorder struct {
	mu      sync.Mutex
	bank    int
	pending uint8
	words   [MaxBanks]uint8
	latches int
}

func (r *Recorder) Enable(on bool) error {
	if !on {
		return nil
	}
	r.mu.Lock()
	r.words[r.bank] = r.pending
	r.latches++
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Address(bank int) error {
	r.mu.Lock()
	r.bank = bank
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Write(word uint8) error {
	r.mu.Lock()
	r.pending = word
	r.mu.Unlock()
	return nil
}

// Snapshot returns the latched words and the number of latches so far.
func (r *Recorder) Snapshot() ([MaxBanks]uint8, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.words, r.latches
}
