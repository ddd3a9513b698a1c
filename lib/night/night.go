// Package night approximates local darkness from the day of the year, for
// shows that only restart after dusk.
//
// The evening and morning bounds move by one minute per day away from the
// reference day (DayOffset days after January 1st), folded at the half-year
// so the curve is symmetric around midsummer.
package night

import (
	"log"
	"time"
)

type Scheduler struct {
	// Evening and Morning are the night bounds on the reference day, in
	// standard-time hours.
	Evening   float64
	Morning   float64
	DayOffset int
	Interval  time.Duration

	log   *log.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

func New(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		Evening:   16.83,
		Morning:   7.74,
		DayOffset: 11,
		Interval:  30 * time.Second,
		log:       logger,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

func (s *Scheduler) SetTime(now func() time.Time, sleep func(time.Duration)) {
	s.now = now
	s.sleep = sleep
}

// Window is the night for one day: it starts at Begin and lasts past
// midnight until End, both in standard-time hours.
type Window struct {
	Begin float64
	End   float64
}

func (s *Scheduler) dayTerm(t time.Time) float64 {
	day := t.YearDay() - 1 - s.DayOffset
	if day < 0 {
		day += 365
	}
	if day > 183 {
		day = 366 - day
	}
	return float64(day) / 60
}

func (s *Scheduler) WindowAt(t time.Time) Window {
	d := s.dayTerm(t)
	return Window{Begin: s.Evening + d, End: s.Morning - d}
}

// Hour is the local time of day in standard-time hours: one hour is taken
// off while daylight saving is in effect.
func Hour(t time.Time) float64 {
	h := float64(t.Hour()) + float64(t.Minute())/60
	if t.IsDST() {
		h--
	}
	if h < 0 {
		h += 24
	}
	return h
}

func (s *Scheduler) IsNight(t time.Time) bool {
	w := s.WindowAt(t)
	h := Hour(t)
	return (h >= 0 && h < w.End) || (h >= w.Begin && h < 24)
}

// WaitUntilNight blocks until IsNight holds for the current local time.
func (s *Scheduler) WaitUntilNight() {
	t := s.now()
	if s.IsNight(t) {
		return
	}
	s.log.Printf("Waiting for nighttime in: %.2f hours", s.WindowAt(t).Begin-Hour(t))
	for !s.IsNight(s.now()) {
		s.sleep(s.Interval)
	}
	s.log.Printf("Night detected")
}
