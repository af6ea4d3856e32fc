package service

import (
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	cycles        atomic.Int64
	lastCycleUnix atomic.Int64 // unix seconds
	lastCycleErrs atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// TouchCycle records a finished cycle and how many errors it had.
func (s *State) TouchCycle(t time.Time, errs int) {
	s.cycles.Add(1)
	s.lastCycleUnix.Store(t.Unix())
	s.lastCycleErrs.Store(int64(errs))
}

func (s *State) Cycles() int64         { return s.cycles.Load() }
func (s *State) LastCycleErrors() int  { return int(s.lastCycleErrs.Load()) }
func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

func (s *State) LastCycle() time.Time {
	u := s.lastCycleUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}
