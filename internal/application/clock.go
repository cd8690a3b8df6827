package application

import (
	"sync"
	"time"
)

// Clock interface supaya durasi run gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// StepClock advances by Step on every call to Now.
type StepClock struct {
	mu   sync.Mutex
	T    time.Time
	Step time.Duration
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.T
	c.T = c.T.Add(c.Step)
	return now
}
