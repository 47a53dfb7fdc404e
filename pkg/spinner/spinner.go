// Package spinner draws a busy indicator while a command waits on the network.
package spinner

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultInterval is the delay between frames.
const DefaultInterval = 80 * time.Millisecond

// Spinner struct holds the spinner state
type Spinner struct {
	w        io.Writer
	frames   []string
	interval time.Duration

	mu      sync.Mutex
	index   int
	label   string
	stop    chan struct{}
	stopped chan struct{}
}

// NewSpinner creates a spinner writing to w with a braille arrow sequence.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{
		w: w,
		frames: []string{
			"⣀⣀ ",
			"⣄⣀ ",
			"⣤⣀ ",
			"⣦⣄ ",
			"⣶⣤ ",
			"⣿⣦ ",
			"⣿⣷ ",
			"⣿⣿ ",
			"⣷⣿ ",
			"⣦⣿ ",
			"⣤⣷ ",
			"⣄⣦ ",
			"⣀⣤ ",
			"⣀⣄ ",
		},
		interval: DefaultInterval,
	}
}

// Update advances the spinner to the next frame and prints it.
func (s *Spinner) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLocked()
}

func (s *Spinner) updateLocked() {
	// Hide cursor
	fmt.Fprint(s.w, "\033[?25l")
	fmt.Fprintf(s.w, "\r%s%s", s.frames[s.index], s.label)

	s.index++
	if s.index >= len(s.frames) {
		s.index = 0
	}
}

// Start animates with label until Stop is called. Starting a running
// spinner only changes its label.
func (s *Spinner) Start(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.label = label
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.run(s.stop, s.stopped)
}

func (s *Spinner) run(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Update()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Update()
		}
	}
}

// Stop ends the animation, waits for it to exit and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
	s.Cleanup()
}

// Cleanup hides the spinner and shows the cursor
func (s *Spinner) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.w, "\r\033[K")  // Clear the line
	fmt.Fprint(s.w, "\033[?25h") // Show cursor
}

// Wrap runs fn with the spinner shown.
func Wrap[T any](s *Spinner, label string, fn func() (T, error)) (T, error) {
	if s == nil {
		return fn()
	}
	s.Start(label)
	defer s.Stop()
	return fn()
}
