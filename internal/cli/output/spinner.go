package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/muesli/termenv"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner animates a progress indicator on the error writer while a long
// operation runs. Call Success or Fail exactly once after Start; both stop
// the animation and print a final line.
type Spinner struct {
	out    *termenv.Output
	styles *Styles
	msg    string

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a spinner bound to the renderer's error writer, so
// the animation never corrupts piped stdout.
func (r *Renderer) NewSpinner(msg string) *Spinner {
	return &Spinner{
		out:    termenv.NewOutput(r.errOut),
		styles: r.styles,
		msg:    msg,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.out.HideCursor()
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				frame := spinnerFrames[i%len(spinnerFrames)]
				s.out.ClearLine()
				_, _ = fmt.Fprintf(s.out, "\r%s %s", s.styles.Info.Render(frame), s.msg)
				i++
			}
		}
	}()
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(msg string) {
	s.finish(s.styles.StatusSuccess.String(), msg)
}

// Fail stops the spinner and prints a failure line.
func (s *Spinner) Fail(msg string) {
	s.finish(s.styles.StatusFailed.String(), msg)
}

func (s *Spinner) finish(icon, msg string) {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	s.out.ClearLine()
	_, _ = fmt.Fprintf(s.out, "\r%s %s\n", icon, msg)
	s.out.ShowCursor()
}
