package loop

import "time"

// Frames is a restartable per-frame render loop. Start and Stop are idempotent and
// must be called on the loop. Step renders one frame without a scheduler, for tests.
type Frames struct {
	exec     Executor
	interval time.Duration
	render   func()

	running bool
	gen     uint64
	stop    func()
	count   uint64
}

// NewFrames creates a stopped frame loop ticking at fps.
func NewFrames(exec Executor, fps int, render func()) *Frames {
	if fps <= 0 {
		fps = 60
	}
	return &Frames{
		exec:     exec,
		interval: time.Second / time.Duration(fps),
		render:   render,
	}
}

// Start begins scheduling frames. A running loop is left untouched.
func (f *Frames) Start() {
	if f.running {
		return
	}
	f.running = true
	f.gen++
	gen := f.gen
	f.stop = f.exec.Every(f.interval, func() {
		if !f.running || f.gen != gen {
			return
		}
		f.Step()
	})
}

// Stop cancels scheduling. Frames already queued for an older run are ignored.
func (f *Frames) Stop() {
	if !f.running {
		return
	}
	f.running = false
	f.gen++
	if f.stop != nil {
		f.stop()
		f.stop = nil
	}
}

// Step renders exactly one frame.
func (f *Frames) Step() {
	f.count++
	if f.render != nil {
		f.render()
	}
}

// Running reports whether frames are being scheduled.
func (f *Frames) Running() bool {
	return f.running
}

// Count returns how many frames have been rendered.
func (f *Frames) Count() uint64 {
	return f.count
}
