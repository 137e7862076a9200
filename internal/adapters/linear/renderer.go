// Package linear renders task lifecycles as chronological, time stamped lines.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer with output like
//
//	[09:41:07] Starting 'styles'...
//	[09:41:07] Finished 'styles' after 38 ms
type Renderer struct {
	w      io.Writer
	output *termenv.Output
	now    func() time.Time

	mu      sync.Mutex
	tasks   map[string]*taskState // spanID -> task state
	buffers map[string]*bytes.Buffer
}

type taskState struct {
	name      string
	startTime time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock sets the clock used to stamp task output lines.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

// NewRenderer creates a Renderer writing to w. A nil w writes to os.Stdout.
func NewRenderer(w io.Writer, opts ...Option) *Renderer {
	if w == nil {
		w = os.Stdout
	}

	r := &Renderer{
		w:       w,
		output:  output.NewWithProfile(w, output.ColorProfileANSI),
		now:     time.Now,
		tasks:   make(map[string]*taskState),
		buffers: make(map[string]*bytes.Buffer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start is a no-op; the renderer writes synchronously.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes all partial lines.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for spanID := range r.buffers {
		r.flushBufferLocked(spanID)
	}
	return nil
}

// Wait is a no-op; the renderer writes synchronously.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit announces the targets of a run.
func (r *Renderer) OnPlanEmit(steps []string, _ map[string][]string, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, r.taskName(t))
	}
	r.lineLocked(r.now(), fmt.Sprintf("Using %d step(s) for %s",
		len(steps), joinNames(names)))
}

// OnTaskStart prints the start line of a task.
func (r *Renderer) OnTaskStart(spanID, _ string, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[spanID] = &taskState{name: name, startTime: startTime}
	r.buffers[spanID] = new(bytes.Buffer)

	r.lineLocked(startTime, "Starting "+r.taskName(name)+"...")
}

// OnTaskLog prints complete lines of task output as they arrive.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[spanID]; !ok {
		return
	}

	buf := r.buffers[spanID]
	buf.Write(data)

	for {
		idx := bytes.IndexByte(buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := buf.Next(idx + 1)
		r.printLineLocked(line)
	}
}

// OnTaskComplete flushes remaining output and prints the completion line.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[spanID]
	if !ok {
		return
	}

	r.flushBufferLocked(spanID)

	elapsed := r.output.String(style.Duration(endTime.Sub(task.startTime))).
		Foreground(r.output.Color(string(style.Clay))).String()

	if err != nil {
		symbol := r.output.String(style.Cross).Foreground(termenv.ANSIRed).String()
		r.lineLocked(endTime, fmt.Sprintf("%s %s errored after %s", symbol, r.taskName(task.name), elapsed))
	} else {
		r.lineLocked(endTime, fmt.Sprintf("Finished %s after %s", r.taskName(task.name), elapsed))
	}

	delete(r.tasks, spanID)
	delete(r.buffers, spanID)
}

// flushBufferLocked must be called with r.mu held.
func (r *Renderer) flushBufferLocked(spanID string) {
	buf, ok := r.buffers[spanID]
	if !ok || buf.Len() == 0 {
		return
	}
	r.printLineLocked(buf.Bytes())
	buf.Reset()
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	r.lineLocked(r.now(), string(line))
}

// lineLocked must be called with r.mu held.
func (r *Renderer) lineLocked(at time.Time, msg string) {
	stamp := r.output.String(style.Stamp(at)).Faint().String()
	_, _ = fmt.Fprintf(r.w, "%s %s\n", stamp, msg)
}

func (r *Renderer) taskName(name string) string {
	return r.output.String("'" + name + "'").Foreground(r.output.Color(string(style.Cyan))).String()
}

// joinNames renders a, b and c as "a, b and c".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "nothing"
	case 1:
		return names[0]
	}
	out := names[0]
	for _, n := range names[1 : len(names)-1] {
		out += ", " + n
	}
	return out + " and " + names[len(names)-1]
}
