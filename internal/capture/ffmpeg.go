package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

const diagnosticLines = 50

// FFmpegLauncher runs the frame grabber as an ffmpeg subprocess in its own
// process group.
type FFmpegLauncher struct {
	Binary string
}

// Launch starts ffmpeg. The process is deliberately not tied to ctx: the
// manager owns its shutdown so frames are flushed on a graceful stop.
func (l FFmpegLauncher) Launch(_ context.Context, spec Spec) (Process, error) {
	binary := l.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.Command(binary, BuildArgs(spec)...)
	setProcessGroup(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("exec start: %w", err)
	}

	p := &execProcess{
		cmd:     cmd,
		ring:    newRingBuffer(diagnosticLines),
		drained: make(chan struct{}),
	}
	go p.drain(stderr)
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	ring    *ringBuffer
	drained chan struct{}
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Terminate() error {
	return terminateGroup(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	return killGroup(p.cmd.Process)
}

// Wait reads stderr to EOF before reaping, as exec.Cmd requires.
func (p *execProcess) Wait() error {
	<-p.drained
	return p.cmd.Wait()
}

func (p *execProcess) Diagnostics() []string {
	return p.ring.lines()
}

func (p *execProcess) drain(r io.Reader) {
	defer close(p.drained)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.ring.add(scanner.Text())
	}
}

type ringBuffer struct {
	mu   sync.Mutex
	buf  []string
	pos  int
	full bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{buf: make([]string, size)}
}

func (r *ringBuffer) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.pos] = line
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *ringBuffer) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.buf[:r.pos]...)
	}
	out := make([]string, len(r.buf))
	copy(out, r.buf[r.pos:])
	copy(out[len(r.buf)-r.pos:], r.buf[:r.pos])
	return out
}
