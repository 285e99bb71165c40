package pipeline

import (
	"context"
	"io"
	"os/exec"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

// execSource wraps a capture subprocess (arecord, ffmpeg, or anything else
// that streams raw signed 16-bit little-endian PCM to stdout) as a Source.
// Closing it kills the child; Sampler relies on that to unblock a goroutine
// parked in a Read on the child's stdout pipe.
type execSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// NewCommandSource starts name with args under ctx and returns a Source
// reading its stdout. Cancelling ctx or calling Close kills the process.
func NewCommandSource(ctx context.Context, name string, args ...string) (Source, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, pipelineerr.New(err).Component("pipeline.capture").Category(pipelineerr.CategoryCapture).
			Context("command", name).Build()
	}
	if err := cmd.Start(); err != nil {
		return nil, pipelineerr.New(err).Component("pipeline.capture").Category(pipelineerr.CategoryCapture).
			Context("command", name).Build()
	}
	return &execSource{cmd: cmd, stdout: stdout}, nil
}

func (e *execSource) Read(p []byte) (int, error) {
	return e.stdout.Read(p)
}

func (e *execSource) Close() error {
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	_ = e.stdout.Close()
	return e.cmd.Wait()
}

// ArecordSource builds the standard arecord invocation for 16 kHz mono
// signed 16-bit little-endian capture from the named ALSA device.
func ArecordSource(ctx context.Context, device string) (Source, error) {
	return NewCommandSource(ctx, "arecord",
		"-D", device,
		"-f", "S16_LE",
		"-r", "16000",
		"-c", "1",
		"-t", "raw",
	)
}
