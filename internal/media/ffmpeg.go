package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// TranscodeError is returned when ffmpeg exits non-zero. Stderr holds the
// process diagnostics verbatim.
type TranscodeError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v: %s", e.Err, strings.TrimSpace(e.Stderr))
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Encoder shells out to ffmpeg. Output is always re-encoded mp3 so cuts at
// arbitrary offsets stay playable.
type Encoder struct {
	Path    string
	Bitrate string
}

func NewEncoder(path, bitrate string) *Encoder {
	if path == "" {
		path = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = "192k"
	}
	return &Encoder{Path: path, Bitrate: bitrate}
}

// Trim writes [start, start+duration) of in to out.
func (e *Encoder) Trim(ctx context.Context, in, out string, start, duration int) error {
	args := []string{
		"-y",
		"-ss", strconv.Itoa(start),
		"-t", strconv.Itoa(duration),
		"-i", in,
	}
	return e.run(ctx, append(args, e.mp3Args(out)...))
}

// ToMP3 converts any input ffmpeg understands to mp3.
func (e *Encoder) ToMP3(ctx context.Context, in, out string) error {
	return e.run(ctx, append([]string{"-y", "-i", in}, e.mp3Args(out)...))
}

func (e *Encoder) mp3Args(out string) []string {
	return []string{"-vn", "-acodec", "libmp3lame", "-b:a", e.Bitrate, out}
}

func (e *Encoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &TranscodeError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}
