// Package audio defines the minimal audio plumbing shared by TTS and ASR
// provider adapters: a PCM format descriptor, source/sink abstractions over
// the host's audio transport, and WAV/resampling helpers.
//
// Intervox does not talk to sound hardware itself. Audio enters and leaves
// the process as raw 16-bit little-endian PCM streams — typically FIFOs fed
// by external capture/playback tools — wrapped in a [Source] or [Sink] that
// also carries the stream format.
package audio

import (
	"io"
	"os"
)

// Format describes a raw PCM stream: 16-bit little-endian samples at the
// given rate and channel count.
type Format struct {
	// SampleRate in Hz (e.g., 16000 for ASR input, 22050 for TTS output).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo. Providers in this repository only
	// handle mono.
	Channels int
}

// Source is a readable PCM stream, e.g. a microphone capture FIFO.
type Source interface {
	io.Reader

	// Format returns the PCM format this source produces.
	Format() Format
}

// Sink is a writable PCM stream, e.g. a playback FIFO. Writes block until
// the consumer accepts the audio, which is what lets TTS providers report
// playback completion.
type Sink interface {
	io.Writer

	// Format returns the PCM format this sink expects.
	Format() Format
}

// FileSource wraps an open file (regular file, FIFO, or /dev/stdin) as a
// [Source] with a fixed format.
type FileSource struct {
	F   *os.File
	Fmt Format
}

func (s *FileSource) Read(p []byte) (int, error) { return s.F.Read(p) }

// Format implements [Source].
func (s *FileSource) Format() Format { return s.Fmt }

// FileSink wraps an open file as a [Sink] with a fixed format.
type FileSink struct {
	F   *os.File
	Fmt Format
}

func (s *FileSink) Write(p []byte) (int, error) { return s.F.Write(p) }

// Format implements [Sink].
func (s *FileSink) Format() Format { return s.Fmt }
