// Package audio provides the audio sources, sinks and the conversation
// stream that the assistant records queries from and plays answers to.
package audio

// Default parameters for 16-bit linear PCM audio exchanged with the
// Assistant API.
const (
	DefaultSampleRate  = 16000
	DefaultSampleWidth = 2
	// DefaultBlockSize is the size in bytes of each audio device read and
	// write operation.
	DefaultBlockSize = 6400
	// DefaultIterSize is the size in bytes of each chunk handed to the
	// transport during stream iteration.
	DefaultIterSize = 3200
	// DefaultFlushSize is the size in bytes of silence written when a
	// playback stream is flushed.
	DefaultFlushSize = 25600
)

// Source produces blocks of recorded 16-bit LE PCM audio.
type Source interface {
	// Start begins audio capture.
	Start() error

	// Stop halts audio capture.
	Stop() error

	// Read returns the next block of captured audio. It blocks until a
	// block is available and returns io.EOF when the source is exhausted.
	Read() ([]byte, error)

	// SampleRate returns the capture sample rate in Hz.
	SampleRate() int32

	// Close releases the source.
	Close() error
}

// Sink consumes blocks of 16-bit LE PCM audio for playback.
type Sink interface {
	// Start begins audio playback.
	Start() error

	// Stop halts audio playback, flushing any buffered audio.
	Stop() error

	// Write plays back one block of audio, blocking until consumed.
	Write(p []byte) error

	// SampleRate returns the playback sample rate in Hz.
	SampleRate() int32

	// Close releases the sink.
	Close() error
}

// Channel is the bidirectional audio transport one conversation records
// from and plays back to. It is in exactly one of three modes at any
// instant: idle, recording or playing.
type Channel interface {
	StartRecording() error
	StopRecording() error
	StartPlayback() error
	StopPlayback() error

	// Recording reports whether the channel is capturing audio.
	Recording() bool

	// Playing reports whether the channel is playing audio.
	Playing() bool

	// Read returns the next chunk of recorded audio, or io.EOF once
	// recording has stopped.
	Read() ([]byte, error)

	// Write plays back a chunk of response audio at the current volume.
	Write(p []byte) error

	SampleRate() int32

	// Volume returns the playback volume percentage (0-100).
	Volume() int32

	// SetVolume sets the playback volume percentage (0-100).
	SetVolume(v int32)

	// Close releases the underlying source and sink.
	Close() error
}
