// Package sound plays decoded PCM audio streams on the local output
// device, independent of the conversation channel.
package sound

import "context"

// Player plays a stream of 16-bit LE stereo PCM chunks.
type Player interface {
	// PlayStream plays chunks received from audioData at sampleRate
	// until the channel closes or the context is cancelled.
	PlayStream(ctx context.Context, sampleRate int, audioData <-chan []byte) error
}
