// Package tts synthesizes short spoken reports and plays them on the
// local speaker, outside the conversation audio channel.
package tts

import "context"

// Synthesizer turns text into audible speech.
type Synthesizer interface {
	// Say synthesizes text and plays it, blocking until playback ends.
	Say(ctx context.Context, text string) error
}

// Silent is a synthesizer that produces no speech. Used when synthesis
// is disabled or unavailable.
type Silent struct{}

var _ Synthesizer = Silent{}

func (Silent) Say(context.Context, string) error { return nil }
