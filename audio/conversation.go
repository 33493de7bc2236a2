package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
)

// ConversationStream combines an audio source and sink into the channel a
// conversation turn is recorded from and played back to. Mode transitions
// are driven by the caller; once recording stops, Read drains the pending
// block and reports io.EOF so request iteration terminates.
type ConversationStream struct {
	source Source
	sink   Sink

	iterSize int

	mu        sync.RWMutex
	recording bool
	playing   bool
	volume    int32
	pending   []byte
	closed    bool
}

var _ Channel = (*ConversationStream)(nil)

// NewConversationStream creates a conversation stream reading iterSize
// byte chunks from source and playing responses to sink at the given
// initial volume percentage.
func NewConversationStream(source Source, sink Sink, iterSize int, volume int32) *ConversationStream {
	if iterSize <= 0 {
		iterSize = DefaultIterSize
	}
	if volume <= 0 {
		volume = 50
	}
	return &ConversationStream{
		source:   source,
		sink:     sink,
		iterSize: iterSize,
		volume:   volume,
	}
}

func (c *ConversationStream) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording {
		return nil
	}
	if err := c.source.Start(); err != nil {
		return fmt.Errorf("failed to start audio source: %w", err)
	}
	c.recording = true
	c.pending = nil
	return nil
}

func (c *ConversationStream) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording {
		return nil
	}
	c.recording = false
	if err := c.source.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio source: %w", err)
	}
	return nil
}

func (c *ConversationStream) StartPlayback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return nil
	}
	if err := c.sink.Start(); err != nil {
		return fmt.Errorf("failed to start audio sink: %w", err)
	}
	c.playing = true
	return nil
}

func (c *ConversationStream) StopPlayback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return nil
	}
	c.playing = false
	if err := c.sink.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio sink: %w", err)
	}
	return nil
}

func (c *ConversationStream) Recording() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recording
}

func (c *ConversationStream) Playing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playing
}

// Read returns the next chunk of recorded audio, at most iterSize bytes.
// It reports io.EOF once recording has stopped or the source is exhausted.
func (c *ConversationStream) Read() ([]byte, error) {
	for {
		c.mu.Lock()
		if !c.recording && len(c.pending) == 0 {
			c.mu.Unlock()
			return nil, io.EOF
		}
		if len(c.pending) > 0 {
			n := c.iterSize
			if n > len(c.pending) {
				n = len(c.pending)
			}
			chunk := c.pending[:n]
			c.pending = c.pending[n:]
			c.mu.Unlock()
			return chunk, nil
		}
		c.mu.Unlock()

		block, err := c.source.Read()
		if err == io.EOF {
			// File sources run dry before recording is stopped
			// explicitly.
			_ = c.StopRecording()
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.pending = append(c.pending, block...)
		c.mu.Unlock()
	}
}

// Write plays back one chunk of response audio, scaled to the current
// volume. Chunks are written to the sink in call order.
func (c *ConversationStream) Write(p []byte) error {
	c.mu.RLock()
	volume := c.volume
	c.mu.RUnlock()
	return c.sink.Write(scaleVolume(alignBuf(p), volume))
}

func (c *ConversationStream) SampleRate() int32 {
	return c.source.SampleRate()
}

func (c *ConversationStream) Volume() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

func (c *ConversationStream) SetVolume(v int32) {
	if v < 0 || v > 100 {
		return
	}
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
}

// Close releases the source and sink. Only the first call has effect.
func (c *ConversationStream) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	srcErr := c.source.Close()
	sinkErr := c.sink.Close()
	if srcErr != nil {
		return srcErr
	}
	return sinkErr
}

// alignBuf pads a buffer with a zero byte if it does not end on a 16-bit
// sample boundary.
func alignBuf(p []byte) []byte {
	if len(p)%DefaultSampleWidth == 0 {
		return p
	}
	return append(append([]byte(nil), p...), 0)
}

// scaleVolume scales 16-bit LE samples by an exponential loudness curve so
// 100% maps to unity gain.
func scaleVolume(p []byte, volume int32) []byte {
	scale := math.Pow(2, float64(volume)/100) - 1
	out := make([]byte, len(p))
	for i := 0; i+1 < len(p); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(p[i : i+2]))
		binary.LittleEndian.PutUint16(out[i:i+2], uint16(int16(float64(sample)*scale)))
	}
	return out
}
