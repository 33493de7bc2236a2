package sound

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// PortaudioPlayer plays PCM streams through the default output device,
// opening a fresh stream per playback.
type PortaudioPlayer struct{}

var _ Player = (*PortaudioPlayer)(nil)

func NewPortaudioPlayer() *PortaudioPlayer {
	return &PortaudioPlayer{}
}

func (p *PortaudioPlayer) PlayStream(ctx context.Context, sampleRate int, audioData <-chan []byte) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	// Stereo interleaved buffer.
	buffer := make([]int16, framesPerBuffer*2)
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), framesPerBuffer, buffer)
	if err != nil {
		return fmt.Errorf("failed to open playback stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	bufferBytes := len(buffer) * 2
	var pending []byte
	writeBlock := func(block []byte) error {
		n := len(block) / 2
		for i := 0; i < n; i++ {
			buffer[i] = int16(binary.LittleEndian.Uint16(block[i*2 : i*2+2]))
		}
		for i := n; i < len(buffer); i++ {
			buffer[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-audioData:
			if !ok {
				if len(pending) > 0 {
					return writeBlock(pending)
				}
				return nil
			}
			pending = append(pending, chunk...)
			for len(pending) >= bufferBytes {
				if err := writeBlock(pending[:bufferBytes]); err != nil {
					return err
				}
				pending = pending[bufferBytes:]
			}
		}
	}
}
