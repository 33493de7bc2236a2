package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Microphone captures 16-bit LE PCM audio from the default input device.
type Microphone struct {
	stream *portaudio.Stream
	buffer []int16
	rate   int32

	mu      sync.Mutex
	started bool
}

var _ Source = (*Microphone)(nil)

// NewMicrophone opens the default capture device at the given sample rate,
// producing blockSize byte blocks.
func NewMicrophone(sampleRate int32, blockSize int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	m := &Microphone{
		buffer: make([]int16, blockSize/DefaultSampleWidth),
		rate:   sampleRate,
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(m.buffer), m.buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}
	m.stream = stream
	return m, nil
}

func (m *Microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	if err := m.stream.Start(); err != nil {
		return err
	}
	m.started = true
	return nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	return m.stream.Stop()
}

// Read blocks until the next block of samples has been captured.
func (m *Microphone) Read() ([]byte, error) {
	if err := m.stream.Read(); err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	out := make([]byte, len(m.buffer)*DefaultSampleWidth)
	for i, sample := range m.buffer {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(sample))
	}
	return out, nil
}

func (m *Microphone) SampleRate() int32 {
	return m.rate
}

func (m *Microphone) Close() error {
	err := m.stream.Close()
	portaudio.Terminate()
	return err
}

// Speaker plays 16-bit LE PCM audio through the default output device.
type Speaker struct {
	stream    *portaudio.Stream
	buffer    []int16
	rate      int32
	flushSize int

	mu      sync.Mutex
	started bool
}

var _ Sink = (*Speaker)(nil)

// NewSpeaker opens the default playback device at the given sample rate,
// writing blockSize byte blocks. flushSize bytes of silence are written
// when playback stops so the device does not clip the response tail.
func NewSpeaker(sampleRate int32, blockSize, flushSize int) (*Speaker, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	s := &Speaker{
		buffer:    make([]int16, blockSize/DefaultSampleWidth),
		rate:      sampleRate,
		flushSize: flushSize,
	}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(s.buffer), s.buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open playback stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

func (s *Speaker) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.flushLocked()
	s.started = false
	return s.stream.Stop()
}

// Write blocks until every sample in p has been handed to the device.
func (s *Speaker) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.New("speaker not started")
	}
	for off := 0; off < len(p); off += len(s.buffer) * DefaultSampleWidth {
		end := off + len(s.buffer)*DefaultSampleWidth
		if end > len(p) {
			end = len(p)
		}
		block := p[off:end]
		n := len(block) / DefaultSampleWidth
		for i := 0; i < n; i++ {
			s.buffer[i] = int16(binary.LittleEndian.Uint16(block[i*2 : i*2+2]))
		}
		for i := n; i < len(s.buffer); i++ {
			s.buffer[i] = 0
		}
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
	}
	return nil
}

func (s *Speaker) flushLocked() {
	for i := range s.buffer {
		s.buffer[i] = 0
	}
	blocks := s.flushSize / (len(s.buffer) * DefaultSampleWidth)
	for i := 0; i < blocks; i++ {
		if err := s.stream.Write(); err != nil {
			return
		}
	}
}

func (s *Speaker) SampleRate() int32 {
	return s.rate
}

func (s *Speaker) Close() error {
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}
