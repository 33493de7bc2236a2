package assistant

import (
	"io"
	"sync"

	"github.com/d1nch8g/gassist/audio"
)

// fakeChannel is an in-memory audio channel that records every mode
// transition it is driven through.
type fakeChannel struct {
	mu        sync.Mutex
	chunks    [][]byte
	events    []string
	written   [][]byte
	recording bool
	playing   bool
	volume    int32
	closes    int
	closeErr  error
}

var _ audio.Channel = (*fakeChannel)(nil)

func newFakeChannel(chunks ...[]byte) *fakeChannel {
	return &fakeChannel{chunks: chunks, volume: 50}
}

func (f *fakeChannel) event(name string) {
	f.events = append(f.events, name)
}

func (f *fakeChannel) StartRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recording {
		f.recording = true
		f.event("start-recording")
	}
	return nil
}

func (f *fakeChannel) StopRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recording {
		f.recording = false
		f.event("stop-recording")
	}
	return nil
}

func (f *fakeChannel) StartPlayback() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.playing {
		f.playing = true
		f.event("start-playback")
	}
	return nil
}

func (f *fakeChannel) StopPlayback() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playing {
		f.playing = false
	}
	f.event("stop-playback")
	return nil
}

func (f *fakeChannel) Recording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

func (f *fakeChannel) Playing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeChannel) Read() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recording || len(f.chunks) == 0 {
		return nil, io.EOF
	}
	chunk := f.chunks[0]
	f.chunks = f.chunks[1:]
	return chunk, nil
}

func (f *fakeChannel) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk := make([]byte, len(p))
	copy(chunk, p)
	f.written = append(f.written, chunk)
	return nil
}

func (f *fakeChannel) SampleRate() int32 { return audio.DefaultSampleRate }

func (f *fakeChannel) Volume() int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeChannel) SetVolume(v int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	f.event("set-volume")
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}
