package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const waveHeaderSize = 44

// WaveSource reads 16-bit LE PCM audio blocks from a RIFF WAVE file,
// standing in for the microphone in file-driven runs.
type WaveSource struct {
	f         *os.File
	rate      int32
	blockSize int
	done      bool
}

var _ Source = (*WaveSource)(nil)

// OpenWaveSource opens path and validates its WAVE header. The file's own
// sample rate is used.
func OpenWaveSource(path string, blockSize int) (*WaveSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input audio file: %w", err)
	}

	var header [waveHeaderSize]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read WAVE header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		f.Close()
		return nil, fmt.Errorf("%s is not a RIFF WAVE file", path)
	}
	if bits := binary.LittleEndian.Uint16(header[34:36]); bits != 16 {
		f.Close()
		return nil, fmt.Errorf("unsupported sample width: %d bits", bits)
	}
	rate := binary.LittleEndian.Uint32(header[24:28])

	return &WaveSource{
		f:         f,
		rate:      int32(rate),
		blockSize: blockSize,
	}, nil
}

func (w *WaveSource) Start() error { return nil }
func (w *WaveSource) Stop() error  { return nil }

// Read returns the next block of samples, padding a trailing partial
// sample with silence. It reports io.EOF once the file is exhausted.
func (w *WaveSource) Read() ([]byte, error) {
	if w.done {
		return nil, io.EOF
	}
	buf := make([]byte, w.blockSize)
	n, err := io.ReadFull(w.f, buf)
	if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
		w.done = true
		return nil, io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		w.done = true
		return alignBuf(buf[:n]), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input audio file: %w", err)
	}
	return buf, nil
}

func (w *WaveSource) SampleRate() int32 {
	return w.rate
}

func (w *WaveSource) Close() error {
	return w.f.Close()
}

// WaveSink writes played-back audio to a RIFF WAVE file, standing in for
// the speaker in file-driven runs.
type WaveSink struct {
	f    *os.File
	rate int32
	size uint32
}

var _ Sink = (*WaveSink)(nil)

// CreateWaveSink creates path with a WAVE header for 16-bit mono PCM at
// the given sample rate. The header sizes are fixed up on Close.
func CreateWaveSink(path string, sampleRate int32) (*WaveSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output audio file: %w", err)
	}
	w := &WaveSink{f: f, rate: sampleRate}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *WaveSink) Start() error { return nil }
func (w *WaveSink) Stop() error  { return nil }

func (w *WaveSink) Write(p []byte) error {
	n, err := w.f.Write(p)
	w.size += uint32(n)
	if err != nil {
		return fmt.Errorf("failed to write output audio file: %w", err)
	}
	return nil
}

func (w *WaveSink) SampleRate() int32 {
	return w.rate
}

// Close rewrites the header with the final data size and closes the file.
func (w *WaveSink) Close() error {
	if _, err := w.f.Seek(0, io.SeekStart); err == nil {
		_ = w.writeHeader()
	}
	return w.f.Close()
}

func (w *WaveSink) writeHeader() error {
	var header [waveHeaderSize]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+w.size)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.rate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(w.rate)*DefaultSampleWidth)
	binary.LittleEndian.PutUint16(header[32:34], DefaultSampleWidth)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], w.size)

	if _, err := w.f.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write WAVE header: %w", err)
	}
	return nil
}
