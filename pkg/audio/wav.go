package audio

import (
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/m-mizutani/goerr/v2"
)

// WriteWAV stores mono float samples as a 16-bit PCM WAV file
func WriteWAV(path string, samples []float32, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("path", path))
	}

	f, err := os.Create(path)
	if err != nil {
		return goerr.Wrap(err, "failed to create wav file", goerr.V("path", path))
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return goerr.Wrap(err, "failed to encode wav", goerr.V("path", path))
	}
	if err := enc.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish wav", goerr.V("path", path))
	}
	return nil
}

// ReadWAV loads a mono 16-bit WAV file written by WriteWAV
func ReadWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to open wav file", goerr.V("path", path))
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, goerr.New("invalid wav file", goerr.V("path", path))
	}

	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to decode wav", goerr.V("path", path))
	}

	out := make([]float32, len(pb.Data))
	for i, v := range pb.Data {
		out[i] = float32(v) / 32768
	}
	return out, int(dec.SampleRate), nil
}
