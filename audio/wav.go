package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/skillsenselab/scribe/errors"
)

// TargetSampleRate is the sample rate all audio is normalized to before
// chunking. Speech models expect 16 kHz mono.
const TargetSampleRate = 16000

const headerSize = 44

// Header represents the 44-byte canonical WAV header.
type Header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// EncodeWAV encodes mono PCM-16 samples into WAV format.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, errors.InvalidInput("audio", "cannot encode empty sample buffer")
	}
	if sampleRate <= 0 {
		return nil, errors.InvalidInput("sample_rate", fmt.Sprintf("must be positive, got %d", sampleRate))
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("audio: write wav header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("audio: write wav data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV decodes WAV data into interleaved PCM-16 samples. Mono and
// stereo 16-bit PCM are accepted; anything else is rejected as invalid input.
func DecodeWAV(data []byte) (samples []int16, sampleRate, channels int, err error) {
	header, err := parseHeader(data)
	if err != nil {
		return nil, 0, 0, err
	}

	if header.AudioFormat != 1 {
		return nil, 0, 0, errors.InvalidInput("audio",
			fmt.Sprintf("unsupported wav format %d, only PCM is supported", header.AudioFormat))
	}
	if header.BitsPerSample != 16 {
		return nil, 0, 0, errors.InvalidInput("audio",
			fmt.Sprintf("unsupported bit depth %d, only 16-bit is supported", header.BitsPerSample))
	}
	if header.NumChannels != 1 && header.NumChannels != 2 {
		return nil, 0, 0, errors.InvalidInput("audio",
			fmt.Sprintf("unsupported channel count %d, only mono and stereo are supported", header.NumChannels))
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, 0, errors.InvalidInput("audio", "wav file contains no audio data")
	}
	if headerSize+numSamples*2 > len(data) {
		return nil, 0, 0, errors.InvalidInput("audio", "wav data chunk is truncated")
	}

	samples = make([]int16, numSamples)
	reader := bytes.NewReader(data[headerSize:])
	if err := binary.Read(reader, binary.LittleEndian, samples); err != nil {
		return nil, 0, 0, errors.InvalidInput("audio", "wav sample data is unreadable")
	}
	return samples, int(header.SampleRate), int(header.NumChannels), nil
}

// Duration returns the duration of a WAV file in seconds.
func Duration(data []byte) (float64, error) {
	header, err := parseHeader(data)
	if err != nil {
		return 0, err
	}
	if header.SampleRate == 0 || header.NumChannels == 0 {
		return 0, errors.InvalidInput("audio", "wav header has zero sample rate or channels")
	}
	frames := header.Subchunk2Size / (2 * uint32(header.NumChannels))
	return float64(frames) / float64(header.SampleRate), nil
}

// Downmix collapses interleaved multi-channel samples to mono by averaging.
// Mono input is returned unchanged.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

// Resample converts mono samples from one sample rate to another using
// linear interpolation. Adequate for speech going into a transcription
// model; not intended for music.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || len(samples) == 0 {
		return samples
	}
	ratio := float64(from) / float64(to)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		outLen = 1
	}
	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

// Normalize decodes WAV data and converts it to 16 kHz mono PCM-16,
// downmixing and resampling as needed.
func Normalize(data []byte) ([]int16, error) {
	samples, rate, channels, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	mono := Downmix(samples, channels)
	return Resample(mono, rate, TargetSampleRate), nil
}

func parseHeader(data []byte) (*Header, error) {
	if len(data) < headerSize {
		return nil, errors.InvalidInput("audio",
			fmt.Sprintf("wav data too short: need at least %d bytes, got %d", headerSize, len(data)))
	}
	var header Header
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, errors.InvalidInput("audio", "wav header is unreadable")
	}
	if string(header.ChunkID[:]) != "RIFF" {
		return nil, errors.InvalidInput("audio", "missing RIFF header")
	}
	if string(header.Format[:]) != "WAVE" {
		return nil, errors.InvalidInput("audio", "missing WAVE format marker")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, errors.InvalidInput("audio", "missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return nil, errors.InvalidInput("audio", "missing data chunk")
	}
	return &header, nil
}
