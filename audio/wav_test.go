package audio

import (
	"math"
	"testing"

	"github.com/skillsenselab/scribe/errors"
)

func sineSamples(seconds float64, rate int) []int16 {
	n := int(seconds * float64(rate))
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return samples
}

func TestEncodeDecodeWAV(t *testing.T) {
	original := sineSamples(2, TargetSampleRate)
	data, err := EncodeWAV(original, TargetSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}

	decoded, rate, channels, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if rate != TargetSampleRate {
		t.Errorf("rate = %d, want %d", rate, TargetSampleRate)
	}
	if channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if len(decoded) != len(original) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Fatalf("sample %d = %d, want %d", i, decoded[i], original[i])
		}
	}
}

func TestDuration(t *testing.T) {
	data, err := EncodeWAV(sineSamples(3.5, TargetSampleRate), TargetSampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	d, err := Duration(data)
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if math.Abs(d-3.5) > 0.001 {
		t.Errorf("Duration() = %f, want 3.5", d)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte("RIFF")},
		{"not riff", make([]byte, 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := DecodeWAV(tt.data)
			if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("want invalid input error, got %v", err)
			}
		})
	}
}

func TestDownmix(t *testing.T) {
	stereo := []int16{100, 200, -100, -200, 0, 50}
	mono := Downmix(stereo, 2)
	want := []int16{150, -150, 25}
	if len(mono) != len(want) {
		t.Fatalf("got %d samples, want %d", len(mono), len(want))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, mono[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	in := sineSamples(1, 8000)
	out := Resample(in, 8000, TargetSampleRate)
	if got, want := len(out), TargetSampleRate; got != want {
		t.Errorf("resampled length = %d, want %d", got, want)
	}
	// Same rate passes through untouched.
	same := Resample(in, 8000, 8000)
	if &same[0] != &in[0] {
		t.Error("same-rate resample should not copy")
	}
}

func TestNormalize_StereoHighRate(t *testing.T) {
	// Hand-build a 2-channel 32 kHz file and check it lands at 16 kHz mono.
	rate := 32000
	frames := rate // 1 second
	interleaved := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		v := int16(4000 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
		interleaved[i*2] = v
		interleaved[i*2+1] = v
	}
	data, err := encodeInterleaved(interleaved, rate, 2)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	mono, err := Normalize(data)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got, want := len(mono), TargetSampleRate; got != want {
		t.Errorf("normalized length = %d, want %d", got, want)
	}
}

// encodeInterleaved builds a WAV file with an arbitrary channel count for
// decoder tests. The production encoder only writes mono.
func encodeInterleaved(samples []int16, rate, channels int) ([]byte, error) {
	data, err := EncodeWAV(samples, rate)
	if err != nil {
		return nil, err
	}
	// Patch channel count, byte rate, and block align in place.
	data[22] = byte(channels)
	byteRate := uint32(rate * channels * 2)
	data[28] = byte(byteRate)
	data[29] = byte(byteRate >> 8)
	data[30] = byte(byteRate >> 16)
	data[31] = byte(byteRate >> 24)
	blockAlign := uint16(channels * 2)
	data[32] = byte(blockAlign)
	data[33] = byte(blockAlign >> 8)
	return data, nil
}
