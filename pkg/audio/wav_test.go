package audio

import (
	"encoding/binary"
	"testing"
)

// buildWAV assembles a minimal RIFF/WAVE container around pcm with the given
// format, optionally inserting extra chunks before fmt/data.
func buildWAV(sampleRate, channels int, pcm []byte, leadingChunks ...[]byte) []byte {
	var body []byte
	for _, c := range leadingChunks {
		body = append(body, c...)
	}

	fmtChunk := make([]byte, 8+16)
	copy(fmtChunk[0:4], "fmt ")
	binary.LittleEndian.PutUint32(fmtChunk[4:8], 16)
	binary.LittleEndian.PutUint16(fmtChunk[8:10], 1) // PCM
	binary.LittleEndian.PutUint16(fmtChunk[10:12], uint16(channels))
	binary.LittleEndian.PutUint32(fmtChunk[12:16], uint32(sampleRate))
	body = append(body, fmtChunk...)

	dataChunk := make([]byte, 8, 8+len(pcm))
	copy(dataChunk[0:4], "data")
	binary.LittleEndian.PutUint32(dataChunk[4:8], uint32(len(pcm)))
	dataChunk = append(dataChunk, pcm...)
	body = append(body, dataChunk...)

	wav := make([]byte, 12, 12+len(body))
	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(4+len(body)))
	copy(wav[8:12], "WAVE")
	return append(wav, body...)
}

func chunk(id string, payload []byte) []byte {
	c := make([]byte, 8, 8+len(payload))
	copy(c[0:4], id)
	binary.LittleEndian.PutUint32(c[4:8], uint32(len(payload)))
	c = append(c, payload...)
	if len(payload)%2 != 0 {
		c = append(c, 0) // word alignment pad
	}
	return c
}

func TestParseWAV(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0x02, 0x00}
	wav := buildWAV(22050, 1, pcm)

	info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV() = %v", err)
	}
	if info.SampleRate != 22050 || info.Channels != 1 {
		t.Errorf("format = %d Hz / %d ch", info.SampleRate, info.Channels)
	}
	if got := wav[info.DataOffset:]; len(got) != len(pcm) || got[0] != 0x01 {
		t.Errorf("DataOffset = %d points at %v", info.DataOffset, got)
	}
}

func TestParseWAVSkipsExtraChunks(t *testing.T) {
	// Real encoder output often carries LIST/INFO metadata before the data
	// chunk, including odd-sized payloads that force alignment padding.
	wav := buildWAV(44100, 2, []byte{0, 0},
		chunk("LIST", []byte("INFOsoftware")),
		chunk("junk", []byte{1, 2, 3}), // odd size, padded
	)

	info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV() = %v", err)
	}
	if info.SampleRate != 44100 || info.Channels != 2 {
		t.Errorf("format = %d Hz / %d ch", info.SampleRate, info.Channels)
	}
}

func TestParseWAVErrors(t *testing.T) {
	tests := []struct {
		name string
		wav  []byte
	}{
		{"empty", nil},
		{"too short", []byte("RIFF")},
		{"not RIFF", append([]byte("JUNK\x00\x00\x00\x00WAVE"), make([]byte, 32)...)},
		{"not WAVE", append([]byte("RIFF\x00\x00\x00\x00JUNK"), make([]byte, 32)...)},
		{"no data chunk", buildWAV(22050, 1, nil)[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseWAV(tt.wav); err == nil {
				t.Error("ParseWAV() = nil error")
			}
		})
	}
}

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestResampleMono16Identity(t *testing.T) {
	in := pcm16(100, 200, 300)
	out := ResampleMono16(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("same-rate resample should return the input unchanged")
	}
}

func TestResampleMono16Downsample(t *testing.T) {
	in := pcm16(0, 100, 200, 300, 400, 500, 600, 700)
	out := ResampleMono16(in, 32000, 16000)

	if len(out) != len(in)/2 {
		t.Fatalf("len = %d, want %d", len(out), len(in)/2)
	}
	// Halving the rate keeps every other sample exactly.
	for i := 0; i < len(out)/2; i++ {
		got := int16(binary.LittleEndian.Uint16(out[i*2:]))
		want := int16(i * 200)
		if got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestResampleMono16Upsample(t *testing.T) {
	in := pcm16(0, 1000)
	out := ResampleMono16(in, 11025, 22050)

	if len(out) != 8 { // 2 samples -> 4 samples, 2 bytes each
		t.Fatalf("len = %d, want 8", len(out))
	}
	// Linear interpolation midpoint between 0 and 1000.
	mid := int16(binary.LittleEndian.Uint16(out[2:]))
	if mid != 500 {
		t.Errorf("interpolated sample = %d, want 500", mid)
	}
}

func TestResampleMono16Empty(t *testing.T) {
	if out := ResampleMono16(nil, 22050, 16000); len(out) != 0 {
		t.Errorf("resampling nil produced %d bytes", len(out))
	}
}
