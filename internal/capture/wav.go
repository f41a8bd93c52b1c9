package capture

import (
	"encoding/binary"
	"math"
)

// WAVMimeType is the MIME type of EncodeWAV output.
const WAVMimeType = "audio/wav"

// EncodeWAV wraps S16LE PCM in a canonical 44 byte RIFF/WAVE header.
func EncodeWAV(pcm []byte, f Format) []byte {
	const headerLen = 44
	out := make([]byte, headerLen+len(pcm))

	blockAlign := f.Channels * 2
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+len(pcm)))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(out[20:], 1)  // linear PCM
	binary.LittleEndian.PutUint16(out[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(f.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(len(pcm)))
	copy(out[headerLen:], pcm)

	return out
}

// RMS returns the root mean square energy of S16LE PCM, in [0, 1].
func RMS(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(samples))
}
