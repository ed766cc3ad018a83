package audio

import (
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container suitable for multipart upload to a transcription
// service.
func EncodeWAV(pcm PCM) []byte {
	sampleRate := pcm.SampleRate
	channels := pcm.Channels
	byteRate := sampleRate * channels * BitsPerSample / 8
	blockAlign := channels * BitsPerSample / 8
	dataSize := len(pcm.Data)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(BitsPerSample))

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm.Data)

	return buf
}

// DecodeWAV extracts the PCM payload and format from a RIFF/WAV buffer.
// Only uncompressed 16-bit PCM files are accepted; anything else is reported
// as a conversion problem rather than parsed speculatively.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) < wavHeaderSize {
		return PCM{}, fmt.Errorf("%w: wav file truncated (%d bytes)", ErrConversionFailed, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrConversionFailed)
	}
	format := binary.LittleEndian.Uint16(data[20:22])
	if format != 1 {
		return PCM{}, fmt.Errorf("%w: wav audio format %d is not PCM", ErrConversionFailed, format)
	}
	bits := binary.LittleEndian.Uint16(data[34:36])
	if bits != BitsPerSample {
		return PCM{}, fmt.Errorf("%w: wav is %d-bit, want %d-bit", ErrConversionFailed, bits, BitsPerSample)
	}

	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))

	// Walk the chunk list to the data chunk. Some encoders insert LIST or
	// fact chunks between fmt and data.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		if id == "data" {
			end := off + 8 + size
			if end > len(data) {
				end = len(data)
			}
			return PCM{
				Data:       data[off+8 : end],
				SampleRate: sampleRate,
				Channels:   channels,
			}, nil
		}
		off += 8 + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}
	return PCM{}, fmt.Errorf("%w: wav has no data chunk", ErrConversionFailed)
}
