// Package audio provides format validation, normalisation, and segmentation
// for recorded session audio.
//
// Incoming recordings arrive in whatever container the browser or client
// produced (webm, mp3, m4a, wav, …). Before transcription every recording is
// normalised to the canonical format expected by the speech-to-text
// providers: 16 kHz mono 16-bit signed little-endian PCM in a WAV container.
// Conversion and segmentation shell out to ffmpeg; the rest of the package is
// pure Go.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// Canonical format constants for transcription input.
const (
	// SampleRate is the canonical sample rate in Hz.
	SampleRate = 16000

	// Channels is the canonical channel count (mono).
	Channels = 1

	// BitsPerSample is fixed at 16 for signed little-endian PCM.
	BitsPerSample = 16
)

// ErrUnsupportedFormat is returned when a recording's declared MIME type is
// not on the allow-list. No conversion or network activity happens in that case.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// ErrConversionFailed is returned when ffmpeg fails to convert a recording to
// the canonical format. No partial output is produced.
var ErrConversionFailed = errors.New("audio: conversion failed")

// mimeExtensions maps allowed MIME types to the file extension handed to
// ffmpeg so it can pick the right demuxer.
var mimeExtensions = map[string]string{
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/wav":   ".wav",
	"audio/wave":  ".wav",
	"audio/mp4":   ".mp4",
	"audio/x-m4a": ".m4a",
	"audio/webm":  ".webm",
}

// SupportedMIMEType reports whether mime is on the allow-list of recording
// formats accepted for transcription.
func SupportedMIMEType(mime string) bool {
	_, ok := mimeExtensions[mime]
	return ok
}

// Extension returns the file extension for an allowed MIME type, or
// ErrUnsupportedFormat when mime is not on the allow-list.
func Extension(mime string) (string, error) {
	ext, ok := mimeExtensions[mime]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, mime)
	}
	return ext, nil
}

// Recording is a raw audio blob as received from a client, before any
// normalisation. It is transient: once converted the raw bytes are discarded.
type Recording struct {
	// Data is the raw container bytes.
	Data []byte

	// MIMEType is the declared content type (e.g. "audio/webm").
	MIMEType string
}

// PCM is canonical normalised audio: 16 kHz mono s16le samples without a
// container. It is owned by the transcription client for the duration of one
// request.
type PCM struct {
	// Data holds the raw samples.
	Data []byte

	// SampleRate and Channels describe the sample layout. After
	// normalisation these always equal the canonical constants; they are
	// carried explicitly so WAV encoding never has to guess.
	SampleRate int
	Channels   int
}

// Duration returns the play time of the PCM buffer.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	bytesPerSec := p.SampleRate * p.Channels * (BitsPerSample / 8)
	return time.Duration(len(p.Data)) * time.Second / time.Duration(bytesPerSec)
}
