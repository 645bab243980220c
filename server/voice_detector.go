// Copyright (C) 2025 Thinline Dynamic Solutions
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>

package main

import (
	"encoding/binary"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// VoiceDetector decides whether a raw PCM window contains speech, so
// silent live windows never hit the transcription provider. Detection
// is spectral: energy inside the telephony speech band relative to the
// whole spectrum, over an absolute noise floor.
type VoiceDetector struct {
	SampleRate    int
	WindowSize    int     // FFT window size
	SpeechBandMin float64 // Hz
	SpeechBandMax float64 // Hz
	MinRMS        float64 // Absolute floor below which a window is silence
	MinBandRatio  float64 // Speech-band share of total spectral energy
}

// NewVoiceDetector creates a detector with defaults suited to 16kHz
// mono voice audio
func NewVoiceDetector(sampleRate int) *VoiceDetector {
	return &VoiceDetector{
		SampleRate:    sampleRate,
		WindowSize:    2048,
		SpeechBandMin: 300.0,
		SpeechBandMax: 3400.0,
		MinRMS:        0.01,
		MinBandRatio:  0.35,
	}
}

// HasSpeech analyzes a 16-bit little-endian PCM buffer and reports
// whether any analysis window looks like speech
func (detector *VoiceDetector) HasSpeech(pcm []byte) bool {
	samples := pcmToSamples(pcm)
	if len(samples) == 0 {
		return false
	}

	windowSize := detector.WindowSize
	if len(samples) < windowSize {
		windowSize = len(samples)
	}

	hopSize := windowSize / 2
	if hopSize == 0 {
		hopSize = 1
	}

	for start := 0; start+windowSize <= len(samples); start += hopSize {
		if detector.windowHasSpeech(samples[start : start+windowSize]) {
			return true
		}
	}

	// Short buffers may never complete a full hop.
	if len(samples) < detector.WindowSize {
		return detector.windowHasSpeech(samples)
	}

	return false
}

func (detector *VoiceDetector) windowHasSpeech(window []float64) bool {
	rms := 0.0
	for _, sample := range window {
		rms += sample * sample
	}
	rms = math.Sqrt(rms / float64(len(window)))

	if rms < detector.MinRMS {
		return false
	}

	// Hann window to reduce spectral leakage.
	windowed := make([]float64, len(window))
	for i, sample := range window {
		hann := 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(len(window)-1)))
		windowed[i] = sample * hann
	}

	fft := fourier.NewFFT(len(windowed))
	coeff := fft.Coefficients(nil, windowed)

	binWidth := float64(detector.SampleRate) / float64(len(windowed))

	totalEnergy := 0.0
	bandEnergy := 0.0

	for k := 1; k < len(coeff); k++ {
		magnitude := cmplx.Abs(coeff[k])
		energy := magnitude * magnitude
		totalEnergy += energy

		frequency := float64(k) * binWidth
		if frequency >= detector.SpeechBandMin && frequency <= detector.SpeechBandMax {
			bandEnergy += energy
		}
	}

	if totalEnergy == 0 {
		return false
	}

	return bandEnergy/totalEnergy >= detector.MinBandRatio
}

// pcmToSamples converts 16-bit little-endian PCM to normalized float64
// samples in [-1, 1]
func pcmToSamples(pcm []byte) []float64 {
	sampleCount := len(pcm) / 2
	samples := make([]float64, sampleCount)
	for i := 0; i < sampleCount; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float64(sample) / 32768.0
	}
	return samples
}
