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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// AudioInfo is an immutable metadata snapshot of one audio file,
// produced by probing and consumed to decide transcode/chunk necessity
type AudioInfo struct {
	Duration   float64 // Seconds
	Size       int64   // Bytes
	Format     string  // Container format name
	Codec      string  // Audio codec name
	SampleRate int
	Channels   int
	Bitrate    int // Bits per second
}

// AudioProcessor probes, transcodes and chunks audio files with ffmpeg
type AudioProcessor struct {
	maxSizeBytes int64
}

// NewAudioProcessor creates an audio processor with the given provider
// upload size limit in bytes
func NewAudioProcessor(maxSizeBytes int64) *AudioProcessor {
	return &AudioProcessor{maxSizeBytes: maxSizeBytes}
}

// ProbeFile reads audio metadata using ffprobe
func (ap *AudioProcessor) ProbeFile(ctx context.Context, filePath string) (*AudioInfo, error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed: %v, stderr: %s", ErrProbeFailed, err, stderr.String())
	}

	var probe struct {
		Format struct {
			FormatName string `json:"format_name"`
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
		} `json:"format"`
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return nil, fmt.Errorf("%w: cannot parse ffprobe output: %v", ErrProbeFailed, err)
	}

	info := &AudioInfo{
		Size:   stat.Size(),
		Format: probe.Format.FormatName,
	}
	info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	info.Bitrate, _ = strconv.Atoi(probe.Format.BitRate)

	found := false
	for _, stream := range probe.Streams {
		if stream.CodecType == "audio" {
			info.Codec = stream.CodecName
			info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
			info.Channels = stream.Channels
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no audio stream found in %s", ErrProbeFailed, filePath)
	}

	return info, nil
}

// ExceedsLimit reports whether a probed file is too large to upload to
// the provider in one request
func (ap *AudioProcessor) ExceedsLimit(info *AudioInfo) bool {
	return NeedsSplitting(info, ap.maxSizeBytes)
}

// Transcode re-encodes an audio file to Opus 16kHz mono at a low
// bitrate, the cheapest way to bring an oversized file under the
// provider limit with a single request-response round trip
func (ap *AudioProcessor) Transcode(ctx context.Context, inputPath string, outputPath string) error {
	args := []string{
		"-y", "-loglevel", "error",
		"-i", inputPath,
		"-c:a", "libopus",
		"-b:a", "48k",
		"-ar", "16000",
		"-ac", "1",
		"-f", "ogg",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v, stderr: %s", ErrTranscodeFailed, err, stderr.String())
	}

	return nil
}

// CreateChunks extracts the planned windows of a source file into
// individual Opus files under outputDir, named chunk_<index>.ogg.
// Already-created chunk files are removed when any extraction fails
func (ap *AudioProcessor) CreateChunks(ctx context.Context, inputPath string, outputDir string, windows []ChunkWindow) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0770); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChunkFailed, err)
	}

	paths := []string{}

	for _, window := range windows {
		outputPath := filepath.Join(outputDir, fmt.Sprintf("chunk_%d.ogg", window.Index))

		args := []string{
			"-y", "-loglevel", "error",
			"-ss", formatFFmpegTime(window.Start),
			"-t", formatFFmpegTime(window.Duration),
			"-i", inputPath,
			"-c:a", "libopus",
			"-b:a", "48k",
			"-ar", "16000",
			"-ac", "1",
			"-f", "ogg",
			outputPath,
		}

		cmd := exec.CommandContext(ctx, "ffmpeg", args...)

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			ap.Cleanup(paths)
			return nil, fmt.Errorf("%w: chunk %d: %v, stderr: %s", ErrChunkFailed, window.Index, err, stderr.String())
		}

		paths = append(paths, outputPath)
	}

	return paths, nil
}

// BufferToWAV wraps raw 16-bit little-endian PCM in a WAV container by
// piping it through ffmpeg, for live windows sent to the provider
func (ap *AudioProcessor) BufferToWAV(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	args := []string{
		"-y", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"pipe:1",
	}

	cmd := exec.Command("ffmpeg", args...)
	cmd.Stdin = bytes.NewReader(pcm)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg wav conversion failed: %v, stderr: %s", ErrTranscodeFailed, err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no output", ErrTranscodeFailed)
	}

	return stdout.Bytes(), nil
}

// Cleanup removes temporary files, logging failures but never failing
func (ap *AudioProcessor) Cleanup(filePaths []string) {
	for _, filePath := range filePaths {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to cleanup %s: %v", filePath, err)
		}
	}
}

// DetectMimeType sniffs the container of an audio file and returns its
// MIME type. Metadata-based detection catches files whose extension
// lies about their contents; the extension is the fallback
func DetectMimeType(filePath string) string {
	if f, err := os.Open(filePath); err == nil {
		defer f.Close()
		if _, fileType, err := tag.Identify(f); err == nil {
			switch fileType {
			case tag.MP3:
				return "audio/mpeg"
			case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
				return "audio/mp4"
			case tag.FLAC:
				return "audio/flac"
			case tag.OGG:
				return "audio/ogg"
			}
		}
	}

	return mimeTypeForExtension(filepath.Ext(filePath))
}

func mimeTypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}

// formatFFmpegTime renders seconds for ffmpeg -ss/-t arguments
func formatFFmpegTime(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
