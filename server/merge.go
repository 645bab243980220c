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
	"fmt"
	"math"
	"sort"
	"strings"
)

// Word-set similarity above this threshold marks two temporally
// overlapping segments as duplicates of each other.
const duplicateSimilarityThreshold = 0.7

// Maximum words per rendered VTT cue.
const maxCueWords = 8

// MergeChunks stitches the per-chunk transcripts of one file into a
// single global timeline. Each result is in chunk-local time; chunk i is
// re-based by i*(chunkDuration-overlap). For every chunk after the
// first, segments starting inside the overlap-with-previous region are
// dropped, on the assumption that the previous chunk's tail already
// covers them. The drop is purely time-based; the final deduplication
// pass catches similar-text leftovers that slip past it.
func MergeChunks(results []*TranscriptionResult, chunkDuration float64, overlap float64) []Segment {
	if len(results) == 0 {
		return []Segment{}
	}
	if len(results) == 1 {
		return ExtractSegments(results[0])
	}

	merged := []Segment{}
	offset := 0.0

	for i, result := range results {
		segments := ExtractSegments(result)

		for _, segment := range segments {
			// Chunks after the first skip the overlap region.
			if i > 0 && segment.Start < overlap {
				continue
			}

			merged = append(merged, Segment{
				Start: segment.Start + offset,
				End:   segment.End + offset,
				Text:  segment.Text,
			})
		}

		offset += chunkDuration - overlap
	}

	return DeduplicateSegments(merged)
}

// DeduplicateSegments removes near-duplicate segments from a merged
// timeline. Segments are sorted by start time (stable, preserving the
// original order on ties) and walked left to right; a segment is
// dropped when it temporally overlaps the last kept segment and its
// text is more than 70% similar. Non-similar overlapping segments both
// survive, so the output is sorted but not guaranteed overlap-free.
func DeduplicateSegments(segments []Segment) []Segment {
	if len(segments) == 0 {
		return []Segment{}
	}

	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	deduplicated := []Segment{sorted[0]}

	for _, current := range sorted[1:] {
		last := deduplicated[len(deduplicated)-1]

		if current.Start < last.End && TextSimilarity(current.Text, last.Text) > duplicateSimilarityThreshold {
			continue
		}

		deduplicated = append(deduplicated, current)
	}

	return deduplicated
}

// TextSimilarity computes the Jaccard similarity of the lowercase word
// sets of two strings. Returns a value in [0, 1]; two empty strings
// score 0.
func TextSimilarity(a string, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	intersection := 0
	for word := range wordsA {
		if _, ok := wordsB[word]; ok {
			intersection++
		}
	}

	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		set[word] = struct{}{}
	}
	return set
}

// ToText flattens segments into a single plain-text transcript,
// joining segment texts with single spaces.
func ToText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		parts = append(parts, segment.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ToVTT renders segments as WebVTT. Each segment is split into cues of
// at most 8 words; the segment's time range is divided evenly across
// its cues. Cue identifiers are "<segment>.<cue>", both one-based.
// An empty segment list yields the header and blank line only.
func ToVTT(segments []Segment) string {
	var vtt strings.Builder
	vtt.WriteString("WEBVTT\n\n")

	for i, segment := range segments {
		cues := splitIntoCues(segment.Text, maxCueWords)
		duration := segment.End - segment.Start
		step := duration / float64(len(cues))

		for j, cue := range cues {
			cueStart := segment.Start + float64(j)*step
			cueEnd := segment.Start + float64(j+1)*step
			if cueEnd > segment.End {
				cueEnd = segment.End
			}

			vtt.WriteString(fmt.Sprintf("%d.%d\n", i+1, j+1))
			vtt.WriteString(fmt.Sprintf("%s --> %s\n", FormatVTTTimestamp(cueStart), FormatVTTTimestamp(cueEnd)))
			vtt.WriteString(cue)
			vtt.WriteString("\n\n")
		}
	}

	return vtt.String()
}

// splitIntoCues greedily groups the words of a text into runs of at
// most maxWords, left to right.
func splitIntoCues(text string, maxWords int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	cues := []string{}
	for i := 0; i < len(words); i += maxWords {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		cues = append(cues, strings.Join(words[i:end], " "))
	}

	return cues
}

// FormatVTTTimestamp renders seconds as HH:MM:SS.mmm, zero padded.
// Fractional milliseconds are truncated, not rounded, so 59.9996
// renders as 00:00:59.999 and only exactly 60.0 rolls the minute.
func FormatVTTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	hours := int(seconds / 3600)
	minutes := int(math.Mod(seconds, 3600) / 60)
	secs := int(math.Mod(seconds, 60))
	millis := int(math.Mod(seconds, 1) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
