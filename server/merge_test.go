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
	"math"
	"strings"
	"testing"
)

func segmentsEqual(t *testing.T, got []Segment, want []Segment) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if math.Abs(got[i].Start-want[i].Start) > 1e-9 || math.Abs(got[i].End-want[i].End) > 1e-9 || got[i].Text != want[i].Text {
			t.Errorf("segment %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMergeChunksEmpty(t *testing.T) {
	merged := MergeChunks(nil, 90.0, 0.5)
	if len(merged) != 0 {
		t.Errorf("expected no segments, got %+v", merged)
	}
}

func TestMergeChunksSingle(t *testing.T) {
	result := &TranscriptionResult{
		Text: "hello world",
		Segments: []Segment{
			{Start: 0.0, End: 2.0, Text: "hello"},
			{Start: 2.0, End: 4.0, Text: "world"},
		},
	}

	merged := MergeChunks([]*TranscriptionResult{result}, 90.0, 0.5)
	segmentsEqual(t, merged, result.Segments)
}

func TestMergeChunksSingleWithoutSegments(t *testing.T) {
	result := &TranscriptionResult{Text: "hello world", Duration: 12.5}

	merged := MergeChunks([]*TranscriptionResult{result}, 90.0, 0.5)
	segmentsEqual(t, merged, []Segment{{Start: 0.0, End: 12.5, Text: "hello world"}})
}

func TestMergeChunksOffsetsAndOverlapDrop(t *testing.T) {
	first := &TranscriptionResult{
		Segments: []Segment{
			{Start: 0.0, End: 5.0, Text: "opening remarks"},
			{Start: 5.0, End: 89.75, Text: "long middle part"},
		},
	}
	second := &TranscriptionResult{
		Segments: []Segment{
			// Inside the overlap region, so it must be dropped.
			{Start: 0.25, End: 0.5, Text: "middle part"},
			{Start: 0.5, End: 5.0, Text: "second chunk content"},
		},
	}
	third := &TranscriptionResult{
		Segments: []Segment{
			{Start: 1.0, End: 4.0, Text: "third chunk content"},
		},
	}

	merged := MergeChunks([]*TranscriptionResult{first, second, third}, 90.0, 0.5)

	// Each chunk after the first is re-based by chunkDuration-overlap.
	segmentsEqual(t, merged, []Segment{
		{Start: 0.0, End: 5.0, Text: "opening remarks"},
		{Start: 5.0, End: 89.75, Text: "long middle part"},
		{Start: 90.0, End: 94.5, Text: "second chunk content"},
		{Start: 180.0, End: 183.0, Text: "third chunk content"},
	})
}

func TestDeduplicateSegmentsDropsOverlappingDuplicate(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 5.0, Text: "the quick brown fox"},
		{Start: 4.75, End: 9.0, Text: "The Quick Brown Fox"},
		{Start: 9.0, End: 12.0, Text: "jumps over the lazy dog"},
	}

	deduped := DeduplicateSegments(segments)
	segmentsEqual(t, deduped, []Segment{
		{Start: 0.0, End: 5.0, Text: "the quick brown fox"},
		{Start: 9.0, End: 12.0, Text: "jumps over the lazy dog"},
	})
}

func TestDeduplicateSegmentsKeepsOverlappingDistinctText(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 5.0, Text: "first speaker talking"},
		{Start: 4.75, End: 9.0, Text: "completely unrelated words here"},
	}

	deduped := DeduplicateSegments(segments)
	segmentsEqual(t, deduped, segments)
}

func TestDeduplicateSegmentsKeepsSimilarWithoutOverlap(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 5.0, Text: "repeat after me"},
		{Start: 5.0, End: 9.0, Text: "repeat after me"},
	}

	deduped := DeduplicateSegments(segments)
	segmentsEqual(t, deduped, segments)
}

func TestDeduplicateSegmentsSortsByStart(t *testing.T) {
	segments := []Segment{
		{Start: 10.0, End: 12.0, Text: "later"},
		{Start: 0.0, End: 2.0, Text: "earlier"},
	}

	deduped := DeduplicateSegments(segments)
	segmentsEqual(t, deduped, []Segment{
		{Start: 0.0, End: 2.0, Text: "earlier"},
		{Start: 10.0, End: 12.0, Text: "later"},
	})
}

func TestTextSimilarity(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want float64
	}{
		{"hello world", "hello world", 1.0},
		{"Hello World", "hello world", 1.0},
		{"hello world", "goodbye moon", 0.0},
		{"", "", 0.0},
		{"hello", "", 0.0},
		{"a b c d", "a b c e", 0.6},
	}

	for _, test := range tests {
		got := TextSimilarity(test.a, test.b)
		if math.Abs(got-test.want) > 1e-9 {
			t.Errorf("TextSimilarity(%q, %q) = %f, want %f", test.a, test.b, got, test.want)
		}
		reversed := TextSimilarity(test.b, test.a)
		if math.Abs(got-reversed) > 1e-9 {
			t.Errorf("TextSimilarity(%q, %q) not symmetric: %f vs %f", test.a, test.b, got, reversed)
		}
	}
}

func TestToText(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 2.0, Text: "hello"},
		{Start: 2.0, End: 4.0, Text: "world"},
	}
	if got := ToText(segments); got != "hello world" {
		t.Errorf("got %q", got)
	}
	if got := ToText(nil); got != "" {
		t.Errorf("got %q for empty input", got)
	}
}

func TestToVTTEmpty(t *testing.T) {
	if got := ToVTT(nil); got != "WEBVTT\n\n" {
		t.Errorf("got %q", got)
	}
}

func TestToVTTSingleCue(t *testing.T) {
	segments := []Segment{{Start: 0.0, End: 2.0, Text: "hello world"}}

	want := "WEBVTT\n\n" +
		"1.1\n" +
		"00:00:00.000 --> 00:00:02.000\n" +
		"hello world\n\n"

	if got := ToVTT(segments); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestToVTTSplitsLongSegments(t *testing.T) {
	// 10 words over 8 seconds: two cues of 8 and 2 words, 4s each.
	segments := []Segment{{
		Start: 60.0,
		End:   68.0,
		Text:  "one two three four five six seven eight nine ten",
	}}

	got := ToVTT(segments)

	want := "WEBVTT\n\n" +
		"1.1\n" +
		"00:01:00.000 --> 00:01:04.000\n" +
		"one two three four five six seven eight\n\n" +
		"1.2\n" +
		"00:01:04.000 --> 00:01:08.000\n" +
		"nine ten\n\n"

	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestToVTTCueCount(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 4.0, Text: strings.Repeat("word ", 17)},
		{Start: 4.0, End: 6.0, Text: "short"},
	}

	got := ToVTT(segments)

	// 17 words split into cues of 8 gives 3 cues, plus 1 for the
	// second segment.
	if count := strings.Count(got, " --> "); count != 4 {
		t.Errorf("got %d cues, want 4:\n%s", count, got)
	}
}

func TestFormatVTTTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0.0, "00:00:00.000"},
		{1.5, "00:00:01.500"},
		{61.25, "00:01:01.250"},
		{3599.5, "00:59:59.500"},
		{3600.0, "01:00:00.000"},
		{7325.75, "02:02:05.750"},
		{-3.0, "00:00:00.000"},
		// Sub-millisecond fractions truncate; rounding would yield
		// .235 and 00:00:11.000 here.
		{1.2345, "00:00:01.234"},
		{10.9999, "00:00:10.999"},
	}

	for _, test := range tests {
		if got := FormatVTTTimestamp(test.seconds); got != test.want {
			t.Errorf("FormatVTTTimestamp(%f) = %q, want %q", test.seconds, got, test.want)
		}
	}
}
