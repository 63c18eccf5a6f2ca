// Package playback turns document text into sentences and drives a speech
// engine through them one utterance at a time.
package playback

import (
	"regexp"
	"strings"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

var sentenceDelimiters = regexp.MustCompile(`[.!?]+`)

// Segment splits text on runs of '.', '!' and '?'. Delimiters are dropped,
// segments that are blank after trimming are discarded and the rest are
// returned untrimmed in order.
func Segment(text string) []string {
	parts := sentenceDelimiters.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

// PositionAfter is the cursor position once sentences[0..i] have been
// spoken: the sum of len(sentence)+1 over those sentences, one unit standing
// in for each dropped delimiter run. It is a progress measure, not an index
// into the source text.
func PositionAfter(sentences []string, i int) int {
	pos := 0
	for k := 0; k <= i && k < len(sentences); k++ {
		pos += types.RuneLen(sentences[k]) + 1
	}
	return pos
}

// SentenceAt returns the index of the sentence whose cumulative span
// contains position, or -1 when position lies past the last sentence
func SentenceAt(sentences []string, position int) int {
	cumulative := 0
	for i, s := range sentences {
		length := types.RuneLen(s) + 1
		if cumulative+length > position {
			return i
		}
		cumulative += length
	}
	return -1
}
