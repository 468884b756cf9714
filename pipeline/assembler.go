package pipeline

import (
	"strings"

	"github.com/skillsenselab/scribe/audio"
)

// tokensPerSecond estimates how many spoken words an overlap window holds.
// Conversational speech runs two to four words per second; five is a safe
// upper bound for the alignment search window.
const tokensPerSecond = 5

// minAlignWindow is the smallest token window searched for overlap matches.
const minAlignWindow = 4

// Assemble merges per-chunk transcripts in index order into the final
// transcript. Chunks without overlap are joined with a blank line. When a
// chunk carried overlap audio past its boundary, the head of the following
// transcript repeats the tail of the previous one; the repeated run is
// located by token alignment and dropped. If no repeated run is found the
// texts are joined as-is.
func Assemble(descriptors []audio.Chunk, texts []string, overlapSeconds float64) string {
	var parts []string
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if len(parts) == 0 {
			parts = append(parts, text)
			continue
		}

		prevHadOverlap := i > 0 && i-1 < len(descriptors) && descriptors[i-1].HasOverlap
		if !prevHadOverlap || overlapSeconds <= 0 {
			parts = append(parts, "\n\n", text)
			continue
		}

		window := int(overlapSeconds * tokensPerSecond)
		if window < minAlignWindow {
			window = minAlignWindow
		}
		merged, ok := dropOverlap(parts[len(parts)-1], text, window)
		if ok {
			parts[len(parts)-1] = merged
		} else {
			parts = append(parts, "\n\n", text)
		}
	}
	return strings.Join(parts, "")
}

// dropOverlap finds the longest run of tokens that ends prev and starts next,
// comparing within a bounded window, and returns prev joined with next minus
// the duplicated head. Reports false when no duplicated run exists.
func dropOverlap(prev, next string, window int) (string, bool) {
	prevTokens := strings.Fields(prev)
	nextTokens := strings.Fields(next)

	maxRun := window
	if len(prevTokens) < maxRun {
		maxRun = len(prevTokens)
	}
	if len(nextTokens) < maxRun {
		maxRun = len(nextTokens)
	}

	for run := maxRun; run >= 1; run-- {
		if tokenRunsEqual(prevTokens[len(prevTokens)-run:], nextTokens[:run]) {
			rest := nextTokens[run:]
			if len(rest) == 0 {
				return prev, true
			}
			return prev + " " + strings.Join(rest, " "), true
		}
	}
	return "", false
}

func tokenRunsEqual(a, b []string) bool {
	for i := range a {
		if normalizeToken(a[i]) != normalizeToken(b[i]) {
			return false
		}
	}
	return true
}

// normalizeToken lowercases and strips edge punctuation so "world." and
// "World" count as the same spoken word.
func normalizeToken(tok string) string {
	return strings.Trim(strings.ToLower(tok), ".,;:!?\"'()[]-")
}
