package segment

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(\d+(?:\.\d+)?)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(\d+(?:\.\d+)?)`)
)

// ParseSilences extracts (silence_start, silence_end) pairs from ffmpeg
// silencedetect output. A start without a matching end (silence running to
// the end of the track) is dropped; inverted pairs are dropped.
func ParseSilences(output string) []Interval {
	var silences []Interval
	var curStart float64
	hasStart := false

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := silenceStartRe.FindStringSubmatch(line); len(m) > 1 {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				curStart = v
				hasStart = true
			}
			continue
		}

		if m := silenceEndRe.FindStringSubmatch(line); len(m) > 1 && hasStart {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > curStart {
				silences = append(silences, Interval{Start: curStart, End: v})
			}
			hasStart = false
		}
	}

	return silences
}
