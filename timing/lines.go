package timing

import "strings"

// LineTiming spans the words of one transcript line. Lines without words
// carry Start and End of -1, which never match a playback position.
type LineTiming struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Empty reports whether the line is the no-words sentinel.
func (l LineTiming) Empty() bool {
	return l.Start < 0 && l.End < 0
}

// SplitLines splits text on line breaks, accepting both \n and \r\n.
func SplitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// Lines maps the cumulative word count of each line onto words. Lines past
// the end of the timing data get the sentinel.
func Lines(text string, words []WordTiming) []LineTiming {
	lines := SplitLines(text)
	out := make([]LineTiming, 0, len(lines))

	next := 0
	for _, line := range lines {
		count := len(Words(line))
		if count == 0 || next >= len(words) {
			out = append(out, LineTiming{Text: line, Start: -1, End: -1})
			continue
		}
		last := next + count - 1
		if last > len(words)-1 {
			last = len(words) - 1
		}
		out = append(out, LineTiming{
			Text:  line,
			Start: words[next].Start,
			End:   words[last].End,
		})
		next += count
	}
	return out
}
