package cliutil

import (
	"strings"
)

// Wrap the string `s` to a maximum width `w`.  Pass `w` == 0 to do no wrapping.
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func Wrap(w int, s string) string {
	return wrap(0, w, s)
}

// Wrap the string `s` to a maximum width `w` with leading indent `i`.  The first line is not
// indented (this is assumed to be done by caller).  Pass `w` == 0 to do no wrapping
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func WrapIndent(i, w int, s string) string {
	return wrap(i, w, s)
}

func wrap(indent, width int, text string) string {
	if width == 0 {
		return text
	}
	limit := width - 5
	pad := strings.Repeat(" ", indent)

	var ret strings.Builder
	for lineNum, line := range strings.Split(text, "\n") {
		if lineNum > 0 {
			ret.WriteString("\n")
			if line == "" {
				continue
			}
			ret.WriteString(pad)
		}

		col := indent
		pos := 0
		lineStart := true
		for pos < len(line) {
			// A chunk is a run of spaces followed by a run of non-spaces; the
			// spacing is preserved unless we break the line at this chunk.
			spaceLen := 0
			for pos+spaceLen < len(line) && line[pos+spaceLen] == ' ' {
				spaceLen++
			}
			wordStart := pos + spaceLen
			wordEnd := wordStart
			for wordEnd < len(line) && line[wordEnd] != ' ' {
				wordEnd++
			}
			word := line[wordStart:wordEnd]

			switch {
			case lineStart:
				ret.WriteString(line[pos:wordEnd])
				col += wordEnd - pos
				lineStart = false
			case col+spaceLen+len(word) > limit:
				ret.WriteString("\n")
				ret.WriteString(pad)
				ret.WriteString(word)
				col = indent + len(word)
			default:
				ret.WriteString(line[pos:wordEnd])
				col += spaceLen + len(word)
			}
			pos = wordEnd
		}
	}
	return ret.String()
}
