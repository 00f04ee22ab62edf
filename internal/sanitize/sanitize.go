// Package sanitize turns raw completion text into a bare script body.
package sanitize

import (
	"regexp"
	"strings"
)

// fencedBlock matches ```lang\n ... ``` with any (or no) language tag.
var fencedBlock = regexp.MustCompile("```[\\w+#.-]*[ \\t]*\\n([\\s\\S]*?)```")

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Bare first lines some models emit in place of a fence tag.
var languageNames = map[string]struct{}{
	"javascript": {},
	"js":         {},
	"ecmascript": {},
	"node":       {},
	"typescript": {},
	"ts":         {},
	"python":     {},
	"py":         {},
}

// Code extracts executable text from an LLM reply. Fenced blocks are joined
// in order with a blank line between them; without fences the whole reply
// is used. Stray fence markers and a leading bare language-name line are
// removed. Code never fails, and Code(Code(x)) == Code(x).
func Code(raw string) string {
	text := newlines.Replace(raw)

	if matches := fencedBlock.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		bodies := make([]string, 0, len(matches))
		for _, m := range matches {
			bodies = append(bodies, strings.TrimSpace(m[1]))
		}
		text = strings.Join(bodies, "\n\n")
	}

	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	for {
		first, rest, found := strings.Cut(text, "\n")
		if !found {
			break
		}
		if _, ok := languageNames[strings.ToLower(strings.TrimSpace(first))]; !ok {
			break
		}
		text = strings.TrimSpace(rest)
	}

	return text
}
