package orchestrator

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// clean strips reasoning blocks some models emit before the answer.
func clean(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}
