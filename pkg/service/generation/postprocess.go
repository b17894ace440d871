package generation

import (
	"regexp"
	"strings"
)

// assistantMarkers introduce the model's turn in common chat formats
var assistantMarkers = []string{
	"<|assistant|>",
	"<|im_start|>assistant",
	"<|start_header_id|>assistant<|end_header_id|>",
	"[/INST]",
}

var controlTokenPattern = regexp.MustCompile(`<\|[^|>]*\|>|</?s>|\[/?INST\]`)

// CleanAnswer keeps the text after the last assistant marker and removes
// chat-format control tokens
func CleanAnswer(raw string) string {
	text := raw
	cut := -1
	for _, marker := range assistantMarkers {
		if idx := strings.LastIndex(text, marker); idx >= 0 && idx+len(marker) > cut {
			cut = idx + len(marker)
		}
	}
	if cut >= 0 {
		text = text[cut:]
	}

	text = controlTokenPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
