package services

import (
	"strings"
	"unicode"
)

type FormattedBlock struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// FormattedResponse is either {"type": "text", "content": string} or
// {"type": "structured", "content": [blocks]}.
type FormattedResponse struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

const maxHeaderLen = 100

var listPrefixes = []string{"-", "•", "*", "1.", "2.", "3.", "4.", "5."}

// FormatResponse splits multi-line answers into header, list item and
// paragraph blocks for display.
func FormatResponse(text string) FormattedResponse {
	text = strings.TrimSpace(text)
	if text == "" {
		return FormattedResponse{Type: "text", Content: "No response generated"}
	}
	if !strings.Contains(text, "\n") {
		return FormattedResponse{Type: "text", Content: text}
	}

	var blocks []FormattedBlock
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case isHeader(line):
			blocks = append(blocks, FormattedBlock{Type: "header", Content: strings.TrimSpace(strings.ReplaceAll(line, "###", ""))})
		case hasListPrefix(line):
			blocks = append(blocks, FormattedBlock{Type: "list_item", Content: line})
		default:
			blocks = append(blocks, FormattedBlock{Type: "paragraph", Content: line})
		}
	}
	return FormattedResponse{Type: "structured", Content: blocks}
}

func isHeader(line string) bool {
	if len(line) >= maxHeaderLen {
		return false
	}
	return strings.HasSuffix(line, ":") || isUpper(line) || strings.HasPrefix(line, "###")
}

func hasListPrefix(line string) bool {
	for _, p := range listPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// isUpper reports whether line has cased letters and none are lower case.
func isUpper(line string) bool {
	cased := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
