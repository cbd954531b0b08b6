package jira

import (
	"encoding/json"
	"strings"
)

// adfNode is the subset of an ADF node needed for text extraction.
type adfNode struct {
	Type    string                 `json:"type"`
	Text    string                 `json:"text"`
	Attrs   map[string]interface{} `json:"attrs"`
	Content []adfNode              `json:"content"`
}

// DescriptionToPlainText extracts plain text from Jira's ADF (Atlassian Document Format).
// Jira v3 API returns descriptions as ADF JSON, not plain text. Native task
// lists become "- [x] " / "- [ ] " lines and headings keep their level so the
// result reads as markdown.
func DescriptionToPlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		// Not ADF - try plain string
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}

	var lines []string
	for _, block := range doc.Content {
		lines = appendBlock(lines, block)
	}
	return strings.Join(lines, "\n")
}

func appendBlock(lines []string, n adfNode) []string {
	switch n.Type {
	case "heading":
		level := 1
		if l, ok := n.Attrs["level"].(float64); ok && l >= 1 {
			level = int(l)
		}
		return append(lines, strings.Repeat("#", level)+" "+inlineText(n))
	case "taskList":
		for _, item := range n.Content {
			mark := " "
			if state, _ := item.Attrs["state"].(string); state == "DONE" {
				mark = "x"
			}
			lines = append(lines, "- ["+mark+"] "+inlineText(item))
		}
		return lines
	case "bulletList", "orderedList":
		for _, item := range n.Content {
			lines = append(lines, "- "+inlineText(item))
		}
		return lines
	default:
		if text := inlineText(n); text != "" {
			lines = append(lines, text)
		}
		return lines
	}
}

// inlineText concatenates every text leaf under n.
func inlineText(n adfNode) string {
	if n.Text != "" {
		return n.Text
	}
	var b strings.Builder
	for _, child := range n.Content {
		b.WriteString(inlineText(child))
	}
	return b.String()
}

// PlainTextToADF converts plain text to Jira's ADF (Atlassian Document Format).
// Each line becomes one paragraph so checkbox lines survive a round trip.
func PlainTextToADF(text string) json.RawMessage {
	if text == "" {
		return nil
	}

	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	content := make([]interface{}, 0, len(paragraphs))
	for _, para := range paragraphs {
		if para == "" {
			content = append(content, map[string]interface{}{
				"type":    "paragraph",
				"content": []interface{}{},
			})
			continue
		}
		content = append(content, map[string]interface{}{
			"type": "paragraph",
			"content": []interface{}{
				map[string]interface{}{
					"type": "text",
					"text": para,
				},
			},
		})
	}

	doc := map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": content,
	}

	data, _ := json.Marshal(doc)
	return data
}
