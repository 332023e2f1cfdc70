package extractor

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ContentKind tags which reply shape a completion carried.
type ContentKind int

const (
	ContentNone ContentKind = iota
	ContentString
	ContentParts
	ContentMessageText
)

// Content is the decoded answer of one completion. Shapes are tried in
// order: content as a string, content as a list of parts, then the
// message-level text field. The first shape present wins even if empty.
type Content struct {
	Kind  ContentKind
	Text  string
	Parts []string
}

// Answer returns the trimmed answer, or "" when the reply carried nothing usable.
func (c Content) Answer() string {
	switch c.Kind {
	case ContentString, ContentMessageText:
		return strings.TrimSpace(c.Text)
	case ContentParts:
		return strings.TrimSpace(strings.Join(c.Parts, " "))
	}
	return ""
}

type completionResponse struct {
	Choices []struct {
		Message responseMessage `json:"message"`
	} `json:"choices"`
}

type responseMessage struct {
	Content json.RawMessage `json:"content"`
	Text    json.RawMessage `json:"text"`
}

type responsePart struct {
	Text json.RawMessage `json:"text"`
}

func decodeContent(msg responseMessage) Content {
	raw := bytes.TrimSpace(msg.Content)
	if len(raw) > 0 {
		switch raw[0] {
		case '"':
			var s string
			if json.Unmarshal(raw, &s) == nil {
				return Content{Kind: ContentString, Text: s}
			}
		case '[':
			var items []json.RawMessage
			if json.Unmarshal(raw, &items) == nil {
				var parts []string
				for _, it := range items {
					var p responsePart
					if json.Unmarshal(it, &p) != nil {
						continue
					}
					if t, ok := jsonString(p.Text); ok && strings.TrimSpace(t) != "" {
						parts = append(parts, strings.TrimSpace(t))
					}
				}
				return Content{Kind: ContentParts, Parts: parts}
			}
		}
	}
	if t, ok := jsonString(msg.Text); ok && strings.TrimSpace(t) != "" {
		return Content{Kind: ContentMessageText, Text: t}
	}
	return Content{Kind: ContentNone}
}

func jsonString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
