// Package summarize backs the built-in summarizeContent tool. The Summarizer
// interface is the seam for an AI-backed implementation; Extractive is the
// dependency-free default so the builtin path works out of the box.
package summarize

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// Summary kinds accepted by the summarizeContent tool.
const (
	KindHeadline  = "headline"
	KindParagraph = "paragraph"
	KindFull      = "full"
)

// Summarizer condenses content into the requested summary kind.
type Summarizer interface {
	Summarize(ctx context.Context, content, kind string) (string, error)
}

// Extractive is a naive sentence-extraction summarizer.
type Extractive struct{}

// Summarize implements Summarizer. Headline returns the first sentence
// clipped to 80 runes; paragraph returns up to three sentences; full returns
// the trimmed content.
func (Extractive) Summarize(ctx context.Context, content, kind string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("content is required")
	}

	switch kind {
	case "", KindHeadline:
		sentences := splitSentences(content)
		return clip(sentences[0], 80), nil
	case KindParagraph:
		sentences := splitSentences(content)
		if len(sentences) > 3 {
			sentences = sentences[:3]
		}
		return strings.Join(sentences, " "), nil
	case KindFull:
		return content, nil
	default:
		return "", errors.New("unknown summary type: " + kind)
	}
}

func splitSentences(s string) []string {
	var out []string
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if sent := strings.TrimSpace(b.String()); sent != "" {
				out = append(out, sent)
			}
			b.Reset()
		}
	}
	if sent := strings.TrimSpace(b.String()); sent != "" {
		out = append(out, sent)
	}
	if len(out) == 0 {
		out = []string{s}
	}
	return out
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := max
	for cut > 0 && !unicode.IsSpace(runes[cut-1]) {
		cut--
	}
	if cut == 0 {
		cut = max
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}
