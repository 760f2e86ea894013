package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoTextContent means no text payload was found in any known field.
var ErrNoTextContent = errors.New("no text content found in response")

// TextSource records which response field the text was taken from.
type TextSource string

// Decoding order for ResponseText.
const (
	SourcePrimary      TextSource = "text"
	SourceEnvelopeText TextSource = "envelope.text"
	SourceCandidates   TextSource = "candidates.content.parts"
	SourceChoices      TextSource = "choices.message.content"
	SourceOutputText   TextSource = "output_text"
)

type envelope struct {
	Text       string `json:"text"`
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	OutputText string `json:"output_text"`
}

// ResponseText returns the primary text payload of resp, falling back through
// the envelope in a fixed order: envelope.text, the first candidate with text
// parts, the first chat choice, then output_text.
func ResponseText(resp Response) (string, TextSource, error) {
	if strings.TrimSpace(resp.Text) != "" {
		return resp.Text, SourcePrimary, nil
	}
	if len(resp.Envelope) == 0 {
		return "", "", ErrNoTextContent
	}
	var env envelope
	if err := json.Unmarshal(resp.Envelope, &env); err != nil {
		return "", "", ErrNoTextContent
	}
	if strings.TrimSpace(env.Text) != "" {
		return env.Text, SourceEnvelopeText, nil
	}
	for _, c := range env.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		if strings.TrimSpace(b.String()) != "" {
			return b.String(), SourceCandidates, nil
		}
	}
	for _, ch := range env.Choices {
		if strings.TrimSpace(ch.Message.Content) != "" {
			return ch.Message.Content, SourceChoices, nil
		}
	}
	if strings.TrimSpace(env.OutputText) != "" {
		return env.OutputText, SourceOutputText, nil
	}
	return "", "", ErrNoTextContent
}
