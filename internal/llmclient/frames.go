package llmclient

import (
	"encoding/json"
	"strings"
)

// DoneSentinel signals normal end of an upstream stream. Matched
// case-sensitively after frame normalization.
const DoneSentinel = "[DONE]"

// NormalizeFrame strips a leading "data:" marker and surrounding whitespace
// from a raw frame line. Providers vary between "data: {...}" and "data:{...}";
// both normalize to the same residual.
func NormalizeFrame(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "data:")
	return strings.TrimSpace(line)
}

type deltaFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ExtractDelta parses a normalized frame as a completion chunk and returns
// choices[0].delta.content. Malformed or non-JSON frames yield the empty
// string; a frame parse failure is never fatal to the stream.
func ExtractDelta(residual string) string {
	var frame deltaFrame
	if err := json.Unmarshal([]byte(residual), &frame); err != nil {
		return ""
	}
	if len(frame.Choices) == 0 {
		return ""
	}
	return frame.Choices[0].Delta.Content
}
