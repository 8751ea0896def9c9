package provider

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/tokens"
)

// geminiAdapter implements Adapter for Google Gemini's and Vertex AI's
// generateContent streaming shape (candidates[].content.parts[].text).
// Vertex AI is constructed as this same type under a different Name() —
// the two speak the same response JSON, Vertex AI being Gemini fronted by
// Google Cloud's endpoint and auth layer.
type geminiAdapter struct {
	name string
}

func (a *geminiAdapter) Name() string { return a.name }

func (a *geminiAdapter) ExtractContents(payload []byte) ([][]byte, bool) {
	candidates := gjson.GetBytes(payload, "candidates")
	if !candidates.IsArray() || len(candidates.Array()) == 0 {
		return nil, false
	}
	arr := candidates.Array()
	out := make([][]byte, len(arr))
	any := false
	for i, c := range arr {
		parts := c.Get("content.parts")
		var text string
		for _, p := range parts.Array() {
			text += p.Get("text").String()
		}
		if text != "" {
			out[i] = []byte(text)
			any = true
		}
	}
	if !any {
		return nil, false
	}
	return out, true
}

func (a *geminiAdapter) UpdateContents(payload []byte, choiceIndex int, newContent []byte) ([]byte, error) {
	path := candidatePath(choiceIndex) + ".content.parts.0.text"
	return sjson.SetBytes(payload, path, string(newContent))
}

func (a *geminiAdapter) UpdateUsage(payload []byte, t tokens.Tokens) ([]byte, error) {
	if t.Prompt == 0 || t.Completion == 0 {
		return payload, nil
	}
	out, err := sjson.SetBytes(payload, "usageMetadata.promptTokenCount", t.Prompt)
	if err != nil {
		return nil, err
	}
	out, err = sjson.SetBytes(out, "usageMetadata.candidatesTokenCount", t.Completion)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "usageMetadata.totalTokenCount", t.Total())
}

func (a *geminiAdapter) GetModel(payload []byte) string {
	return gjson.GetBytes(payload, "modelVersion").String()
}

// Tokens reports this frame's usage as found. Gemini and Vertex AI repeat
// promptTokenCount on every streamed frame; callers must dedupe via
// tokens.Accumulator rather than summing Tokens() across a range.
func (a *geminiAdapter) Tokens(payload []byte) tokens.Tokens {
	usage := gjson.GetBytes(payload, "usageMetadata")
	if !usage.Exists() {
		return tokens.Tokens{}
	}
	return tokens.Tokens{
		Prompt:     int(usage.Get("promptTokenCount").Int()),
		Completion: int(usage.Get("candidatesTokenCount").Int()),
	}
}

func (a *geminiAdapter) Classify(payload []byte, rawData []byte, isDoneSentinel bool) ChunkKind {
	if payload == nil || !gjson.ValidBytes(payload) {
		return Invalid
	}
	candidates := gjson.GetBytes(payload, "candidates")
	if !candidates.IsArray() || len(candidates.Array()) == 0 {
		return NormalBinary
	}
	candidate := candidates.Array()[0]
	finishReason := candidate.Get("finishReason")
	hasFinish := finishReason.Exists() && finishReason.String() != ""
	hasText := false
	for _, p := range candidate.Get("content.parts").Array() {
		if p.Get("text").String() != "" {
			hasText = true
			break
		}
	}
	switch {
	case hasFinish && hasText:
		return Finish
	case hasFinish:
		return FinishNoContent
	case hasText:
		return NormalText
	default:
		return NormalBinary
	}
}

// IsStreamCompleted reports whether the first candidate carries a
// finishReason: Gemini and Vertex AI have no "[DONE]" sentinel, so
// completion is signaled through the payload's finish-reason shape.
func (a *geminiAdapter) IsStreamCompleted(payload []byte, isDoneSentinel bool) bool {
	reason := gjson.GetBytes(payload, "candidates.0.finishReason")
	return reason.Exists() && reason.String() != ""
}

func (a *geminiAdapter) HasFunctionCallFinishReason(payload []byte) bool {
	for _, p := range gjson.GetBytes(payload, "candidates.0.content.parts").Array() {
		if p.Get("functionCall").Exists() {
			return true
		}
	}
	return false
}
