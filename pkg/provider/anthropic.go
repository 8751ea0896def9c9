package provider

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/tokens"
)

// anthropicAdapter implements Adapter for Anthropic's Messages streaming
// API. Anthropic has no single-choice-array shape; instead each streaming
// event carries one content block at a time, addressed by the
// content_block_delta event's "index" field, with no [DONE] sentinel — the
// stream simply closes after a message_stop event.
type anthropicAdapter struct{}

func (a *anthropicAdapter) Name() string { return "anthropic" }

func (a *anthropicAdapter) ExtractContents(payload []byte) ([][]byte, bool) {
	eventType := gjson.GetBytes(payload, "type").String()
	if eventType != "content_block_delta" {
		return nil, false
	}
	text := gjson.GetBytes(payload, "delta.text")
	if !text.Exists() {
		return nil, false
	}
	index := int(gjson.GetBytes(payload, "index").Int())
	out := make([][]byte, index+1)
	out[index] = []byte(text.String())
	return out, true
}

func (a *anthropicAdapter) UpdateContents(payload []byte, choiceIndex int, newContent []byte) ([]byte, error) {
	return sjson.SetBytes(payload, "delta.text", string(newContent))
}

func (a *anthropicAdapter) UpdateUsage(payload []byte, t tokens.Tokens) ([]byte, error) {
	if t.Prompt == 0 || t.Completion == 0 {
		return payload, nil
	}
	out, err := sjson.SetBytes(payload, "message.usage.input_tokens", t.Prompt)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "usage.output_tokens", t.Completion)
}

func (a *anthropicAdapter) GetModel(payload []byte) string {
	if m := gjson.GetBytes(payload, "message.model"); m.Exists() {
		return m.String()
	}
	return gjson.GetBytes(payload, "model").String()
}

func (a *anthropicAdapter) Tokens(payload []byte) tokens.Tokens {
	t := tokens.Tokens{}
	switch gjson.GetBytes(payload, "type").String() {
	case "message_start":
		t.Prompt = int(gjson.GetBytes(payload, "message.usage.input_tokens").Int())
	case "message_delta":
		t.Completion = int(gjson.GetBytes(payload, "usage.output_tokens").Int())
	}
	return t
}

func (a *anthropicAdapter) Classify(payload []byte, rawData []byte, isDoneSentinel bool) ChunkKind {
	if payload == nil || !gjson.ValidBytes(payload) {
		return Invalid
	}
	switch gjson.GetBytes(payload, "type").String() {
	case "content_block_delta":
		text := gjson.GetBytes(payload, "delta.text")
		if text.Exists() && text.String() != "" {
			return NormalText
		}
		return NormalBinary
	case "message_delta":
		reason := gjson.GetBytes(payload, "delta.stop_reason")
		if reason.Exists() && reason.String() != "" {
			return FinishNoContent
		}
		return NormalBinary
	case "message_stop":
		return Done
	default:
		return NormalBinary
	}
}

func (a *anthropicAdapter) IsStreamCompleted(payload []byte, isDoneSentinel bool) bool {
	return gjson.GetBytes(payload, "type").String() == "message_stop"
}

func (a *anthropicAdapter) HasFunctionCallFinishReason(payload []byte) bool {
	return gjson.GetBytes(payload, "delta.stop_reason").String() == "tool_use"
}
