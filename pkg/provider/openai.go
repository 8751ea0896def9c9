package provider

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/tokens"
)

// openAIAdapter implements Adapter for OpenAI's chat-completion streaming
// shape. Azure OpenAI and Mistral both speak this same shape on the wire,
// so they are constructed as this same type under a different Name()
// rather than a separate implementation.
type openAIAdapter struct {
	name string
}

func (a *openAIAdapter) Name() string { return a.name }

func (a *openAIAdapter) ExtractContents(payload []byte) ([][]byte, bool) {
	choices := gjson.GetBytes(payload, "choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return nil, false
	}
	arr := choices.Array()
	out := make([][]byte, len(arr))
	any := false
	for i, c := range arr {
		content := c.Get("delta.content")
		if content.Exists() {
			out[i] = []byte(content.String())
			any = true
		} else {
			out[i] = nil
		}
	}
	if !any {
		return nil, false
	}
	return out, true
}

func (a *openAIAdapter) UpdateContents(payload []byte, choiceIndex int, newContent []byte) ([]byte, error) {
	path := choicePath(choiceIndex) + ".delta.content"
	return sjson.SetBytes(payload, path, string(newContent))
}

func (a *openAIAdapter) UpdateUsage(payload []byte, t tokens.Tokens) ([]byte, error) {
	if t.Prompt == 0 || t.Completion == 0 {
		return payload, nil
	}
	out, err := sjson.SetBytes(payload, "usage.prompt_tokens", t.Prompt)
	if err != nil {
		return nil, err
	}
	out, err = sjson.SetBytes(out, "usage.completion_tokens", t.Completion)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "usage.total_tokens", t.Total())
}

func (a *openAIAdapter) GetModel(payload []byte) string {
	return gjson.GetBytes(payload, "model").String()
}

func (a *openAIAdapter) Tokens(payload []byte) tokens.Tokens {
	usage := gjson.GetBytes(payload, "usage")
	if !usage.Exists() {
		return tokens.Tokens{}
	}
	return tokens.Tokens{
		Prompt:     int(usage.Get("prompt_tokens").Int()),
		Completion: int(usage.Get("completion_tokens").Int()),
	}
}

func (a *openAIAdapter) Classify(payload []byte, rawData []byte, isDoneSentinel bool) ChunkKind {
	if isDoneSentinel {
		return Done
	}
	if payload == nil || !gjson.ValidBytes(payload) {
		return Invalid
	}
	choices := gjson.GetBytes(payload, "choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return NormalBinary
	}
	choice := choices.Array()[0]
	finishReason := choice.Get("finish_reason")
	hasFinish := finishReason.Exists() && finishReason.Type != gjson.Null && finishReason.String() != ""
	content := choice.Get("delta.content")
	hasText := content.Exists() && content.String() != ""
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

func (a *openAIAdapter) IsStreamCompleted(payload []byte, isDoneSentinel bool) bool {
	return isDoneSentinel
}

func (a *openAIAdapter) HasFunctionCallFinishReason(payload []byte) bool {
	reason := gjson.GetBytes(payload, "choices.0.finish_reason").String()
	return reason == "function_call" || reason == "tool_calls"
}
