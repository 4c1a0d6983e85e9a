package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// encoders caches tiktoken encoders per model; a nil entry records a model
// tiktoken does not know so the lookup is not repeated.
var encoders sync.Map

func encoderFor(model string) *tiktoken.Tiktoken {
	if v, ok := encoders.Load(model); ok {
		tkm, _ := v.(*tiktoken.Tiktoken)
		return tkm
	}
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm = nil
	}
	encoders.Store(model, tkm)
	return tkm
}

// EstimateTokens returns the number of tokens text would use with model.
// Models tiktoken does not know fall back to one token per four characters.
func EstimateTokens(model, text string) int {
	if text == "" {
		return 0
	}
	if tkm := encoderFor(model); tkm != nil {
		return len(tkm.Encode(text, nil, nil))
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}

// EstimateMessagesTokens sums EstimateTokens over message contents.
func EstimateMessagesTokens(model string, messages []Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(model, m.Content)
	}
	return total
}
