package llm

import (
	"errors"
	"fmt"
)

var ErrUnknownModel = errors.New("unknown model")

// Model is a selectable chat model and the sampling parameters sent with it.
// Only temperature and the token cap reach the chat completions request;
// top_p stays at the API default of 1.
type Model struct {
	Name        string
	Temperature float64
	MaxTokens   int
}

const (
	ModelGPT5Nano = "gpt-5-nano"
	ModelGPT41    = "gpt-4.1"
)

// gpt-5-nano only accepts its default sampling, so it is pinned to
// temperature 1 and gets no token cap.
var models = map[string]Model{
	ModelGPT5Nano: {Name: ModelGPT5Nano, Temperature: 1},
	ModelGPT41:    {Name: ModelGPT41, Temperature: 0.1, MaxTokens: 8192},
}

// LookupModel resolves a model name; an empty name resolves to fallback.
func LookupModel(name, fallback string) (Model, error) {
	if name == "" {
		name = fallback
	}
	m, ok := models[name]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// Models lists the supported model names.
func Models() []string {
	return []string{ModelGPT5Nano, ModelGPT41}
}
