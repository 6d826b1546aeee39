// Package provider builds model invokers from the host configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/go-kratos/stepflow"
	"github.com/go-kratos/stepflow/contrib/anthropic"
	"github.com/go-kratos/stepflow/contrib/gemini"
	"github.com/go-kratos/stepflow/contrib/openai"
	"github.com/go-kratos/stepflow/internal/config"
)

// New creates the invoker selected by c.Provider. The configuration must be valid.
func New(ctx context.Context, c config.Config) (stepflow.ModelInvoker, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Provider {
	case config.ProviderStatic:
		name := c.Model
		if name == "" {
			name = config.ProviderStatic
		}
		return stepflow.StaticInvoker(name, c.StaticText), nil
	case config.ProviderOpenAI:
		return openai.NewChat(c.Model, openai.Config{
			APIKey:          c.Key(),
			BaseURL:         c.BaseURL,
			MaxOutputTokens: c.MaxTokens,
			Temperature:     c.Temperature,
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(c.Model, anthropic.Config{
			APIKey:          c.Key(),
			BaseURL:         c.BaseURL,
			MaxOutputTokens: c.MaxTokens,
			Temperature:     c.Temperature,
		}), nil
	case config.ProviderGemini, config.ProviderVertex:
		return gemini.NewModel(ctx, c.Model, geminiConfig(c))
	default:
		return nil, fmt.Errorf("provider: unknown provider %q", c.Provider)
	}
}

func geminiConfig(c config.Config) gemini.Config {
	gc := gemini.Config{
		Backend:         gemini.BackendGenAI,
		APIKey:          c.Key(),
		BaseURL:         c.BaseURL,
		MaxOutputTokens: int32(c.MaxTokens),
		Temperature:     float32(c.Temperature),
	}
	if c.Provider == config.ProviderVertex {
		gc.Backend = gemini.BackendVertexAI
		gc.APIKey = ""
		gc.Project = c.Project
		gc.Location = c.Location
		gc.CredentialsPath = c.Credentials
	}
	return gc
}

// System returns the GenAI system name of the configured provider, used to
// label tracing spans.
func System(c config.Config) string {
	switch c.Provider {
	case config.ProviderOpenAI:
		return "openai"
	case config.ProviderAnthropic:
		return "anthropic"
	case config.ProviderGemini:
		return "gcp.gemini"
	case config.ProviderVertex:
		return "gcp.vertex_ai"
	default:
		return "_OTHER"
	}
}
