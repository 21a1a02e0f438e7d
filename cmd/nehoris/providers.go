package main

import (
	"context"

	"github.com/SAM252003/Nehoris/internal/config"
	"github.com/SAM252003/Nehoris/internal/logging"
	"github.com/SAM252003/Nehoris/internal/provider"
)

// buildProviders registers every provider that is configured well enough to
// be callable. Misconfigured providers are skipped with a log line rather
// than failing startup; they only error if a campaign selects them.
func buildProviders(ctx context.Context, cfg *config.Config) *provider.Registry {
	reg := provider.NewRegistry()

	ollamaCfg := provider.DefaultOllamaConfig()
	if pc, ok := cfg.Providers["ollama"]; ok {
		if pc.Host != "" {
			ollamaCfg.Host = pc.Host
		}
		if pc.Model != "" {
			ollamaCfg.Model = pc.Model
		}
		if pc.Timeout > 0 {
			ollamaCfg.Timeout = pc.Timeout.Std()
		}
	}
	reg.Register(provider.NewOllamaClient(ollamaCfg))

	if pc, ok := cfg.Providers["openai"]; ok && pc.APIKey != "" {
		oc := provider.DefaultOpenAIConfig(pc.APIKey)
		if pc.Model != "" {
			oc.Model = pc.Model
		}
		if pc.Timeout > 0 {
			oc.Timeout = pc.Timeout.Std()
		}
		reg.Register(provider.NewOpenAIClient(oc))
	}

	if pc, ok := cfg.Providers["perplexity"]; ok && pc.APIKey != "" {
		oc := provider.DefaultPerplexityConfig(pc.APIKey)
		if pc.Model != "" {
			oc.Model = pc.Model
		}
		if pc.Timeout > 0 {
			oc.Timeout = pc.Timeout.Std()
		}
		reg.Register(provider.NewOpenAIClient(oc))
	}

	if pc, ok := cfg.Providers["gemini"]; ok && pc.APIKey != "" {
		gc, err := provider.NewGeminiClient(ctx, provider.GeminiConfig{
			APIKey: pc.APIKey,
			Model:  pc.Model,
		})
		if err != nil {
			logging.Boot("gemini provider unavailable: %v", err)
		} else {
			reg.Register(gc)
		}
	}

	logging.Boot("providers registered: %v", reg.Names())
	return reg
}
