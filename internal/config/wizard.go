package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .tessera.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to tessera! Let's configure your document index.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Watch directory.
	dirPrompt := promptui.Prompt{
		Label:   "Directory to watch for documents",
		Default: ".",
		Validate: func(s string) error {
			info, err := os.Stat(s)
			if err != nil {
				return fmt.Errorf("cannot access %s", s)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", s)
			}
			return nil
		},
	}
	dir, err := dirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	cfg.Watch.Dirs = []string{dir}

	// 2. Embedding provider.
	providerPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{"clip", "openai"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Embedding.Provider = EmbeddingProviderType(providerStr)
	if cfg.Embedding.Provider == EmbeddingOpenAI {
		cfg.Embedding.Model = "text-embedding-3-small"
		if os.Getenv(APIKeyEnvVar(EmbeddingOpenAI)) == "" {
			fmt.Printf("Note: set %s before starting the server.\n", APIKeyEnvVar(EmbeddingOpenAI))
		}
	}

	// 3. Extractor endpoint.
	extractorPrompt := promptui.Prompt{
		Label:   "Content extractor endpoint",
		Default: cfg.ExtractorEndpoint,
	}
	if cfg.ExtractorEndpoint, err = extractorPrompt.Run(); err != nil {
		return nil, fmt.Errorf("extractor endpoint: %w", err)
	}

	// 4. Server port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP server port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			p, err := strconv.Atoi(s)
			if err != nil || p < 1 || p > 65535 {
				return fmt.Errorf("invalid port")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Save(".tessera.yml"); err != nil {
		return nil, err
	}
	fmt.Println("\nSaved configuration to .tessera.yml")

	return cfg, nil
}
