package gemini

import (
	"fmt"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"
)

// Backend represents the backend type for the Gemini invoker.
type Backend string

const (
	// BackendGenAI represents the Gemini Developer API.
	BackendGenAI Backend = "genai"
	// BackendVertexAI represents the Vertex AI backend.
	BackendVertexAI Backend = "vertexai"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Config holds Gemini configuration: authentication, endpoint and defaults.
type Config struct {
	Backend Backend `json:"backend"`

	// Gemini Developer API
	APIKey string `json:"apiKey,omitempty"`

	// Vertex AI
	Project            string `json:"project,omitempty"`
	Location           string `json:"location,omitempty"`
	CredentialsPath    string `json:"credentialsPath,omitempty"`
	CredentialsContent string `json:"credentialsContent,omitempty"`

	BaseURL         string  `json:"baseURL,omitempty"`
	MaxOutputTokens int32   `json:"maxOutputTokens,omitempty"`
	Temperature     float32 `json:"temperature,omitempty"`
}

// Validate reports missing settings for the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendGenAI:
		if c.APIKey == "" {
			return fmt.Errorf("gemini: api key is required for the %s backend", BackendGenAI)
		}
	case BackendVertexAI:
		if c.Project == "" || c.Location == "" {
			return fmt.Errorf("gemini: project and location are required for the %s backend", BackendVertexAI)
		}
	default:
		return fmt.Errorf("gemini: unknown backend %q", c.Backend)
	}
	return nil
}

// credentials resolves Vertex AI credentials from the configured file or
// content, falling back to application default credentials.
func (c *Config) credentials() (*auth.Credentials, error) {
	opts := &credentials.DetectOptions{Scopes: []string{cloudPlatformScope}}
	switch {
	case c.CredentialsContent != "":
		opts.CredentialsJSON = []byte(c.CredentialsContent)
	case c.CredentialsPath != "":
		opts.CredentialsFile = c.CredentialsPath
	}
	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		return nil, fmt.Errorf("gemini: detecting credentials: %w", err)
	}
	return creds, nil
}

// clientConfig builds the genai client configuration.
func (c *Config) clientConfig() (*genai.ClientConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cc := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{BaseURL: c.BaseURL},
	}
	if c.Backend == BackendVertexAI {
		creds, err := c.credentials()
		if err != nil {
			return nil, err
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = c.Project
		cc.Location = c.Location
		cc.Credentials = creds
		return cc, nil
	}
	cc.Backend = genai.BackendGeminiAPI
	cc.APIKey = c.APIKey
	return cc, nil
}
