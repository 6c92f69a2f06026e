// Package config provides YAML configuration loading and encrypted secrets access.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Secret names looked up via GetSecret (secrets file, then environment).
const (
	SecretGoogleAPIKey    = "GEMINI_API_KEY"
	SecretAnthropicAPIKey = "ANTHROPIC_API_KEY"
	SecretOpenAIAPIKey    = "OPENAI_API_KEY"
	SecretChatToken       = "CHAT_BOT_TOKEN"
	SecretWikiToken       = "WIKI_API_TOKEN"
	SecretTrackerToken    = "TRACKER_API_TOKEN"
	SecretHelpdeskKey     = "HELPDESK_API_KEY"
	SecretCodeHostToken   = "CODEHOST_API_TOKEN"
	SecretCloudLogsToken  = "CLOUDLOGS_API_TOKEN"
	SecretKubeToken       = "KUBE_API_TOKEN"
)

// ModelsConfig selects reasoning models per concern. All orchestration calls
// share the research model unless a cheaper routing model is configured.
type ModelsConfig struct {
	Research   string `yaml:"research"`
	Routing    string `yaml:"routing"`
	Provider   string `yaml:"provider,omitempty"` // override; inferred from model name when empty
	OllamaHost string `yaml:"ollama_host,omitempty"`
}

// ChatConfig describes the chat transport boundary.
type ChatConfig struct {
	ListenAddr        string   `yaml:"listen_addr"`
	BotName           string   `yaml:"bot_name"`
	APIBaseURL        string   `yaml:"api_base_url"`
	AllowedSpaces     []string `yaml:"allowed_spaces"` // empty = all spaces
	AllowedUsers      []string `yaml:"allowed_users"`  // empty = all users
	ThreadHistorySize int      `yaml:"thread_history_size"`
}

// Endpoint is a generic connector endpoint with basic-auth style credentials.
// The password/token half always comes from the secrets store, never YAML.
type Endpoint struct {
	BaseURL string `yaml:"base_url"`
	User    string `yaml:"user,omitempty"`
}

// ConnectorsConfig holds the knowledge-source endpoints.
type ConnectorsConfig struct {
	Wiki       Endpoint `yaml:"wiki"`
	Tracker    Endpoint `yaml:"tracker"`
	Helpdesk   Endpoint `yaml:"helpdesk"`
	CodeHost   Endpoint `yaml:"codehost"`
	CodeOrg    string   `yaml:"codehost_org"`
	CloudLogs  Endpoint `yaml:"cloud_logs"`
	CloudProj  string   `yaml:"cloud_project"`
	Kube       Endpoint `yaml:"kube"`
	Monitoring Endpoint `yaml:"monitoring"` // Prometheus-compatible HTTP API
}

// PersonaConfig describes the requester directory lookup.
type PersonaConfig struct {
	DirectoryURL string   `yaml:"directory_url"`
	CacheTTL     Duration `yaml:"cache_ttl"`
}

// DispatcherConfig tunes the queue drain loop.
type DispatcherConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	LockTimeout  Duration `yaml:"lock_timeout"`
}

// OrchestratorConfig tunes the research rounds.
type OrchestratorConfig struct {
	MaxRounds           int  `yaml:"max_rounds"`
	MaxSearchIterations int  `yaml:"max_search_iterations"`
	ThinkingMode        bool `yaml:"thinking_mode"`

	// TicketAuthorizedUser is the only email allowed to create tracker tickets;
	// TicketAuthorizedName is the display name used in its refusal texts.
	TicketAuthorizedUser string `yaml:"ticket_authorized_user"`
	TicketAuthorizedName string `yaml:"ticket_authorized_name"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// HealthConfig describes the health/metrics side port.
type HealthConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the root configuration document.
type Config struct {
	Models       ModelsConfig       `yaml:"models"`
	Chat         ChatConfig         `yaml:"chat"`
	Connectors   ConnectorsConfig   `yaml:"connectors"`
	Persona      PersonaConfig      `yaml:"persona"`
	Dispatcher   DispatcherConfig   `yaml:"dispatcher"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Storage      StorageConfig      `yaml:"storage"`
	Health       HealthConfig       `yaml:"health"`
}

// Load reads, parses, and validates a YAML config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Models.Routing == "" {
		c.Models.Routing = c.Models.Research
	}
	if c.Chat.ListenAddr == "" {
		c.Chat.ListenAddr = ":8080"
	}
	if c.Chat.ThreadHistorySize == 0 {
		c.Chat.ThreadHistorySize = 20
	}
	if c.Dispatcher.PollInterval == 0 {
		c.Dispatcher.PollInterval = Duration(5 * time.Second)
	}
	if c.Dispatcher.LockTimeout == 0 {
		c.Dispatcher.LockTimeout = Duration(10 * time.Second)
	}
	if c.Orchestrator.MaxRounds == 0 {
		c.Orchestrator.MaxRounds = 2
	}
	if c.Orchestrator.MaxSearchIterations == 0 {
		c.Orchestrator.MaxSearchIterations = 5
	}
	if c.Orchestrator.TicketAuthorizedName == "" {
		c.Orchestrator.TicketAuthorizedName = c.Orchestrator.TicketAuthorizedUser
	}
	if c.Persona.CacheTTL == 0 {
		c.Persona.CacheTTL = Duration(6 * time.Hour)
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "atlas.db"
	}
	if c.Health.ListenAddr == "" {
		c.Health.ListenAddr = ":9090"
	}
}

// Validate checks invariants that would otherwise surface as late runtime failures.
func (c *Config) Validate() error {
	if c.Models.Research == "" {
		return fmt.Errorf("models.research is required")
	}
	if c.Chat.BotName == "" {
		return fmt.Errorf("chat.bot_name is required")
	}
	if c.Orchestrator.MaxRounds < 1 {
		return fmt.Errorf("orchestrator.max_rounds must be at least 1")
	}
	if c.Orchestrator.MaxSearchIterations < 1 {
		return fmt.Errorf("orchestrator.max_search_iterations must be at least 1")
	}
	if c.Dispatcher.PollInterval.Std() < time.Second {
		return fmt.Errorf("dispatcher.poll_interval must be at least 1s")
	}
	return nil
}

// APIKeySecretName returns the secret name holding the API key for a provider.
func APIKeySecretName(provider string) (string, error) {
	switch provider {
	case "google":
		return SecretGoogleAPIKey, nil
	case "anthropic":
		return SecretAnthropicAPIKey, nil
	case "openai":
		return SecretOpenAIAPIKey, nil
	case "ollama":
		return "", nil // local runtime, no key
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
}
