// Command atlas runs the support research assistant: a chat webhook feeding a
// durable turn queue, drained by the research orchestrator.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"atlas/pkg/agent"
	"atlas/pkg/agent/middleware/metrics"
	"atlas/pkg/chat"
	"atlas/pkg/config"
	"atlas/pkg/contextmgr"
	"atlas/pkg/dispatch"
	"atlas/pkg/logx"
	"atlas/pkg/orch"
	"atlas/pkg/persistence"
	"atlas/pkg/persona"
	"atlas/pkg/templates"
	"atlas/pkg/tools"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	configDir := flag.String("config-dir", ".atlas", "directory holding the encrypted secrets file")
	setup := flag.Bool("setup", false, "interactively enter and encrypt secrets, then exit")
	flag.Parse()

	logger := logx.NewLogger("atlas")

	if *setup {
		if err := runSetup(*configDir); err != nil {
			logger.Error("setup failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *configDir, logger); err != nil {
		logger.Error("fatal: %v", err)
		os.Exit(1)
	}
}

func run(configPath, configDir string, logger *logx.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := loadSecrets(configDir, logger); err != nil {
		return err
	}

	if err := persistence.Initialize(cfg.Storage.DBPath); err != nil {
		return err
	}
	defer func() {
		if err := persistence.Close(); err != nil {
			logger.Warn("database close failed: %v", err)
		}
	}()

	recorder := metrics.NewPrometheusRecorder()
	researchClient, err := buildClient(cfg, cfg.Models.Research, recorder, "research")
	if err != nil {
		return err
	}
	routingClient := researchClient
	if cfg.Models.Routing != cfg.Models.Research {
		routingClient, err = buildClient(cfg, cfg.Models.Routing, recorder, "routing")
		if err != nil {
			return err
		}
	}

	registry, err := tools.BuildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	renderer, err := templates.NewRenderer()
	if err != nil {
		return err
	}
	ctxmgr, err := contextmgr.NewManager()
	if err != nil {
		return err
	}

	orchestrator, err := orch.New(orch.Options{
		ResearchClient:       researchClient,
		RoutingClient:        routingClient,
		Registry:             registry,
		Renderer:             renderer,
		Resolver:             persona.NewResolver(cfg.Persona.DirectoryURL, cfg.Persona.CacheTTL.Std()),
		CtxMgr:               ctxmgr,
		BotName:              cfg.Chat.BotName,
		TicketAuthorizedUser: cfg.Orchestrator.TicketAuthorizedUser,
		TicketAuthorizedName: cfg.Orchestrator.TicketAuthorizedName,
		MaxRounds:            cfg.Orchestrator.MaxRounds,
		MaxSearchIterations:  cfg.Orchestrator.MaxSearchIterations,
		ThinkingMode:         cfg.Orchestrator.ThinkingMode,
	})
	if err != nil {
		return err
	}

	chatClient := chat.NewClient(cfg.Chat.APIBaseURL, config.GetSecretOrEmpty(config.SecretChatToken))
	queue := dispatch.NewSQLiteQueue(cfg.Dispatcher.LockTimeout.Std())
	dispatcher := dispatch.NewDispatcher(queue, orchestrator, chatClient, cfg.Dispatcher.PollInterval.Std())
	webhook := chat.NewWebhook(queue, chatClient,
		cfg.Chat.AllowedSpaces, cfg.Chat.AllowedUsers, cfg.Chat.ThreadHistorySize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go dispatcher.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/webhook", webhook)
	webhookServer := &http.Server{
		Addr:              cfg.Chat.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	healthServer := chat.NewHealthServer(cfg.Health.ListenAddr)

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("webhook listening on %s", cfg.Chat.ListenAddr)
		if err := webhookServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	go func() {
		logger.Info("health/metrics listening on %s", cfg.Health.ListenAddr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := webhookServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("webhook server shutdown: %v", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown: %v", err)
	}
	return nil
}

// buildClient constructs a provider client wrapped with metrics and retry.
func buildClient(cfg *config.Config, model string, recorder metrics.Recorder, component string) (agent.LLMClient, error) {
	provider := cfg.Models.Provider
	if provider == "" {
		inferred, err := agent.InferProvider(model)
		if err != nil {
			return nil, err
		}
		provider = inferred
	}

	secretName, err := config.APIKeySecretName(provider)
	if err != nil {
		return nil, err
	}
	apiKey := ""
	if secretName != "" {
		apiKey, err = config.GetSecret(secretName)
		if err != nil {
			return nil, err
		}
	}

	client, err := agent.NewClient(agent.ClientConfig{
		Model:      model,
		Provider:   provider,
		APIKey:     apiKey,
		OllamaHost: cfg.Models.OllamaHost,
	})
	if err != nil {
		return nil, err
	}
	return agent.WithRetry(metrics.Wrap(client, recorder, component), logx.NewLogger(component)), nil
}

// loadSecrets decrypts the secrets file when present. Without one, secrets
// resolve from the environment.
func loadSecrets(configDir string, logger *logx.Logger) error {
	if !config.SecretsFileExists(configDir) {
		logger.Info("no secrets file in %s, using environment variables", configDir)
		return nil
	}

	password := os.Getenv("ATLAS_SECRETS_PASSWORD")
	if password == "" {
		var err error
		password, err = promptPassword("Secrets password: ")
		if err != nil {
			return err
		}
	}

	secrets, err := config.DecryptSecretsFile(configDir, password)
	if err != nil {
		return err
	}
	config.SetDecryptedSecrets(secrets)
	logger.Info("loaded %d secrets from %s", len(secrets), configDir)
	return nil
}

// runSetup interactively collects secrets and writes the encrypted file.
func runSetup(configDir string) error {
	names := []string{
		config.SecretGoogleAPIKey,
		config.SecretAnthropicAPIKey,
		config.SecretOpenAIAPIKey,
		config.SecretChatToken,
		config.SecretWikiToken,
		config.SecretTrackerToken,
		config.SecretHelpdeskKey,
		config.SecretCodeHostToken,
		config.SecretCloudLogsToken,
		config.SecretKubeToken,
	}

	fmt.Println("Enter secret values (leave empty to skip):")
	reader := bufio.NewReader(os.Stdin)
	secrets := make(map[string]string)
	for _, name := range names {
		fmt.Printf("  %s: ", name)
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		if value := strings.TrimSpace(line); value != "" {
			secrets[name] = value
		}
	}

	password, err := promptPassword("Encryption password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := config.EncryptSecretsFile(configDir, password, secrets); err != nil {
		return err
	}
	fmt.Printf("Wrote %d secrets to %s\n", len(secrets), configDir)
	return nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}
