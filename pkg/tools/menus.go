package tools

import (
	"strings"

	"atlas/pkg/config"
	"atlas/pkg/logx"
)

// Menu names used by the worker variants and the responder.
const (
	MenuTriage        = "triage"
	MenuInvestigation = "investigation"
	MenuIncident      = "incident"
	MenuAction        = "action"
)

// BuildRegistry wires every configured connector into a registry and defines
// the worker menus. Connectors with no configured endpoint are skipped, so a
// partial deployment still starts with a reduced menu.
func BuildRegistry(cfg *config.Config, logger *logx.Logger) (*Registry, error) {
	reg := NewRegistry()

	var search []Tool

	if cfg.Connectors.Wiki.BaseURL != "" {
		wiki := NewWikiConnector(cfg.Connectors.Wiki.BaseURL, cfg.Connectors.Wiki.User,
			config.GetSecretOrEmpty(config.SecretWikiToken))
		search = append(search, wiki.Tools()...)
	} else {
		logger.Info("wiki connector not configured, skipping confluence tools")
	}

	var tracker *TrackerConnector
	if cfg.Connectors.Tracker.BaseURL != "" {
		tracker = NewTrackerConnector(cfg.Connectors.Tracker.BaseURL, cfg.Connectors.Tracker.User,
			config.GetSecretOrEmpty(config.SecretTrackerToken),
			cfg.Orchestrator.TicketAuthorizedUser, cfg.Orchestrator.TicketAuthorizedName)
		search = append(search, tracker.SearchTools()...)
	} else {
		logger.Info("tracker connector not configured, skipping jira tools")
	}

	if cfg.Connectors.Helpdesk.BaseURL != "" {
		helpdesk := NewHelpdeskConnector(cfg.Connectors.Helpdesk.BaseURL,
			config.GetSecretOrEmpty(config.SecretHelpdeskKey))
		search = append(search, helpdesk.Tools()...)
	} else {
		logger.Info("helpdesk connector not configured, skipping freshdesk tools")
	}

	if cfg.Connectors.CodeHost.BaseURL != "" {
		codehost := NewCodeHostConnector(cfg.Connectors.CodeHost.BaseURL,
			config.GetSecretOrEmpty(config.SecretCodeHostToken), cfg.Connectors.CodeOrg)
		search = append(search, codehost.Tools()...)
	} else {
		logger.Info("codehost connector not configured, skipping github tools")
	}

	var cloudlogs *CloudLogsConnector
	if cfg.Connectors.CloudLogs.BaseURL != "" {
		cloudlogs = NewCloudLogsConnector(cfg.Connectors.CloudLogs.BaseURL,
			config.GetSecretOrEmpty(config.SecretCloudLogsToken), cfg.Connectors.CloudProj)
		search = append(search, cloudlogs.Tools()...)
	} else {
		logger.Info("cloud logs connector not configured, skipping gcloud tools")
	}

	var incidentExtra []Tool
	if cloudlogs != nil {
		incidentExtra = append(incidentExtra, cloudlogs.KubeTools()...)
	}
	if cfg.Connectors.Monitoring.BaseURL != "" {
		monitoring, err := NewMonitoringConnector(cfg.Connectors.Monitoring.BaseURL)
		if err != nil {
			return nil, err
		}
		incidentExtra = append(incidentExtra, monitoring.Tools()...)
	} else {
		logger.Info("monitoring connector not configured, skipping monitoring tools")
	}

	reg.RegisterAll(search...)
	reg.RegisterAll(incidentExtra...)

	searchNames := toolNames(search)
	menus := map[string][]string{
		MenuInvestigation: searchNames,
		MenuTriage:        triageNames(searchNames),
		MenuIncident:      append(append([]string{}, searchNames...), toolNames(incidentExtra)...),
	}

	if tracker != nil {
		actions := tracker.ActionTools()
		reg.RegisterAll(actions...)
		menus[MenuAction] = toolNames(actions)
	} else {
		menus[MenuAction] = nil
	}

	for menu, names := range menus {
		if err := reg.DefineMenu(menu, names); err != nil {
			return nil, err
		}
	}

	logger.Info("tool registry ready: %d tools registered", len(reg.List()))
	return reg, nil
}

// triageNames drops cloud and code tools. Triage works from tickets and docs;
// infrastructure access belongs to the deeper variants.
func triageNames(searchNames []string) []string {
	var names []string
	for _, name := range searchNames {
		if strings.HasPrefix(name, "gcloud_") || strings.HasPrefix(name, "github_") {
			continue
		}
		names = append(names, name)
	}
	return names
}

func toolNames(tools []Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}
