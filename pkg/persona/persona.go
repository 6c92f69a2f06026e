// Package persona resolves requester context from a directory endpoint with a
// SQLite-backed cache. Resolution never fails; unknown requesters get a
// neutral context.
package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"atlas/pkg/logx"
	"atlas/pkg/persistence"
)

// Labels produced by classify.
const (
	LabelTechOps     = "TechOps"
	LabelEngineering = "Engineering"
	LabelOther       = "Other"
)

// Context is the resolved requester profile, read-only input to the router
// and the round-0 research hint.
type Context struct {
	Department   string
	Team         string
	PersonaLabel string
	FirstName    string
}

// Neutral is the degradation default when lookup fails or finds nothing.
func Neutral() Context {
	return Context{PersonaLabel: LabelOther}
}

func classify(department, team string) string {
	if team == LabelTechOps {
		return LabelTechOps
	}
	if department == LabelEngineering {
		return LabelEngineering
	}
	return LabelOther
}

// SearchHint returns the one-line research prefix for round 0.
func (c Context) SearchHint() string {
	switch c.PersonaLabel {
	case LabelTechOps:
		return "Requester: TechOps (1st level support; helpdesk ticket context). "
	case LabelEngineering:
		return "Requester: Engineering; focus on existing tracker/wiki and reproduction context. "
	default:
		return "Requester: Other department; gather triage info and helpdesk link if missing. "
	}
}

// ResponderParagraph returns the persona paragraph injected into the
// responder's system prompt.
func (c Context) ResponderParagraph() string {
	var from string
	if name := strings.TrimSpace(c.FirstName); name != "" {
		from = "The requester is **" + name + "**, from "
	} else {
		from = "The requester is from "
	}

	switch c.PersonaLabel {
	case LabelEngineering:
		return from + "**Engineering**. If urgency or whether they are currently blocked and waiting " +
			"for support is not clear, ask. Route or suggest ownership to the engineering squad that " +
			"owns the affected component. Address the user by name in your response when you know it."
	case LabelTechOps:
		return from + "**TechOps** (1st level support). They report helpdesk tickets. " +
			"Your role is to help decide whether an engineering issue should be created or it's a " +
			"simple fix. Help quantify impact when possible. " +
			"Address the user by name in your response when you know it."
	default:
		return from + "another department (e.g. Finance, Operations). " +
			"Triage and gather information: ask for the helpdesk ticket link if missing, impact " +
			"(numbers, dates), and steps; then summarize and suggest routing or attach to an " +
			"existing ticket. Address the user by name in your response when you know it."
	}
}

// directoryRecord is the JSON shape returned by the directory endpoint.
type directoryRecord struct {
	FirstName  string `json:"first_name"`
	Department string `json:"department"`
	Team       string `json:"team"`
}

// Resolver looks up requester context, caching hits in SQLite.
type Resolver struct {
	httpClient   *http.Client
	logger       *logx.Logger
	directoryURL string
	cacheTTL     time.Duration
}

// NewResolver creates a persona resolver. An empty directoryURL disables
// lookups entirely; every requester then resolves to the neutral context.
func NewResolver(directoryURL string, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logx.NewLogger("persona"),
		directoryURL: directoryURL,
		cacheTTL:     cacheTTL,
	}
}

// Resolve returns the requester context for an email. It never returns an
// error; any failure degrades to the neutral context.
func (r *Resolver) Resolve(ctx context.Context, email string) Context {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || r.directoryURL == "" {
		return Neutral()
	}

	if persistence.IsInitialized() {
		cached, ok, err := persistence.GetCachedPersona(email, r.cacheTTL)
		if err != nil {
			r.logger.Warn("persona cache read failed for %s: %v", email, err)
		} else if ok {
			return Context{
				Department:   cached.Department,
				Team:         cached.Team,
				PersonaLabel: classify(cached.Department, cached.Team),
				FirstName:    cached.FirstName,
			}
		}
	}

	record, err := r.lookup(ctx, email)
	if err != nil {
		r.logger.Warn("directory lookup failed for %s, using neutral context: %v", email, err)
		return Neutral()
	}
	if record == nil {
		return Neutral()
	}

	if persistence.IsInitialized() {
		if err := persistence.PutCachedPersona(email, persistence.CachedPersona{
			FirstName:  record.FirstName,
			Department: record.Department,
			Team:       record.Team,
		}); err != nil {
			r.logger.Warn("persona cache write failed for %s: %v", email, err)
		}
	}

	return Context{
		Department:   record.Department,
		Team:         record.Team,
		PersonaLabel: classify(record.Department, record.Team),
		FirstName:    record.FirstName,
	}
}

func (r *Resolver) lookup(ctx context.Context, email string) (*directoryRecord, error) {
	reqURL := r.directoryURL + "?email=" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var record directoryRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}
	return &record, nil
}
