package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// WikiConnector exposes the Confluence-style knowledge base as research tools.
type WikiConnector struct {
	client *restClient
}

// NewWikiConnector creates the wiki connector against a Confluence-compatible API.
func NewWikiConnector(baseURL, user, token string) *WikiConnector {
	return &WikiConnector{client: newRESTClient(baseURL, user, token)}
}

// Tools returns the wiki tool set.
func (w *WikiConnector) Tools() []Tool {
	return []Tool{
		NewTool(ToolDefinition{
			Name:        "confluence_search",
			Description: "Search Confluence pages by keyword. Returns page titles, IDs, and URLs.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Search keywords (try different phrasings for better results)"},
				},
				Required: []string{"query"},
			},
		}, w.search),
		NewTool(ToolDefinition{
			Name:        "confluence_get_page",
			Description: "Read the full content of a Confluence page by its numeric ID. ALWAYS use this after searching to read the actual content.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"page_id": {Type: "string", Description: "Numeric Confluence page ID from search results"},
				},
				Required: []string{"page_id"},
			},
		}, w.getPage),
		NewTool(ToolDefinition{
			Name:        "confluence_get_page_children",
			Description: "List child/sub-pages of a parent Confluence page. Use when a page is an index or overview and the real content is in its children.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"page_id": {Type: "string", Description: "Numeric Confluence page ID of the parent page"},
				},
				Required: []string{"page_id"},
			},
		}, w.getPageChildren),
	}
}

type wikiSearchResponse struct {
	Results []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Links struct {
			WebUI string `json:"webui"`
		} `json:"_links"`
	} `json:"results"`
}

func (w *WikiConnector) search(ctx context.Context, args map[string]any) (string, error) {
	query, err := RequiredStringArg(args, "query")
	if err != nil {
		return "", err
	}

	cql := url.QueryEscape(fmt.Sprintf(`text ~ "%s"`, strings.ReplaceAll(query, `"`, "")))
	var resp wikiSearchResponse
	if err := w.client.getJSON(ctx, "/rest/api/content/search?limit=10&cql="+cql, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "No Confluence pages found for: " + query, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d pages:\n", len(resp.Results))
	for _, r := range resp.Results {
		fmt.Fprintf(&sb, "- %s (id: %s) %s\n", r.Title, r.ID, r.Links.WebUI)
	}
	return sb.String(), nil
}

type wikiPageResponse struct {
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

func (w *WikiConnector) getPage(ctx context.Context, args map[string]any) (string, error) {
	pageID, err := RequiredStringArg(args, "page_id")
	if err != nil {
		return "", err
	}

	var resp wikiPageResponse
	if err := w.client.getJSON(ctx, "/rest/api/content/"+url.PathEscape(pageID)+"?expand=body.storage", &resp); err != nil {
		return "", err
	}

	content := stripMarkup(resp.Body.Storage.Value)
	return fmt.Sprintf("# %s\n\n%s", resp.Title, content), nil
}

type wikiChildrenResponse struct {
	Results []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"results"`
}

func (w *WikiConnector) getPageChildren(ctx context.Context, args map[string]any) (string, error) {
	pageID, err := RequiredStringArg(args, "page_id")
	if err != nil {
		return "", err
	}

	var resp wikiChildrenResponse
	if err := w.client.getJSON(ctx, "/rest/api/content/"+url.PathEscape(pageID)+"/child/page?limit=25", &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "Page has no child pages.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d child pages:\n", len(resp.Results))
	for _, r := range resp.Results {
		fmt.Fprintf(&sb, "- %s (id: %s)\n", r.Title, r.ID)
	}
	return sb.String(), nil
}

// stripMarkup removes angle-bracket markup from storage-format page bodies.
// Crude but sufficient for feeding page text to the reasoning model.
func stripMarkup(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteRune(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
