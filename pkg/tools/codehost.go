package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// CodeHostConnector exposes the GitHub-style code host as research tools,
// scoped to a single organization.
type CodeHostConnector struct {
	client *restClient
	org    string
}

// NewCodeHostConnector creates the code host connector.
func NewCodeHostConnector(baseURL, token, org string) *CodeHostConnector {
	return &CodeHostConnector{
		client: newRESTClient(baseURL, "", token),
		org:    org,
	}
}

// Tools returns the code host tool set.
func (c *CodeHostConnector) Tools() []Tool {
	return []Tool{
		NewTool(ToolDefinition{
			Name:        "github_list_repos",
			Description: "List repositories in the configured GitHub org. Use as a discovery step when you do not know which repos exist, then use the returned repo names with github_search_code, github_get_file, github_list_directory.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"limit": {Type: "number", Description: "Optional. Max repos to return (default 100, max 100)"},
				},
			},
		}, c.listRepos),
		NewTool(ToolDefinition{
			Name:        "github_search_code",
			Description: "Search source code across the organization's GitHub repositories. Use when investigating how a component is implemented, finding where a class/function/config is defined, or locating code that could cause an error. Returns file paths, repo names, and snippets.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Search terms (e.g. class name, function name, error message, config key)"},
				},
				Required: []string{"query"},
			},
		}, c.searchCode),
		NewTool(ToolDefinition{
			Name:        "github_get_file",
			Description: "Read the content of a specific file in a GitHub repository. Use after github_search_code to read the full file. Repo format: owner/repo.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"repo": {Type: "string", Description: "Repository in owner/repo format (e.g. myorg/backend-core)"},
					"path": {Type: "string", Description: "File path in the repo (e.g. src/main/java/com/app/Service.java)"},
				},
				Required: []string{"repo", "path"},
			},
		}, c.getFile),
		NewTool(ToolDefinition{
			Name:        "github_list_directory",
			Description: "List files and folders at a path in a GitHub repository. Use to navigate repo structure. Leave path empty for repo root.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"repo": {Type: "string", Description: "Repository in owner/repo format"},
					"path": {Type: "string", Description: "Directory path (empty for root)"},
				},
				Required: []string{"repo"},
			},
		}, c.listDirectory),
		NewTool(ToolDefinition{
			Name:        "github_search_issues",
			Description: "Search GitHub issues and pull requests by text. Returns title, state, author, labels, and URL. Optional repo filter.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Search keywords for issues/PRs"},
					"repo":  {Type: "string", Description: "Optional. Limit to one repo (owner/repo)"},
				},
				Required: []string{"query"},
			},
		}, c.searchIssues),
		NewTool(ToolDefinition{
			Name:        "github_get_pull_request",
			Description: "Get full details of a pull request: description, status, reviewers, and list of changed files. Use when investigating recent code changes that might have introduced a bug.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"repo":        {Type: "string", Description: "Repository in owner/repo format"},
					"pull_number": {Type: "number", Description: "Pull request number"},
				},
				Required: []string{"repo", "pull_number"},
			},
		}, c.getPullRequest),
		NewTool(ToolDefinition{
			Name:        "github_list_commits",
			Description: "List recent commits for a repository, optionally filtered by path. Use to understand recent changes to a file or component.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"repo":  {Type: "string", Description: "Repository in owner/repo format"},
					"path":  {Type: "string", Description: "Optional. Limit to commits that touched this path"},
					"since": {Type: "string", Description: "Optional. ISO 8601 date to list only commits after this time"},
				},
				Required: []string{"repo"},
			},
		}, c.listCommits),
	}
}

// qualifyRepo accepts owner/repo or a bare repo name within the configured org.
func (c *CodeHostConnector) qualifyRepo(repo string) string {
	if strings.Contains(repo, "/") {
		return repo
	}
	return c.org + "/" + repo
}

func (c *CodeHostConnector) listRepos(ctx context.Context, args map[string]any) (string, error) {
	limit := IntArg(args, "limit", 100)
	if limit > 100 {
		limit = 100
	}

	var repos []struct {
		FullName    string `json:"full_name"`
		Description string `json:"description"`
		Language    string `json:"language"`
	}
	path := fmt.Sprintf("/orgs/%s/repos?sort=pushed&per_page=%d", url.PathEscape(c.org), limit)
	if err := c.client.getJSON(ctx, path, &repos); err != nil {
		return "", err
	}
	if len(repos) == 0 {
		return "No repositories found in org " + c.org + ".", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d repositories:\n", len(repos))
	for _, r := range repos {
		fmt.Fprintf(&sb, "- %s (%s) %s\n", r.FullName, r.Language, r.Description)
	}
	return sb.String(), nil
}

func (c *CodeHostConnector) searchCode(ctx context.Context, args map[string]any) (string, error) {
	query, err := RequiredStringArg(args, "query")
	if err != nil {
		return "", err
	}

	var resp struct {
		TotalCount int `json:"total_count"`
		Items      []struct {
			Path       string `json:"path"`
			Repository struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
		} `json:"items"`
	}
	q := url.QueryEscape(query + " org:" + c.org)
	if err := c.client.getJSON(ctx, "/search/code?per_page=10&q="+q, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "No code found for: " + query, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d matches (showing %d):\n", resp.TotalCount, len(resp.Items))
	for _, item := range resp.Items {
		fmt.Fprintf(&sb, "- %s: %s\n", item.Repository.FullName, item.Path)
	}
	return sb.String(), nil
}

func (c *CodeHostConnector) getFile(ctx context.Context, args map[string]any) (string, error) {
	repo, err := RequiredStringArg(args, "repo")
	if err != nil {
		return "", err
	}
	filePath, err := RequiredStringArg(args, "path")
	if err != nil {
		return "", err
	}

	var resp struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
		Size     int    `json:"size"`
	}
	path := "/repos/" + c.qualifyRepo(repo) + "/contents/" + filePath
	if err := c.client.getJSON(ctx, path, &resp); err != nil {
		return "", err
	}

	if resp.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("failed to decode file content: %w", err)
		}
		return string(decoded), nil
	}
	return resp.Content, nil
}

func (c *CodeHostConnector) listDirectory(ctx context.Context, args map[string]any) (string, error) {
	repo, err := RequiredStringArg(args, "repo")
	if err != nil {
		return "", err
	}

	var entries []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	path := "/repos/" + c.qualifyRepo(repo) + "/contents/" + StringArg(args, "path")
	if err := c.client.getJSON(ctx, path, &entries); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "- [%s] %s\n", e.Type, e.Name)
	}
	if sb.Len() == 0 {
		return "Directory is empty.", nil
	}
	return sb.String(), nil
}

func (c *CodeHostConnector) searchIssues(ctx context.Context, args map[string]any) (string, error) {
	query, err := RequiredStringArg(args, "query")
	if err != nil {
		return "", err
	}

	scope := " org:" + c.org
	if repo := StringArg(args, "repo"); repo != "" {
		scope = " repo:" + c.qualifyRepo(repo)
	}

	var resp struct {
		Items []struct {
			Title   string `json:"title"`
			State   string `json:"state"`
			HTMLURL string `json:"html_url"`
			User    struct {
				Login string `json:"login"`
			} `json:"user"`
			Labels []struct {
				Name string `json:"name"`
			} `json:"labels"`
		} `json:"items"`
	}
	if err := c.client.getJSON(ctx, "/search/issues?per_page=10&q="+url.QueryEscape(query+scope), &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "No issues or PRs found for: " + query, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d issues/PRs:\n", len(resp.Items))
	for _, item := range resp.Items {
		labels := make([]string, 0, len(item.Labels))
		for _, l := range item.Labels {
			labels = append(labels, l.Name)
		}
		fmt.Fprintf(&sb, "- [%s] %s by %s [%s] %s\n",
			item.State, item.Title, item.User.Login, strings.Join(labels, ","), item.HTMLURL)
	}
	return sb.String(), nil
}

func (c *CodeHostConnector) getPullRequest(ctx context.Context, args map[string]any) (string, error) {
	repo, err := RequiredStringArg(args, "repo")
	if err != nil {
		return "", err
	}
	pullNumber := IntArg(args, "pull_number", 0)
	if pullNumber == 0 {
		return "", fmt.Errorf("missing required parameter %q", "pull_number")
	}

	fullRepo := c.qualifyRepo(repo)
	var pr struct {
		Title  string `json:"title"`
		State  string `json:"state"`
		Body   string `json:"body"`
		Merged bool   `json:"merged"`
		User   struct {
			Login string `json:"login"`
		} `json:"user"`
	}
	prPath := "/repos/" + fullRepo + "/pulls/" + strconv.Itoa(pullNumber)
	if err := c.client.getJSON(ctx, prPath, &pr); err != nil {
		return "", err
	}

	var files []struct {
		Filename  string `json:"filename"`
		Status    string `json:"status"`
		Additions int    `json:"additions"`
		Deletions int    `json:"deletions"`
	}
	if err := c.client.getJSON(ctx, prPath+"/files?per_page=30", &files); err != nil {
		return "", err
	}

	var sb strings.Builder
	state := pr.State
	if pr.Merged {
		state = "merged"
	}
	fmt.Fprintf(&sb, "PR #%d [%s] %s by %s\n\n%s\n", pullNumber, state, pr.Title, pr.User.Login, pr.Body)
	if len(files) > 0 {
		fmt.Fprintf(&sb, "\nChanged files (%d):\n", len(files))
		for _, f := range files {
			fmt.Fprintf(&sb, "- %s (%s, +%d/-%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)
		}
	}
	return sb.String(), nil
}

func (c *CodeHostConnector) listCommits(ctx context.Context, args map[string]any) (string, error) {
	repo, err := RequiredStringArg(args, "repo")
	if err != nil {
		return "", err
	}

	path := "/repos/" + c.qualifyRepo(repo) + "/commits?per_page=15"
	if p := StringArg(args, "path"); p != "" {
		path += "&path=" + url.QueryEscape(p)
	}
	if since := StringArg(args, "since"); since != "" {
		path += "&since=" + url.QueryEscape(since)
	}

	var commits []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name string `json:"name"`
				Date string `json:"date"`
			} `json:"author"`
		} `json:"commit"`
	}
	if err := c.client.getJSON(ctx, path, &commits); err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return "No commits found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent commits:\n")
	for _, cm := range commits {
		subject := cm.Commit.Message
		if idx := strings.IndexByte(subject, '\n'); idx >= 0 {
			subject = subject[:idx]
		}
		sha := cm.SHA
		if len(sha) > 8 {
			sha = sha[:8]
		}
		fmt.Fprintf(&sb, "- %s %s (%s, %s)\n", sha, subject, cm.Commit.Author.Name, cm.Commit.Author.Date)
	}
	return sb.String(), nil
}
