package jira

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/ctxexport/internal/connectors/atlassian"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/core/ports/driven"
	"github.com/custodia-labs/ctxexport/internal/logger"
	"github.com/custodia-labs/ctxexport/internal/resilience"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 50

// issueFields are requested when fetching a single issue.
var issueFields = strings.Join([]string{
	"summary", "description", "project", "status", "priority", "issuetype",
	"assignee", "reporter", "labels", "components", "fixVersions",
	"created", "updated", "duedate", "comment", "attachment",
}, ",")

// Connector enumerates and fetches Jira issues.
type Connector struct {
	client   *resilience.Client
	baseURL  string
	pageSize int
}

// New creates a Jira connector. All requests go through client.
func New(client *resilience.Client, baseURL string, pageSize int) *Connector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Connector{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
	}
}

// Kind returns the upstream kind.
func (c *Connector) Kind() domain.SourceKind {
	return domain.SourceJira
}

// Validate fetches the current user to check connectivity and credentials.
func (c *Connector) Validate(ctx context.Context) error {
	var me struct {
		DisplayName string `json:"displayName"`
	}
	if err := atlassian.GetJSON(ctx, c.client, "/rest/api/2/myself", nil, &me); err != nil {
		return fmt.Errorf("%w: jira: %w", domain.ErrConnectorValidation, atlassian.AuthError(err))
	}
	logger.Debug("jira: authenticated as %s", me.DisplayName)
	return nil
}

// Enumerate returns every project holding issues with the label.
func (c *Connector) Enumerate(ctx context.Context, label string) ([]domain.Container, error) {
	jql := fmt.Sprintf(`labels = "%s" ORDER BY key ASC`, escapeJQL(label))

	var containers []domain.Container
	index := make(map[string]int)
	seen := make(map[string]bool)

	for startAt := 0; ; {
		q := url.Values{
			"jql":        {jql},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(c.pageSize)},
			"fields":     {"summary,project"},
		}
		var resp searchResponse
		if err := atlassian.GetJSON(ctx, c.client, "/rest/api/2/search", q, &resp); err != nil {
			return nil, fmt.Errorf("jira search: %w", atlassian.AuthError(err))
		}
		logger.Debug("jira: search batch at %d returned %d (total %d)", startAt, len(resp.Issues), resp.Total)

		for _, is := range resp.Issues {
			if is.Key == "" || seen[is.Key] {
				continue
			}
			seen[is.Key] = true

			projectKey := is.Fields.Project.Key
			if projectKey == "" {
				projectKey = projectOf(is.Key)
			}
			i, ok := index[projectKey]
			if !ok {
				i = len(containers)
				index[projectKey] = i
				containers = append(containers, domain.Container{
					Kind: domain.SourceJira,
					Key:  projectKey,
					Name: is.Fields.Project.Name,
				})
			}
			containers[i].Items = append(containers[i].Items, domain.WorkItem{
				ID:        is.Key,
				Kind:      domain.SourceJira,
				Container: projectKey,
				Title:     is.Fields.Summary,
				Label:     label,
			})
		}

		startAt += len(resp.Issues)
		if len(resp.Issues) == 0 || len(resp.Issues) < c.pageSize || (resp.Total > 0 && startAt >= resp.Total) {
			break
		}
	}

	for i := range containers {
		items := containers[i].Items
		sort.SliceStable(items, func(a, b int) bool {
			return LessKey(items[a].ID, items[b].ID)
		})
	}

	logger.Info("jira: label %q matched %d issue(s) in %d project(s)", label, len(seen), len(containers))
	return containers, nil
}

// Fetch retrieves an issue with rendered description, comments and attachments.
func (c *Connector) Fetch(ctx context.Context, item domain.WorkItem) (*domain.Content, error) {
	path := "/rest/api/2/issue/" + url.PathEscape(item.ID)
	q := url.Values{"expand": {"renderedFields"}, "fields": {issueFields}}

	var is issue
	if err := atlassian.GetJSON(ctx, c.client, path, q, &is); err != nil {
		return nil, err
	}

	body, format := is.RenderedFields.Description, domain.BodyHTML
	if body == "" {
		body, format = is.Fields.Description, domain.BodyText
	}

	content := &domain.Content{
		Title:      is.Key + ": " + is.Fields.Summary,
		Body:       body,
		BodyFormat: format,
		URL:        c.baseURL + "/browse/" + is.Key,
		UpdatedAt:  atlassian.ParseTime(is.Fields.Updated),
		Fields:     issueFieldList(is.Fields),
	}
	if is.Fields.Reporter != nil {
		content.Author = is.Fields.Reporter.DisplayName
	}
	for _, cm := range is.Fields.Comment.Comments {
		content.Comments = append(content.Comments, domain.Comment{
			Author:  cm.Author.DisplayName,
			Body:    cm.Body,
			Created: atlassian.ParseTime(cm.Created),
		})
	}
	for _, a := range is.Fields.Attachment {
		content.Attachments = append(content.Attachments, domain.Attachment{
			Filename: a.Filename,
			MimeType: a.MimeType,
			Size:     a.Size,
			URL:      a.Content,
		})
	}
	return content, nil
}

func issueFieldList(f fields) []domain.Field {
	name := func(n *named, fallback string) string {
		if n == nil || n.Name == "" {
			return fallback
		}
		return n.Name
	}
	display := func(p *person, fallback string) string {
		if p == nil || p.DisplayName == "" {
			return fallback
		}
		return p.DisplayName
	}
	names := func(ns []named) string {
		out := make([]string, 0, len(ns))
		for _, n := range ns {
			out = append(out, n.Name)
		}
		return strings.Join(out, ", ")
	}

	list := []domain.Field{
		{Name: "Type", Value: name(f.IssueType, "Unknown")},
		{Name: "Status", Value: name(f.Status, "Unknown")},
		{Name: "Priority", Value: name(f.Priority, "None")},
		{Name: "Assignee", Value: display(f.Assignee, "Unassigned")},
		{Name: "Reporter", Value: display(f.Reporter, "Unknown")},
	}
	if len(f.Labels) > 0 {
		list = append(list, domain.Field{Name: "Labels", Value: strings.Join(f.Labels, ", ")})
	}
	if len(f.Components) > 0 {
		list = append(list, domain.Field{Name: "Components", Value: names(f.Components)})
	}
	if len(f.FixVersions) > 0 {
		list = append(list, domain.Field{Name: "Fix Versions", Value: names(f.FixVersions)})
	}
	if f.Created != "" {
		list = append(list, domain.Field{Name: "Created", Value: f.Created})
	}
	if f.Updated != "" {
		list = append(list, domain.Field{Name: "Updated", Value: f.Updated})
	}
	if f.DueDate != "" {
		list = append(list, domain.Field{Name: "Due", Value: f.DueDate})
	}
	return list
}

// Close releases resources.
func (c *Connector) Close() error {
	return nil
}

// LessKey orders issue keys by project, then numerically (ENG-2 before ENG-10).
func LessKey(a, b string) bool {
	pa, na := splitKey(a)
	pb, nb := splitKey(b)
	if pa != pb {
		return pa < pb
	}
	if na != nb {
		return na < nb
	}
	return a < b
}

func splitKey(key string) (string, int) {
	i := strings.LastIndexByte(key, '-')
	if i < 0 {
		return key, 0
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return key, 0
	}
	return key[:i], n
}

func projectOf(key string) string {
	p, _ := splitKey(key)
	return p
}

func escapeJQL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
