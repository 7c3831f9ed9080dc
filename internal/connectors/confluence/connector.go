package confluence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
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
const DefaultPageSize = 100

// Connector enumerates and fetches Confluence pages.
type Connector struct {
	client   *resilience.Client
	baseURL  string
	pageSize int
}

// New creates a Confluence connector. All requests go through client.
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
	return domain.SourceConfluence
}

// Validate lists one space to check connectivity and credentials.
func (c *Connector) Validate(ctx context.Context) error {
	var out struct {
		Results []space `json:"results"`
	}
	if err := atlassian.GetJSON(ctx, c.client, "/rest/api/space", url.Values{"limit": {"1"}}, &out); err != nil {
		return fmt.Errorf("%w: confluence: %w", domain.ErrConnectorValidation, atlassian.AuthError(err))
	}
	return nil
}

// Enumerate returns every space holding pages with the label.
func (c *Connector) Enumerate(ctx context.Context, label string) ([]domain.Container, error) {
	hits, err := c.search(ctx, label)
	if err != nil {
		return nil, err
	}

	var containers []domain.Container
	index := make(map[string]int)
	seen := make(map[string]bool)

	for _, hit := range hits {
		if seen[hit.ID] {
			continue
		}
		i, ok := index[hit.Space.Key]
		if !ok {
			i = len(containers)
			index[hit.Space.Key] = i
			containers = append(containers, domain.Container{
				Kind: domain.SourceConfluence,
				Key:  hit.Space.Key,
				Name: hit.Space.Name,
			})
		}

		seen[hit.ID] = true
		items := []domain.WorkItem{{
			ID:        hit.ID,
			Kind:      domain.SourceConfluence,
			Container: hit.Space.Key,
			Title:     hit.Title,
			Depth:     0,
			Label:     label,
		}}
		items, err = c.descend(ctx, hit.ID, hit.Space.Key, label, 1, seen, items)
		if err != nil {
			return nil, err
		}
		containers[i].Items = append(containers[i].Items, items...)
	}

	logger.Info("confluence: label %q matched %d page(s) in %d space(s)", label, len(seen), len(containers))
	return containers, nil
}

// search pages through the CQL label search.
func (c *Connector) search(ctx context.Context, label string) ([]page, error) {
	cql := fmt.Sprintf(`type = page AND label = "%s"`, escapeCQL(label))

	var all []page
	for start := 0; ; {
		q := url.Values{
			"cql":    {cql},
			"limit":  {strconv.Itoa(c.pageSize)},
			"start":  {strconv.Itoa(start)},
			"expand": {"space,version"},
		}
		var resp searchResponse
		if err := atlassian.GetJSON(ctx, c.client, "/rest/api/content/search", q, &resp); err != nil {
			return nil, fmt.Errorf("confluence search: %w", atlassian.AuthError(err))
		}
		all = append(all, resp.Results...)
		logger.Debug("confluence: search batch at %d returned %d (total %d)", start, len(resp.Results), resp.TotalSize)

		if len(resp.Results) < c.pageSize || len(resp.Results) == 0 {
			break
		}
		start += len(resp.Results)
	}
	return all, nil
}

// descend appends the children of parentID in pre-order down to MaxConfluenceDepth.
func (c *Connector) descend(
	ctx context.Context,
	parentID, spaceKey, label string,
	depth int,
	seen map[string]bool,
	items []domain.WorkItem,
) ([]domain.WorkItem, error) {
	if depth > domain.MaxConfluenceDepth {
		return items, nil
	}

	children, err := c.children(ctx, parentID)
	if err != nil {
		if atlassian.IsAuthError(err) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		logger.Warn("confluence: listing children of %s failed: %v", parentID, err)
		return items, nil
	}

	for _, child := range children {
		if child.ID == "" || seen[child.ID] {
			continue
		}
		seen[child.ID] = true
		items = append(items, domain.WorkItem{
			ID:        child.ID,
			Kind:      domain.SourceConfluence,
			Container: spaceKey,
			Title:     child.Title,
			Depth:     depth,
			ParentID:  parentID,
			Label:     label,
		})
		items, err = c.descend(ctx, child.ID, spaceKey, label, depth+1, seen, items)
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (c *Connector) children(ctx context.Context, parentID string) ([]page, error) {
	path := "/rest/api/content/" + url.PathEscape(parentID) + "/child/page"

	var all []page
	for start := 0; ; {
		q := url.Values{
			"limit":  {strconv.Itoa(c.pageSize)},
			"start":  {strconv.Itoa(start)},
			"expand": {"version"},
		}
		var resp searchResponse
		if err := atlassian.GetJSON(ctx, c.client, path, q, &resp); err != nil {
			return nil, atlassian.AuthError(err)
		}
		all = append(all, resp.Results...)
		if len(resp.Results) < c.pageSize || len(resp.Results) == 0 {
			break
		}
		start += len(resp.Results)
	}
	return all, nil
}

// Fetch retrieves a page body, version metadata and attachment listing.
func (c *Connector) Fetch(ctx context.Context, item domain.WorkItem) (*domain.Content, error) {
	path := "/rest/api/content/" + url.PathEscape(item.ID)
	q := url.Values{"expand": {"body.storage,version,space"}}

	var p page
	if err := atlassian.GetJSON(ctx, c.client, path, q, &p); err != nil {
		return nil, err
	}
	if p.Status != "" && p.Status != "current" {
		return nil, fmt.Errorf("%w: page %s has status %q", domain.ErrItemSkipped, item.ID, p.Status)
	}

	attachments, err := c.attachments(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	title := p.Title
	if title == "" {
		title = item.Title
	}
	return &domain.Content{
		Title:       title,
		Body:        p.Body.Storage.Value,
		BodyFormat:  domain.BodyHTML,
		URL:         c.pageURL(item.ID),
		Author:      p.Version.By.DisplayName,
		UpdatedAt:   atlassian.ParseTime(p.Version.When),
		Version:     p.Version.Number,
		Attachments: attachments,
	}, nil
}

func (c *Connector) attachments(ctx context.Context, pageID string) ([]domain.Attachment, error) {
	path := "/rest/api/content/" + url.PathEscape(pageID) + "/child/attachment"

	var out []domain.Attachment
	for start := 0; ; {
		q := url.Values{
			"limit": {strconv.Itoa(c.pageSize)},
			"start": {strconv.Itoa(start)},
		}
		var list attachmentList
		if err := atlassian.GetJSON(ctx, c.client, path, q, &list); err != nil {
			if atlassian.IsNotFound(err) && start == 0 {
				return nil, nil
			}
			return nil, err
		}
		for _, a := range list.Results {
			out = append(out, c.attachment(a))
		}
		if len(list.Results) < c.pageSize || len(list.Results) == 0 {
			break
		}
		start += len(list.Results)
	}
	return out, nil
}

func (c *Connector) attachment(a attachment) domain.Attachment {
	mime := a.Extensions.MediaType
	if mime == "" {
		mime = a.Metadata.MediaType
	}
	var link string
	if a.Links.Download != "" {
		link = c.baseURL + a.Links.Download
	}
	return domain.Attachment{
		Filename: a.Title,
		MimeType: mime,
		Size:     a.Extensions.FileSize,
		URL:      link,
	}
}

func (c *Connector) pageURL(id string) string {
	return c.baseURL + "/pages/viewpage.action?pageId=" + url.QueryEscape(id)
}

// Close releases resources.
func (c *Connector) Close() error {
	return nil
}

func escapeCQL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
