package confluence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/connectors/atlassian"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/resilience"
)

type fakePage struct {
	id       string
	title    string
	space    string
	status   string
	children []string
	labelled bool

	// attachments defaults to a single diagram.png.
	attachments []string
}

type fakeConfluence struct {
	pages map[string]*fakePage
	order []string
	auth  bool

	attachmentCalls atomic.Int32
}

func (f *fakeConfluence) add(p *fakePage) {
	if p.status == "" {
		p.status = "current"
	}
	if f.pages == nil {
		f.pages = make(map[string]*fakePage)
	}
	f.pages[p.id] = p
	f.order = append(f.order, p.id)
}

func (f *fakeConfluence) pageJSON(p *fakePage) map[string]any {
	return map[string]any{
		"id":     p.id,
		"type":   "page",
		"status": p.status,
		"title":  p.title,
		"space":  map[string]any{"key": p.space, "name": p.space + " Space"},
		"version": map[string]any{
			"number": 3,
			"when":   "2024-03-15T10:00:00.000Z",
			"by":     map[string]any{"displayName": "Ada"},
		},
		"body": map[string]any{"storage": map[string]any{"value": "<p>" + p.title + "</p>", "representation": "storage"}},
	}
}

func paginate(r *http.Request, all []map[string]any) map[string]any {
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 25
	}
	end := min(start+limit, len(all))
	if start > end {
		start = end
	}
	return map[string]any{"results": all[start:end], "start": start, "limit": limit, "size": end - start, "totalSize": len(all)}
}

func (f *fakeConfluence) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.auth {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	path := r.URL.Path
	var out any
	switch {
	case path == "/rest/api/space":
		out = map[string]any{"results": []any{map[string]any{"key": "ENG"}}}
	case path == "/rest/api/content/search":
		var hits []map[string]any
		for _, id := range f.order {
			if f.pages[id].labelled {
				hits = append(hits, f.pageJSON(f.pages[id]))
			}
		}
		out = paginate(r, hits)
	case strings.HasSuffix(path, "/child/page"):
		id := strings.Split(strings.TrimPrefix(path, "/rest/api/content/"), "/")[0]
		var kids []map[string]any
		for _, cid := range f.pages[id].children {
			kids = append(kids, f.pageJSON(f.pages[cid]))
		}
		out = paginate(r, kids)
	case strings.HasSuffix(path, "/child/attachment"):
		f.attachmentCalls.Add(1)
		id := strings.Split(strings.TrimPrefix(path, "/rest/api/content/"), "/")[0]
		p, ok := f.pages[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		names := p.attachments
		if names == nil {
			names = []string{"diagram.png"}
		}
		all := make([]map[string]any, 0, len(names))
		for _, name := range names {
			all = append(all, map[string]any{
				"title":      name,
				"extensions": map[string]any{"mediaType": "image/png", "fileSize": 2048},
				"_links":     map[string]any{"download": "/download/attachments/" + id + "/" + name},
			})
		}
		out = paginate(r, all)
	case strings.HasPrefix(path, "/rest/api/content/"):
		p, ok := f.pages[strings.TrimPrefix(path, "/rest/api/content/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		out = f.pageJSON(p)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func newTestConnector(t *testing.T, f *fakeConfluence, pageSize int) *Connector {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	tr, err := atlassian.NewTransport(atlassian.Config{
		BaseURL:     srv.URL,
		Credentials: domain.Credentials{Username: "u", Token: "t"},
		Timeouts:    domain.TimeoutConfig{Connect: time.Second, Read: time.Second},
	})
	require.NoError(t, err)

	cfg := domain.DefaultExportConfig()
	cfg.Retry.MaxRetries = 0
	client := resilience.NewClient(tr, resilience.ClientConfig{
		Upstream:       "confluence",
		Retry:          cfg.Retry,
		RateLimit:      cfg.RateLimit,
		CircuitBreaker: cfg.CircuitBreaker,
	})
	return New(client, srv.URL, pageSize)
}

func keys(items []domain.WorkItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID + "@" + strconv.Itoa(it.Depth)
	}
	return out
}

func TestConnector_EnumerateGroupsBySpaceInPreOrder(t *testing.T) {
	f := &fakeConfluence{}
	f.add(&fakePage{id: "1", title: "Plan", space: "ENG", labelled: true, children: []string{"2"}})
	f.add(&fakePage{id: "2", title: "Child", space: "ENG", children: []string{"3"}})
	f.add(&fakePage{id: "3", title: "Grandchild", space: "ENG", labelled: true})
	f.add(&fakePage{id: "5", title: "Runbook", space: "OPS", labelled: true})
	f.add(&fakePage{id: "4", title: "Retro", space: "ENG", labelled: true})

	c := newTestConnector(t, f, 2)
	containers, err := c.Enumerate(context.Background(), "Sprint42")
	require.NoError(t, err)
	require.Len(t, containers, 2)

	assert.Equal(t, "ENG", containers[0].Key)
	assert.Equal(t, "ENG Space", containers[0].Name)
	assert.Equal(t, []string{"1@0", "2@1", "3@2", "4@0"}, keys(containers[0].Items))
	assert.Equal(t, "2", containers[0].Items[2].ParentID)

	assert.Equal(t, "OPS", containers[1].Key)
	assert.Equal(t, []string{"5@0"}, keys(containers[1].Items))

	for _, it := range containers[0].Items {
		assert.NoError(t, it.Validate())
		assert.Equal(t, "Sprint42", it.Label)
	}
}

func TestConnector_EnumerateStopsAtMaxDepth(t *testing.T) {
	f := &fakeConfluence{}
	f.add(&fakePage{id: "p0", space: "ENG", labelled: true, children: []string{"p1"}})
	for i := 1; i <= 6; i++ {
		p := &fakePage{id: "p" + strconv.Itoa(i), space: "ENG"}
		if i < 6 {
			p.children = []string{"p" + strconv.Itoa(i+1)}
		}
		f.add(p)
	}

	c := newTestConnector(t, f, 10)
	containers, err := c.Enumerate(context.Background(), "L")
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, []string{"p0@0", "p1@1", "p2@2", "p3@3", "p4@4"}, keys(containers[0].Items))
}

func TestConnector_EnumerateNoMatches(t *testing.T) {
	c := newTestConnector(t, &fakeConfluence{}, 10)
	containers, err := c.Enumerate(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, containers)
}

func TestConnector_Fetch(t *testing.T) {
	f := &fakeConfluence{}
	f.add(&fakePage{id: "1", title: "Plan", space: "ENG", labelled: true})
	f.add(&fakePage{id: "9", title: "Old", space: "ENG", status: "archived"})
	c := newTestConnector(t, f, 10)

	content, err := c.Fetch(context.Background(), domain.WorkItem{ID: "1", Kind: domain.SourceConfluence, Container: "ENG"})
	require.NoError(t, err)
	assert.Equal(t, "Plan", content.Title)
	assert.Equal(t, "<p>Plan</p>", content.Body)
	assert.Equal(t, domain.BodyHTML, content.BodyFormat)
	assert.Equal(t, "Ada", content.Author)
	assert.Equal(t, 3, content.Version)
	assert.Equal(t, 2024, content.UpdatedAt.Year())
	assert.Contains(t, content.URL, "/pages/viewpage.action?pageId=1")
	require.Len(t, content.Attachments, 1)
	assert.Equal(t, "diagram.png", content.Attachments[0].Filename)
	assert.Equal(t, int64(2048), content.Attachments[0].Size)

	_, err = c.Fetch(context.Background(), domain.WorkItem{ID: "9", Kind: domain.SourceConfluence, Container: "ENG"})
	assert.ErrorIs(t, err, domain.ErrItemSkipped)

	_, err = c.Fetch(context.Background(), domain.WorkItem{ID: "404", Kind: domain.SourceConfluence, Container: "ENG"})
	assert.True(t, atlassian.IsNotFound(err))
}

func TestConnector_FetchPagesThroughAttachments(t *testing.T) {
	f := &fakeConfluence{}
	f.add(&fakePage{id: "1", title: "Plan", space: "ENG", labelled: true,
		attachments: []string{"a.png", "b.png", "c.png", "d.png", "e.png"}})
	c := newTestConnector(t, f, 2)

	content, err := c.Fetch(context.Background(), domain.WorkItem{ID: "1", Kind: domain.SourceConfluence, Container: "ENG"})
	require.NoError(t, err)

	names := make([]string, len(content.Attachments))
	for i, a := range content.Attachments {
		names[i] = a.Filename
	}
	assert.Equal(t, []string{"a.png", "b.png", "c.png", "d.png", "e.png"}, names)
	assert.Equal(t, int32(3), f.attachmentCalls.Load())
	assert.True(t, strings.HasSuffix(content.Attachments[4].URL, "/download/attachments/1/e.png"))
}

func TestConnector_ValidateRejectedCredentials(t *testing.T) {
	c := newTestConnector(t, &fakeConfluence{auth: true}, 10)
	err := c.Validate(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
	assert.ErrorIs(t, err, domain.ErrConnectorValidation)

	_, err = c.Enumerate(context.Background(), "L")
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
}

func TestConnector_Validate(t *testing.T) {
	c := newTestConnector(t, &fakeConfluence{}, 10)
	assert.NoError(t, c.Validate(context.Background()))
	assert.Equal(t, domain.SourceConfluence, c.Kind())
	assert.NoError(t, c.Close())
}

func TestEscapeCQL(t *testing.T) {
	assert.Equal(t, `a\"b\\c`, escapeCQL(`a"b\c`))
}
