package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ctxexport/internal/connectors/atlassian"
	"github.com/custodia-labs/ctxexport/internal/core/domain"
	"github.com/custodia-labs/ctxexport/internal/resilience"
)

type fakeJira struct {
	issues []map[string]any
	status int
}

func fakeIssue(key, project, summary string) map[string]any {
	return map[string]any{
		"key": key,
		"fields": map[string]any{
			"summary":     summary,
			"description": "plain " + summary,
			"project":     map[string]any{"key": project, "name": project + " Project"},
			"status":      map[string]any{"name": "In Progress"},
			"priority":    map[string]any{"name": "High"},
			"issuetype":   map[string]any{"name": "Story"},
			"assignee":    nil,
			"reporter":    map[string]any{"displayName": "Grace"},
			"labels":      []string{"Sprint42"},
			"updated":     "2024-03-15T10:00:00.000+0000",
			"comment": map[string]any{"comments": []any{
				map[string]any{"author": map[string]any{"displayName": "Linus"}, "body": "LGTM", "created": "2024-03-14T09:00:00.000+0000"},
			}},
			"attachment": []any{map[string]any{"filename": "log.txt", "mimeType": "text/plain", "size": 12, "content": "https://x/log.txt"}},
		},
		"renderedFields": map[string]any{"description": "<p>rendered " + summary + "</p>"},
	}
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	switch {
	case r.URL.Path == "/rest/api/2/myself":
		_, _ = w.Write([]byte(`{"displayName":"Bot"}`))
	case r.URL.Path == "/rest/api/2/search":
		start, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
		end := min(start+limit, len(f.issues))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"startAt": start, "maxResults": limit, "total": len(f.issues), "issues": f.issues[start:end],
		})
	case strings.HasPrefix(r.URL.Path, "/rest/api/2/issue/"):
		key := strings.TrimPrefix(r.URL.Path, "/rest/api/2/issue/")
		for _, is := range f.issues {
			if is["key"] == key {
				_ = json.NewEncoder(w).Encode(is)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestConnector(t *testing.T, f *fakeJira, pageSize int) *Connector {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	tr, err := atlassian.NewTransport(atlassian.Config{
		BaseURL:     srv.URL,
		Credentials: domain.Credentials{Token: "pat"},
		Timeouts:    domain.TimeoutConfig{Connect: time.Second, Read: time.Second},
	})
	require.NoError(t, err)

	cfg := domain.DefaultExportConfig()
	cfg.Retry.MaxRetries = 0
	client := resilience.NewClient(tr, resilience.ClientConfig{
		Upstream:       "jira",
		Retry:          cfg.Retry,
		RateLimit:      cfg.RateLimit,
		CircuitBreaker: cfg.CircuitBreaker,
	})
	return New(client, srv.URL, pageSize)
}

func TestConnector_EnumerateGroupsByProject(t *testing.T) {
	f := &fakeJira{issues: []map[string]any{
		fakeIssue("ENG-10", "ENG", "ten"),
		fakeIssue("OPS-1", "OPS", "ops"),
		fakeIssue("ENG-2", "ENG", "two"),
	}}
	c := newTestConnector(t, f, 2)

	containers, err := c.Enumerate(context.Background(), "Sprint42")
	require.NoError(t, err)
	require.Len(t, containers, 2)

	assert.Equal(t, "ENG", containers[0].Key)
	assert.Equal(t, "ENG Project", containers[0].Name)
	require.Len(t, containers[0].Items, 2)
	assert.Equal(t, "ENG-2", containers[0].Items[0].ID)
	assert.Equal(t, "ENG-10", containers[0].Items[1].ID)
	assert.Equal(t, "jira:ENG-2", containers[0].Items[0].Key())

	assert.Equal(t, "OPS", containers[1].Key)
	assert.Len(t, containers[1].Items, 1)
}

func TestConnector_Fetch(t *testing.T) {
	f := &fakeJira{issues: []map[string]any{fakeIssue("ENG-1", "ENG", "Login")}}
	c := newTestConnector(t, f, 50)

	content, err := c.Fetch(context.Background(), domain.WorkItem{ID: "ENG-1", Kind: domain.SourceJira, Container: "ENG"})
	require.NoError(t, err)
	assert.Equal(t, "ENG-1: Login", content.Title)
	assert.Equal(t, "<p>rendered Login</p>", content.Body)
	assert.Equal(t, domain.BodyHTML, content.BodyFormat)
	assert.Equal(t, "Grace", content.Author)
	assert.True(t, strings.HasSuffix(content.URL, "/browse/ENG-1"))
	require.Len(t, content.Comments, 1)
	assert.Equal(t, "Linus", content.Comments[0].Author)
	require.Len(t, content.Attachments, 1)
	assert.Equal(t, "log.txt", content.Attachments[0].Filename)

	fieldMap := map[string]string{}
	for _, fl := range content.Fields {
		fieldMap[fl.Name] = fl.Value
	}
	assert.Equal(t, "In Progress", fieldMap["Status"])
	assert.Equal(t, "Unassigned", fieldMap["Assignee"])
	assert.Equal(t, "Sprint42", fieldMap["Labels"])

	_, err = c.Fetch(context.Background(), domain.WorkItem{ID: "ENG-404", Kind: domain.SourceJira, Container: "ENG"})
	assert.True(t, atlassian.IsNotFound(err))
	assert.Contains(t, err.Error(), "Issue does not exist")
}

func TestConnector_Validate(t *testing.T) {
	c := newTestConnector(t, &fakeJira{}, 50)
	assert.NoError(t, c.Validate(context.Background()))

	bad := newTestConnector(t, &fakeJira{status: http.StatusForbidden}, 50)
	assert.ErrorIs(t, bad.Validate(context.Background()), domain.ErrAuthInvalid)
}

func TestLessKey(t *testing.T) {
	assert.True(t, LessKey("ENG-2", "ENG-10"))
	assert.False(t, LessKey("ENG-10", "ENG-2"))
	assert.True(t, LessKey("ABC-99", "ENG-1"))
	assert.True(t, LessKey("X", "Y"))
}
