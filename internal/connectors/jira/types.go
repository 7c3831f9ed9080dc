package jira

type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []issue `json:"issues"`
}

type issue struct {
	ID             string         `json:"id"`
	Key            string         `json:"key"`
	Fields         fields         `json:"fields"`
	RenderedFields renderedFields `json:"renderedFields"`
}

type fields struct {
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	Project     project      `json:"project"`
	Status      *named       `json:"status"`
	Priority    *named       `json:"priority"`
	IssueType   *named       `json:"issuetype"`
	Assignee    *person      `json:"assignee"`
	Reporter    *person      `json:"reporter"`
	Labels      []string     `json:"labels"`
	Components  []named      `json:"components"`
	FixVersions []named      `json:"fixVersions"`
	Created     string       `json:"created"`
	Updated     string       `json:"updated"`
	DueDate     string       `json:"duedate"`
	Comment     commentPage  `json:"comment"`
	Attachment  []attachment `json:"attachment"`
}

type renderedFields struct {
	Description string `json:"description"`
}

type project struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type named struct {
	Name string `json:"name"`
}

type person struct {
	DisplayName string `json:"displayName"`
}

type commentPage struct {
	Comments []comment `json:"comments"`
	Total    int       `json:"total"`
}

type comment struct {
	Author  person `json:"author"`
	Body    string `json:"body"`
	Created string `json:"created"`
}

type attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
}
