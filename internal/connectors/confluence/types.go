package confluence

type searchResponse struct {
	Results   []page `json:"results"`
	Start     int    `json:"start"`
	Limit     int    `json:"limit"`
	Size      int    `json:"size"`
	TotalSize int    `json:"totalSize"`
}

type page struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Status  string  `json:"status"`
	Title   string  `json:"title"`
	Space   space   `json:"space"`
	Version version `json:"version"`
	Body    body    `json:"body"`
	Links   links   `json:"_links"`
}

type space struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type version struct {
	Number int    `json:"number"`
	When   string `json:"when"`
	By     user   `json:"by"`
}

type user struct {
	DisplayName string `json:"displayName"`
}

type body struct {
	Storage struct {
		Value          string `json:"value"`
		Representation string `json:"representation"`
	} `json:"storage"`
}

type links struct {
	WebUI string `json:"webui"`
	Base  string `json:"base"`
}

type attachmentList struct {
	Results []attachment `json:"results"`
	Size    int          `json:"size"`
}

type attachment struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Metadata struct {
		MediaType string `json:"mediaType"`
	} `json:"metadata"`
	Extensions struct {
		MediaType string `json:"mediaType"`
		FileSize  int64  `json:"fileSize"`
	} `json:"extensions"`
	Links struct {
		Download string `json:"download"`
	} `json:"_links"`
}
