package metadata

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	maxFetchBytes = 2 << 20

	browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Result is the outcome of a title lookup. Network and HTTP failures
// land here as Success=false with a message, never as an error value.
type Result struct {
	Title   string `json:"title"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Service fetches page titles for the bookmark form's autofill.
type Service struct {
	client *http.Client
}

// NewService creates a metadata service.
func NewService() *Service {
	return &Service{client: &http.Client{Timeout: 10 * time.Second}}
}

// FetchPageTitle pulls a page and extracts its best title: og:title
// first, then twitter:title, then the <title> tag.
func (s *Service) FetchPageTitle(pageURL string) Result {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return Result{Error: err.Error()}
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Error: "unexpected status " + resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return Result{Error: err.Error()}
	}

	return Result{Title: extractTitle(body), Success: true}
}

// extractTitle walks the parsed document once and keeps the first
// occurrence of each title source.
func extractTitle(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var ogTitle, twitterTitle, docTitle string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var property, name, content string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "property":
						property = attr.Val
					case "name":
						name = attr.Val
					case "content":
						content = attr.Val
					}
				}
				if ogTitle == "" && property == "og:title" {
					ogTitle = content
				}
				if twitterTitle == "" && name == "twitter:title" {
					twitterTitle = content
				}
			case "title":
				if docTitle == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					docTitle = n.FirstChild.Data
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	for _, title := range []string{ogTitle, twitterTitle, docTitle} {
		if trimmed := strings.TrimSpace(title); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
