package favicon

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/net/html"
)

const (
	// maxFetchBytes caps icon payloads and page reads alike.
	maxFetchBytes = 2 << 20
	// maxSourceDim rejects decorative images masquerading as icons.
	maxSourceDim  = 512
	thumbnailSize = 32

	browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:144.0) Gecko/20100101 Firefox/144.0"
)

// rawExtensions names cache files for payloads the image decoders
// cannot handle.
var rawExtensions = map[string]string{
	"image/x-icon": ".ico",
	"image/webp":   ".webp",
	"image/bmp":    ".bmp",
}

// Service downloads, shrinks and caches website favicons. Failures
// of any kind degrade to an empty path; the caller stores a bookmark
// without an icon and moves on.
type Service struct {
	cacheDir string
	client   *http.Client
}

// NewService creates a favicon service caching into cacheDir.
func NewService(cacheDir string) *Service {
	return &Service{
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchAndCache finds a favicon for the given page and caches it,
// returning the relative cache path or "" if no usable icon exists.
// Icon links declared in the page HTML are tried first, then the
// well-known locations on the page's host.
func (s *Service) FetchAndCache(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}

	domain := parsed.Host
	base := parsed.Scheme + "://" + parsed.Host

	if body, finalURL, ok := s.fetchHTML(pageURL); ok {
		// Redirects move the icon's home along with the page.
		if finalURL.Host != "" {
			domain = finalURL.Host
			base = finalURL.Scheme + "://" + finalURL.Host
		}
		for _, iconURL := range iconLinks(body, finalURL) {
			if path := s.fetchAndSave(iconURL, domain); path != "" {
				return path
			}
		}
	}

	for _, location := range []string{"/favicon.ico", "/apple-touch-icon.png", "/favicon.png"} {
		if path := s.fetchAndSave(base+location, domain); path != "" {
			return path
		}
	}

	log.Printf("favicon: no usable icon for %s", domain)
	return ""
}

func (s *Service) get(rawURL string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	return s.client.Do(req)
}

// fetchHTML downloads the page itself. The returned URL is the final
// one after redirects, for resolving relative icon hrefs.
func (s *Service) fetchHTML(pageURL string) ([]byte, *url.URL, bool) {
	resp, err := s.get(pageURL)
	if err != nil {
		return nil, nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, false
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return nil, nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, nil, false
	}
	return body, resp.Request.URL, true
}

// iconLinks collects the icon candidates a page declares, resolved
// against the page URL. Any rel token containing "icon" counts:
// icon, shortcut icon, apple-touch-icon.
func iconLinks(body []byte, pageURL *url.URL) []string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "link" {
			var rel, href string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "rel":
					rel = attr.Val
				case "href":
					href = attr.Val
				}
			}
			if href != "" && relIsIcon(rel) {
				if resolved, err := pageURL.Parse(href); err == nil {
					links = append(links, resolved.String())
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links
}

func relIsIcon(rel string) bool {
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if strings.Contains(token, "icon") {
			return true
		}
	}
	return false
}

// fetchAndSave downloads one icon candidate and caches it. Sites
// often answer missing icons with an HTML error page and a 200, so
// only image-ish content types are accepted.
func (s *Service) fetchAndSave(iconURL, domain string) string {
	resp, err := s.get(iconURL)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "image") && !strings.Contains(contentType, "octet-stream") {
		return ""
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil || len(payload) == 0 || len(payload) > maxFetchBytes {
		return ""
	}

	return s.save(payload, domain)
}

// save caches an icon payload under the domain's name. Decodable
// images are shrunk to a 32px PNG thumbnail; anything else (ICO
// mostly) is cached as-is, since browsers render those fine.
func (s *Service) save(payload []byte, domain string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(domain)

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return s.saveRaw(payload, name)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxSourceDim || bounds.Dy() > maxSourceDim {
		return ""
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumbnail(img)); err != nil {
		return ""
	}
	return s.writeFile(name+".png", buf.Bytes())
}

func (s *Service) saveRaw(payload []byte, name string) string {
	sniffed := http.DetectContentType(payload)
	if !strings.HasPrefix(sniffed, "image/") && sniffed != "application/octet-stream" {
		return ""
	}
	ext := rawExtensions[sniffed]
	if ext == "" {
		ext = ".ico"
	}
	return s.writeFile(name+ext, payload)
}

func (s *Service) writeFile(filename string, data []byte) string {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return ""
	}
	if err := os.WriteFile(filepath.Join(s.cacheDir, filename), data, 0o644); err != nil {
		return ""
	}
	return "favicons/" + filename
}

// thumbnail scales an image down to fit within 32x32, preserving
// aspect ratio. Images already small enough pass through untouched.
func thumbnail(src image.Image) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= thumbnailSize && height <= thumbnailSize {
		return src
	}

	longest := width
	if height > longest {
		longest = height
	}
	scaledW := width * thumbnailSize / longest
	scaledH := height * thumbnailSize / longest
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
