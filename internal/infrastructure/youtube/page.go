package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"PersonaPipeline/internal/domain"
)

const (
	watchURL         = "https://www.youtube.com/watch?v="
	initialDataToken = "ytInitialData"
)

// PageScraper lists channel videos from the public /videos page. It only
// sees the first page of the grid, which is enough for recent uploads.
type PageScraper struct {
	client *http.Client
}

// NewPageScraper wires an HTTP client.
func NewPageScraper(client *http.Client) *PageScraper {
	if client == nil {
		client = &http.Client{}
	}
	return &PageScraper{client: client}
}

// ListChannel returns up to maxItems videos in page order.
func (p *PageScraper) ListChannel(ctx context.Context, sourceURL string, maxItems int) ([]domain.Discovered, error) {
	pageURL, err := videosPageURL(sourceURL)
	if err != nil {
		return nil, err
	}

	doc, err := p.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	data, ok := extractInitialData(doc)
	if !ok {
		return nil, fmt.Errorf("channel page %s has no %s", pageURL, initialDataToken)
	}
	return parseInitialData(data, maxItems), nil
}

func (p *PageScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; PersonaPipeline/1.0)")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request channel page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func videosPageURL(sourceURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid channel url %q", sourceURL)
	}
	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, "/videos") {
		path += "/videos"
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// extractInitialData finds the inline script assigning ytInitialData and
// returns its JSON object.
func extractInitialData(doc *goquery.Document) (string, bool) {
	var data string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, initialDataToken)
		if idx < 0 {
			return true
		}
		rest := text[idx+len(initialDataToken):]
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			return true
		}
		end := strings.LastIndexByte(rest, '}')
		if end < start {
			return true
		}
		candidate := rest[start : end+1]
		if !gjson.Valid(candidate) {
			return true
		}
		data = candidate
		return false
	})
	return data, data != ""
}

func parseInitialData(data string, maxItems int) []domain.Discovered {
	var videos []domain.Discovered
	seen := map[string]struct{}{}

	tabs := gjson.Get(data, "contents.twoColumnBrowseResultsRenderer.tabs")
	tabs.ForEach(func(_, tab gjson.Result) bool {
		items := tab.Get("tabRenderer.content.richGridRenderer.contents")
		items.ForEach(func(_, item gjson.Result) bool {
			renderer := item.Get("richItemRenderer.content.videoRenderer")
			id := renderer.Get("videoId").String()
			if id == "" {
				return true
			}
			if _, ok := seen[id]; ok {
				return true
			}
			seen[id] = struct{}{}

			video := domain.Discovered{
				URL:         watchURL + id,
				Title:       firstText(renderer.Get("title")),
				ContentType: domain.ContentYouTubeVideo,
				Metadata: map[string]any{
					"video_id":  id,
					"published": renderer.Get("publishedTimeText.simpleText").String(),
					"views":     renderer.Get("viewCountText.simpleText").String(),
				},
			}
			if secs, ok := parseDuration(renderer.Get("lengthText.simpleText").String()); ok {
				video.DurationSecs = &secs
			}
			videos = append(videos, video)
			return maxItems <= 0 || len(videos) < maxItems
		})
		return maxItems <= 0 || len(videos) < maxItems
	})

	return videos
}

func firstText(node gjson.Result) string {
	if simple := node.Get("simpleText"); simple.Exists() {
		return simple.String()
	}
	var b strings.Builder
	node.Get("runs").ForEach(func(_, run gjson.Result) bool {
		b.WriteString(run.Get("text").String())
		return true
	})
	return b.String()
}

// parseDuration reads "ss", "m:ss" or "h:mm:ss".
func parseDuration(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	total := 0
	for _, part := range strings.Split(value, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
