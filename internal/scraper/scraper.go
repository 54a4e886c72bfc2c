package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// Extracted content below this length is treated as a failed scrape.
	minContentLength = 100
)

// ErrNoJobDescription means the page fetched fine but no usable posting text was found.
var ErrNoJobDescription = errors.New("unable to extract job description from page")

// Selector groups tried in order; the first hit with enough text wins.
var descriptionSelectors = []string{
	"div.description__text",
	"[class*='job-description'], [class*='posting-description'], [class*='job-details']",
	"[id*='job-description'], [id*='job-details']",
	"[class*='description'], [id*='description']",
	"main",
	"article",
	"body",
}

// Service fetches job postings and extracts their description text.
type Service struct {
	httpClient *http.Client
}

func NewService() *Service {
	return &Service{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ExtractJobDescription downloads the posting page and returns its cleaned text.
func (s *Service) ExtractJobDescription(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch job posting: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch job posting: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse job posting: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	for _, selector := range descriptionSelectors {
		var text string
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text = cleanText(sel.Text())
			return len(text) <= minContentLength
		})
		if len(text) > minContentLength {
			return text, nil
		}
	}
	return "", ErrNoJobDescription
}

// ValidateURL checks the string parses with both a scheme and a host.
func ValidateURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// cleanText trims every line and drops empty ones.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
