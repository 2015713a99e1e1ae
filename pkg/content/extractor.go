package content

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// ErrNoText is returned when a page has no readable text
var ErrNoText = errors.New("no readable text in page")

// Extractor defines an interface for extracting title and text from HTML content
type Extractor interface {
	ExtractTitle(htmlContent string) (string, error)
	ExtractExcerpt(htmlContent string) (string, error)
}

// DefaultExtractor implements the Extractor interface with readability
type DefaultExtractor struct {
	// MaxRunes bounds excerpt length; zero means DefaultExcerptRunes.
	MaxRunes int
}

// DefaultExcerptRunes is the excerpt length used when none is configured
const DefaultExcerptRunes = 300

// NewDefaultExtractor creates a new default extractor
func NewDefaultExtractor() *DefaultExtractor {
	return &DefaultExtractor{MaxRunes: DefaultExcerptRunes}
}

// ExtractTitle extracts the page title using the default extraction logic
func (e *DefaultExtractor) ExtractTitle(htmlContent string) (string, error) {
	return ExtractTitle(htmlContent)
}

// ExtractExcerpt extracts a short summary of the page's main text
func (e *DefaultExtractor) ExtractExcerpt(htmlContent string) (string, error) {
	maxRunes := e.MaxRunes
	if maxRunes <= 0 {
		maxRunes = DefaultExcerptRunes
	}
	return Excerpt(htmlContent, maxRunes)
}

// ExtractText extracts the main text from HTML content
func ExtractText(htmlContent string) (string, error) {
	article, err := readability.FromReader(strings.NewReader(htmlContent), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	return strings.TrimSpace(article.TextContent), nil
}

// Excerpt returns the start of the page's main text, cut at a sentence or word
// boundary so that it fits in maxRunes.
func Excerpt(htmlContent string, maxRunes int) (string, error) {
	text, err := ExtractText(htmlContent)
	if err != nil {
		return "", err
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", ErrNoText
	}
	return truncate(text, maxRunes), nil
}

func truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxRunes])

	// prefer ending on a full sentence in the second half of the window
	if i := strings.LastIndexAny(cut, ".!?"); i >= len(cut)/2 {
		return cut[:i+1]
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}

// ExtractTitle extracts the page title with fallback mechanisms
func ExtractTitle(htmlContent string) (string, error) {
	// Try readability first
	article, err := readability.FromReader(strings.NewReader(htmlContent), nil)
	if err == nil {
		title := strings.TrimSpace(article.Title)
		if title != "" {
			return title, nil
		}
	}

	// Fallback: Try parsing HTML directly with goquery
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title, nil
	}

	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title, nil
	}

	if title, exists := doc.Find("meta[property='og:title']").Attr("content"); exists && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title), nil
	}

	return "", fmt.Errorf("title not found in HTML")
}
