package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"screenlist/pkg/cache"
	"screenlist/pkg/domain"
	"screenlist/pkg/identity"
)

//go:embed templates/report.html.tmpl
var templates embed.FS

// Column fields understood by the renderer
const (
	FieldTitle    = "title"
	FieldRating   = "rating"
	FieldGenre    = "genre"
	FieldDuration = "duration"
	FieldWeeks    = "weeks"
	FieldYear     = "year"
)

// Column is one table column: a header and the field shown under it
type Column struct {
	Title string `json:"title"`
	Field string `json:"field"`
}

// Metadata configures the report page around the table
type Metadata struct {
	PageID          string
	Icon            string
	Title           string
	Subtitle        string
	SourceURL       string
	SourceName      string
	LastUpdatedFile string
	LastUpdated     time.Time
	Columns         []Column
}

type row struct {
	Seq         int
	Anchor      string
	Key         string
	DetailURL   string
	Rating      string
	Episode     string
	Cells       []string
	Description string
}

type page struct {
	Meta    Metadata
	Updated string
	Rows    []row
	Colspan int
}

// Renderer turns ordered entries into an HTML report
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer uses the template at path, or the built-in layout when path is empty
func NewRenderer(path string) (*Renderer, error) {
	var (
		tmpl *template.Template
		err  error
	)
	if path == "" {
		tmpl, err = template.ParseFS(templates, "templates/report.html.tmpl")
	} else {
		tmpl, err = template.ParseFiles(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render renders with the built-in layout
func Render(entries []domain.Entry, meta Metadata) ([]byte, error) {
	r, err := NewRenderer("")
	if err != nil {
		return nil, err
	}
	return r.Render(entries, meta)
}

// Render produces the report document. Output depends only on entries and meta.
func (r *Renderer) Render(entries []domain.Entry, meta Metadata) ([]byte, error) {
	if len(meta.Columns) == 0 {
		meta.Columns = DefaultColumns()
	}

	p := page{Meta: meta, Colspan: len(meta.Columns), Rows: make([]row, 0, len(entries))}
	if !meta.LastUpdated.IsZero() {
		p.Updated = meta.LastUpdated.UTC().Format(time.RFC3339)
	}

	for seq, e := range entries {
		cells := make([]string, 0, len(meta.Columns))
		for _, c := range meta.Columns {
			cells = append(cells, cellValue(e, c.Field))
		}
		p.Rows = append(p.Rows, row{
			Seq:         seq,
			Anchor:      identity.Anchor(e.Record.Key),
			Key:         string(e.Record.Key),
			DetailURL:   e.Record.DetailURL,
			Rating:      ratingAttr(e.Record.Rating),
			Episode:     e.Item.EpisodeTag(),
			Cells:       cells,
			Description: e.Record.DescriptionOrEmpty(),
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// DefaultColumns is the TV layout: title, rating, genre, duration
func DefaultColumns() []Column {
	return []Column{
		{Title: "Title", Field: FieldTitle},
		{Title: "Rating", Field: FieldRating},
		{Title: "Genre", Field: FieldGenre},
		{Title: "Duration", Field: FieldDuration},
	}
}

func cellValue(e domain.Entry, field string) string {
	rec := e.Record
	switch field {
	case FieldTitle:
		name := rec.DisplayName
		if name == "" {
			name = e.Item.SearchName()
		}
		if rec.Year != "" {
			return name + " (" + rec.Year + ")"
		}
		return name
	case FieldRating:
		if rec.Rating == nil {
			return "???"
		}
		return strconv.FormatFloat(*rec.Rating, 'f', 1, 64)
	case FieldGenre:
		return rec.GenreOrEmpty()
	case FieldDuration:
		return rec.DurationOrEmpty()
	case FieldWeeks:
		return strconv.Itoa(e.Item.Weeks)
	case FieldYear:
		return rec.Year
	}
	return ""
}

func ratingAttr(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', -1, 64)
}

type lastUpdated struct {
	Page    string `json:"page"`
	Updated string `json:"updated"`
}

// LastUpdatedMarker returns the small JSON document the page reads to show its age
func LastUpdatedMarker(meta Metadata) ([]byte, error) {
	data, err := json.Marshal(lastUpdated{
		Page:    meta.PageID,
		Updated: meta.LastUpdated.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode last-updated marker: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteReport writes body to dir/name atomically and returns the file path
func WriteReport(dir, name string, body []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := cache.WriteFileAtomic(path, body); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// ReadReport reads a previously written report; it is used by the report server
func ReadReport(dir, name string) ([]byte, error) {
	clean := filepath.Base(filepath.Clean("/" + name))
	return os.ReadFile(filepath.Join(dir, clean))
}
