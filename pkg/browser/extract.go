package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FieldSpec describes how to read one value from a document
type FieldSpec struct {
	Selector string `json:"selector"`

	// Attr reads an attribute instead of text.
	Attr string `json:"attr,omitempty"`

	// OwnText reads only the element's direct text nodes, skipping children.
	OwnText bool `json:"ownText,omitempty"`

	// Children reads each child element of the match as a separate value.
	Children bool `json:"children,omitempty"`

	// All joins every match with ", " instead of taking the first.
	All bool `json:"all,omitempty"`
}

// Extract reads the values a spec selects under root, trimmed and without empties.
// An empty selector reads root itself.
func Extract(root *goquery.Selection, spec FieldSpec) []string {
	if root == nil {
		return nil
	}

	sel := root
	if spec.Selector != "" {
		sel = root.Find(spec.Selector)
	}
	if !spec.All {
		sel = sel.First()
	}
	if spec.Children {
		sel = sel.Children()
	}

	var values []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if v := readValue(s, spec); v != "" {
			values = append(values, v)
		}
	})
	return values
}

// ExtractString reads a spec and joins multiple values with ", "
func ExtractString(root *goquery.Selection, spec FieldSpec) string {
	return strings.Join(Extract(root, spec), ", ")
}

func readValue(s *goquery.Selection, spec FieldSpec) string {
	if spec.Attr != "" {
		v, _ := s.Attr(spec.Attr)
		return strings.TrimSpace(v)
	}
	if spec.OwnText {
		return strings.TrimSpace(ownText(s))
	}
	return CollapseSpace(s.Text())
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return CollapseSpace(b.String())
}

// CollapseSpace trims and squeezes whitespace runs to single spaces
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
