package sites

import (
	"fmt"
	"sort"

	"screenlist/pkg/browser"
	"screenlist/pkg/resolver"
	"screenlist/pkg/sources"

	"dario.cat/mergo"
)

// Profiles is the selector catalogue for listings and detail sources.
// The compiled-in defaults can be overridden from a json5 file.
type Profiles struct {
	Listers   map[string]sources.HTMLProfile `json:"listers"`
	Resolvers map[string]resolver.Profile    `json:"resolvers"`
}

// DefaultProfiles returns the compiled-in catalogue
func DefaultProfiles() Profiles {
	return Profiles{
		Listers: map[string]sources.HTMLProfile{
			"eztv":           EZTV(),
			"officialcharts": OfficialCharts(),
		},
		Resolvers: resolver.Builtin(),
	}
}

// Merge overlays override on the catalogue; a named profile is replaced as a whole
func (p Profiles) Merge(override Profiles) (Profiles, error) {
	out := Profiles{
		Listers:   make(map[string]sources.HTMLProfile, len(p.Listers)),
		Resolvers: make(map[string]resolver.Profile, len(p.Resolvers)),
	}
	for k, v := range p.Listers {
		out.Listers[k] = v
	}
	for k, v := range p.Resolvers {
		out.Resolvers[k] = v
	}
	if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
		return p, fmt.Errorf("failed to merge profiles: %w", err)
	}
	return out, nil
}

// Lister returns a listing profile by name
func (p Profiles) Lister(name string) (sources.HTMLProfile, error) {
	profile, ok := p.Listers[name]
	if !ok {
		return sources.HTMLProfile{}, fmt.Errorf("unknown listing profile %q", name)
	}
	if profile.Name == "" {
		profile.Name = name
	}
	return profile, nil
}

// Resolver returns a detail-source profile by name
func (p Profiles) Resolver(name string) (resolver.Profile, error) {
	profile, ok := p.Resolvers[name]
	if !ok {
		return resolver.Profile{}, fmt.Errorf("unknown resolver profile %q (have %v)", name, keys(p.Resolvers))
	}
	if profile.Name == "" {
		profile.Name = name
	}
	if err := profile.Validate(); err != nil {
		return resolver.Profile{}, err
	}
	return profile, nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EZTV lists recent TV episodes, newest first
func EZTV() sources.HTMLProfile {
	return sources.HTMLProfile{
		Name:         "eztv",
		BaseURL:      "https://eztvx.to/",
		PagePattern:  "page_%d",
		Ready:        "body",
		Entry:        "a.epinfo",
		NextPage:     "a[href*='page_%d']",
		EmptyMarkers: []string{"0 episodes found", "No results found"},
	}
}

// OfficialCharts lists the UK film downloads chart on a single page
func OfficialCharts() sources.HTMLProfile {
	return sources.HTMLProfile{
		Name:    "officialcharts",
		BaseURL: "https://www.officialcharts.com/charts/film-downloads-chart/",
		Ready:   ".description",
		Entry:   ".description",
		Title:   browser.FieldSpec{Selector: "a.chart-name > span:nth-of-type(2)"},
		Fields: map[string]browser.FieldSpec{
			"weeks": {Selector: "li.weeks > span"},
		},
		SinglePage: true,
	}
}
