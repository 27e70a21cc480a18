// Package domains classifies URLs against the distracting and productive
// hostname lists.
package domains

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed domains.yaml
var defaultDomains []byte

// List is the on-disk shape of the domain lists.
type List struct {
	Distracting []string `yaml:"distracting"`
	Productive  []string `yaml:"productive"`
}

// Classification is the result of classifying one URL.
type Classification struct {
	// Hostname is the normalized hostname, empty when the URL has none.
	Hostname      string `json:"hostname"`
	IsDistracting bool   `json:"is_distracting"`
	IsProductive  bool   `json:"is_productive"`
}

// Classifier matches URLs against immutable hostname lists.
type Classifier struct {
	distracting []string
	productive  []string
}

// New builds a classifier, normalizing every entry.
func New(list List) *Classifier {
	return &Classifier{
		distracting: normalizeAll(list.Distracting),
		productive:  normalizeAll(list.Productive),
	}
}

// Default returns the classifier for the built-in lists.
func Default() *Classifier {
	c, err := Parse(defaultDomains)
	if err != nil {
		panic(fmt.Sprintf("embedded domains.yaml is invalid: %v", err))
	}
	return c
}

// Load reads lists from a YAML file. An empty path yields the built-in lists.
func Load(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domains file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML lists.
func Parse(data []byte) (*Classifier, error) {
	var list List
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse domains: %w", err)
	}
	return New(list), nil
}

// Classify reports both predicates for rawURL. It never fails: a URL
// without a parseable hostname is neither distracting nor productive.
func (c *Classifier) Classify(rawURL string) Classification {
	host, ok := Hostname(rawURL)
	if !ok {
		return Classification{}
	}
	return Classification{
		Hostname:      host,
		IsDistracting: matchAny(host, c.distracting),
		IsProductive:  matchAny(host, c.productive),
	}
}

// IsDistracting reports whether rawURL is on the distracting list.
func (c *Classifier) IsDistracting(rawURL string) bool {
	return c.Classify(rawURL).IsDistracting
}

// IsProductive reports whether rawURL is on the productive list.
func (c *Classifier) IsProductive(rawURL string) bool {
	return c.Classify(rawURL).IsProductive
}

// Lists returns copies of the normalized lists.
func (c *Classifier) Lists() List {
	return List{
		Distracting: append([]string(nil), c.distracting...),
		Productive:  append([]string(nil), c.productive...),
	}
}

// Hostname extracts the normalized hostname of rawURL.
func Hostname(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := NormalizeHost(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}

// NormalizeHost lowercases h and strips a leading "www." and trailing dot.
func NormalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimSuffix(h, ".")
	return strings.TrimPrefix(h, "www.")
}

// IsInternal reports browser-internal pages that are never tracked or blocked.
func IsInternal(rawURL string) bool {
	raw := strings.TrimSpace(rawURL)
	if raw == "" || raw == "about:newtab" || raw == "about:blank" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "chrome", "chrome-extension", "chrome-search", "chrome-untrusted",
		"edge", "brave", "devtools", "about":
		return true
	}
	return u.Hostname() == "newtab"
}

func matchAny(host string, list []string) bool {
	for _, d := range list {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, d := range in {
		d = NormalizeHost(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
