// Package browser drives a Chromium-family browser over the DevTools
// protocol: it reports tabs, focuses and opens them, and injects or clears
// the focus overlay.
package browser

import (
	"sort"
	"time"
)

// Tab is one top-level page.
type Tab struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title,omitempty"`
	Active       bool      `json:"active"`
	LastAccessed time.Time `json:"last_accessed"`
}

// SortByLastAccessed orders tabs most recently accessed first. Ties keep
// their original order.
func SortByLastAccessed(tabs []Tab) {
	sort.SliceStable(tabs, func(i, j int) bool {
		return tabs[i].LastAccessed.After(tabs[j].LastAccessed)
	})
}

// probe is what the page reports about its own visibility.
type probe struct {
	visible bool
	focused bool
}

// markActive sets Active on at most one tab. A visible tab whose document
// has focus wins; without one, the most recently accessed visible tab is
// taken as the active tab of the current window.
func markActive(tabs []Tab, probes []probe) int {
	best := -1
	for i, p := range probes {
		if p.visible && p.focused {
			best = i
			break
		}
	}
	if best == -1 {
		for i, p := range probes {
			if !p.visible {
				continue
			}
			if best == -1 || tabs[i].LastAccessed.After(tabs[best].LastAccessed) {
				best = i
			}
		}
	}
	if best >= 0 {
		tabs[best].Active = true
	}
	return best
}
