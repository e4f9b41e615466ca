// Package docs holds the built-in documentation shown by `fleet docs`.
package docs

import (
	"fmt"
	"strings"
)

// Topic holds a single documentation article.
type Topic struct {
	Name    string // short slug used as CLI argument
	Title   string
	Summary string // one-line description for topic listing
	Content string // plain text, no ANSI
}

// All returns every topic in display order.
func All() []Topic {
	return topics
}

// Get looks up a topic by name, case-insensitively.
func Get(name string) (Topic, error) {
	for _, t := range topics {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("unknown topic %q, run 'fleet docs' to list available topics", name)
}

// Search returns the topics whose title, summary or content mention term,
// ignoring case, in display order.
func Search(term string) []Topic {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var out []Topic
	for _, t := range topics {
		if strings.Contains(strings.ToLower(t.Title+"\n"+t.Summary+"\n"+t.Content), term) {
			out = append(out, t)
		}
	}
	return out
}
