// Package query normalises free-text search queries and extracts lightweight
// intent and entity signals before retrieval.
package query

import (
	"regexp"
	"strings"
)

// Intent classifies what the caller is trying to do.
type Intent string

const (
	IntentLookup  Intent = "lookup"  // "what does X do", "describe X"
	IntentExecute Intent = "execute" // "run X", "call X with ..."
	IntentSearch  Intent = "search"  // "find a tool that ..."
	IntentUnknown Intent = "unknown"
)

var (
	executeVerbs = regexp.MustCompile(`(?i)^(run|execute|call|invoke|use)\b`)
	lookupVerbs  = regexp.MustCompile(`(?i)^(what|describe|explain|show|how does)\b`)
	searchVerbs  = regexp.MustCompile(`(?i)^(find|search|look for|is there)\b`)
	quotedLit    = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	skillMention = regexp.MustCompile(`\b([a-z][a-z0-9_-]{1,63})\b`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Processed is the output of query processing: a normalised, expanded query
// string plus the signals extracted from the raw input.
type Processed struct {
	Raw      string
	Expanded string
	Intent   Intent
	Literals []string
	Mentions []string
}

// Process normalises whitespace and case, classifies intent from lightweight
// pattern rules, extracts quoted literals and skill-name-shaped mentions,
// and builds an expanded query string for retrieval.
func Process(raw string) Processed {
	normalized := normalize(raw)

	p := Processed{
		Raw:      raw,
		Intent:   classify(normalized),
		Literals: extractLiterals(raw),
		Mentions: extractMentions(normalized),
	}
	p.Expanded = expand(normalized, p.Literals)
	return p
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespace.ReplaceAllString(s, " ")
}

func classify(normalized string) Intent {
	switch {
	case executeVerbs.MatchString(normalized):
		return IntentExecute
	case lookupVerbs.MatchString(normalized):
		return IntentLookup
	case searchVerbs.MatchString(normalized):
		return IntentSearch
	default:
		return IntentUnknown
	}
}

func extractLiterals(raw string) []string {
	matches := quotedLit.FindAllStringSubmatch(raw, -1)
	literals := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[1] != "" {
			literals = append(literals, m[1])
		} else if m[2] != "" {
			literals = append(literals, m[2])
		}
	}
	return literals
}

func extractMentions(normalized string) []string {
	matches := skillMention.FindAllString(normalized, -1)
	seen := make(map[string]bool, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.Contains(m, "-") || strings.Contains(m, "_") {
			if !seen[m] {
				seen[m] = true
				mentions = append(mentions, m)
			}
		}
	}
	return mentions
}

// expand appends extracted literals back onto the normalised query so exact
// phrase matches carry through to the sparse retriever without altering the
// dense embedding input's overall meaning.
func expand(normalized string, literals []string) string {
	if len(literals) == 0 {
		return normalized
	}
	return normalized + " " + strings.Join(literals, " ")
}
