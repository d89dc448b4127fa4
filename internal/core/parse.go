package core

import (
	"regexp"
	"strings"
)

// journalCategories is the fixed vocabulary the categorization stage asks
// the model to choose from.
var journalCategories = []string{
	"Emotional", "Family", "Grief", "Workplace", "Technology", "AI",
	"Spouse", "Kid", "Personal Reflection", "Health", "Finance",
	"Social", "Hobby", "Other",
}

// Categorization is the parsed result of the stage-2 fixed-format response.
type Categorization struct {
	Sentiment  string
	Topics     []string
	Categories []string
}

var (
	sentimentRe  = regexp.MustCompile(`(?im)^\s*Sentiment:\s*(.+)$`)
	topicsRe     = regexp.MustCompile(`(?im)^\s*Topics:\s*(.+)$`)
	categoriesRe = regexp.MustCompile(`(?im)^\s*Categories:\s*(.+)$`)
)

// ParseCategorization extracts sentiment, topics and categories from the
// model's line-oriented response. The second return is false when the
// response does not carry the expected structure; the caller decides the
// degrade policy, this function never fails loudly.
func ParseCategorization(response string) (Categorization, bool) {
	var cat Categorization

	m := sentimentRe.FindStringSubmatch(response)
	if m == nil {
		return Categorization{}, false
	}
	cat.Sentiment = cleanField(m[1])
	if cat.Sentiment == "" {
		return Categorization{}, false
	}

	if m := topicsRe.FindStringSubmatch(response); m != nil {
		cat.Topics = splitList(m[1])
	}
	if m := categoriesRe.FindStringSubmatch(response); m != nil {
		cat.Categories = splitList(m[1])
	}
	return cat, true
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[]")
	return strings.TrimSpace(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(cleanField(s), func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

const (
	dotStartMarker = "--- DOT START ---"
	dotEndMarker   = "--- DOT END ---"
)

var dotBlockRe = regexp.MustCompile(`(?is)---\s*DOT START\s*---(.*?)---\s*DOT END\s*---`)

// SplitAnalysis separates the free-text insight from the graph description
// in a stage-3 response. The DOT portion is empty when the markers are
// missing or the enclosed text is not a digraph; that is an empty result,
// not an error.
func SplitAnalysis(response string) (analysis, dot string) {
	loc := dotBlockRe.FindStringSubmatchIndex(response)
	if loc == nil {
		return strings.TrimSpace(response), ""
	}
	dot = strings.TrimSpace(response[loc[2]:loc[3]])
	before := strings.TrimSpace(response[:loc[0]])
	after := strings.TrimSpace(response[loc[1]:])
	switch {
	case before == "":
		analysis = after
	case after == "":
		analysis = before
	default:
		analysis = before + "\n" + after
	}
	if !strings.Contains(strings.ToLower(dot), "digraph") {
		dot = ""
	}
	return analysis, dot
}
