package textfilter

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Severity grades a word for the content ratings that must hide it.
type Severity int

const (
	// Mild words are hidden for G and PG only.
	Mild Severity = iota
	// Strong words are hidden for every filtered rating.
	Strong
)

type entry struct {
	replacement string
	severity    Severity
}

// words maps each filtered word to a family-friendly alternative.
var words = map[string]entry{
	"damn":         {"dang", Mild},
	"hell":         {"heck", Mild},
	"crap":         {"crud", Mild},
	"piss":         {"ticked", Mild},
	"ass":          {"butt", Mild},
	"bastard":      {"jerk", Mild},
	"goddamn":      {"gosh-dang", Mild},
	"christ":       {"crikey", Mild},
	"jesus christ": {"jeez", Mild},
	"prick":        {"jerk", Mild},
	"jackass":      {"jerk", Mild},
	"dumbass":      {"dummy", Mild},
	"smartass":     {"smarty", Mild},
	"badass":       {"tough", Mild},
	"douche":       {"jerk", Mild},
	"douchebag":    {"jerk", Mild},

	"fuck":         {"fudge", Strong},
	"motherfucker": {"mother-trucker", Strong},
	"shit":         {"shoot", Strong},
	"bullshit":     {"baloney", Strong},
	"horseshit":    {"nonsense", Strong},
	"dipshit":      {"dummy", Strong},
	"shithead":     {"jerk", Strong},
	"bitch":        {"jerk", Strong},
	"asshole":      {"jerk", Strong},
	"dick":         {"jerk", Strong},
	"dickhead":     {"jerk", Strong},
	"cock":         {"[censored]", Strong},
	"pussy":        {"[censored]", Strong},
	"tits":         {"[censored]", Strong},
	"boobs":        {"[censored]", Strong},
	"whore":        {"[censored]", Strong},
	"slut":         {"[censored]", Strong},
	"fag":          {"[censored]", Strong},
	"retard":       {"[censored]", Strong},
	"nigger":       {"[censored]", Strong},
	"nigga":        {"[censored]", Strong},
	"spic":         {"[censored]", Strong},
	"chink":        {"[censored]", Strong},
	"kike":         {"[censored]", Strong},
}

// Filter replaces profanity in NPC replies for one content rating.
type Filter struct {
	pattern *regexp.Regexp
}

// ForRating returns the filter for a content rating, or nil when replies
// at that rating are passed through untouched.
func ForRating(rating string) *Filter {
	var minSeverity Severity
	switch normalizeRating(rating) {
	case "G", "PG":
		minSeverity = Mild
	case "PG13":
		minSeverity = Strong
	default:
		return nil
	}
	return newFilter(minSeverity)
}

// ShouldFilterContent determines if content should be filtered based on rating
func ShouldFilterContent(rating string) bool {
	return ForRating(rating) != nil
}

func normalizeRating(rating string) string {
	rating = strings.ToUpper(strings.TrimSpace(rating))
	return strings.ReplaceAll(rating, "-", "")
}

func newFilter(minSeverity Severity) *Filter {
	var list []string
	for w, e := range words {
		if e.severity >= minSeverity {
			list = append(list, w)
		}
	}
	// longest first so compounds win over their stems
	slices.SortFunc(list, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	for i, w := range list {
		list[i] = regexp.QuoteMeta(w)
	}
	return &Filter{
		pattern: regexp.MustCompile(`(?i)\b(` + strings.Join(list, "|") + `)(es|s)?\b`),
	}
}

// Apply replaces every filtered word in text, keeping its case and plural
// suffix.
func (f *Filter) Apply(text string) string {
	if f == nil || text == "" {
		return text
	}
	return f.pattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := f.pattern.FindStringSubmatch(match)
		word, suffix := sub[1], sub[2]
		e, ok := words[strings.ToLower(word)]
		if !ok {
			return match
		}
		if strings.HasPrefix(e.replacement, "[") {
			return e.replacement
		}
		return preserveCase(word, e.replacement) + suffixFor(suffix, e.replacement)
	})
}

// Contains reports whether text has any word this filter would replace.
func (f *Filter) Contains(text string) bool {
	return f != nil && f.pattern.MatchString(text)
}

// suffixFor keeps a plural ending, folding "es" to "s" for replacements that
// do not need it.
func suffixFor(suffix, replacement string) string {
	if suffix == "" || strings.HasSuffix(replacement, "]") {
		return ""
	}
	if strings.EqualFold(suffix, "es") && !strings.HasSuffix(replacement, "s") {
		suffix = suffix[1:]
	}
	return suffix
}

// preserveCase applies the case pattern of the original word to the replacement
func preserveCase(original, replacement string) string {
	title := cases.Title(language.English)
	switch {
	case strings.ToUpper(original) == original:
		return strings.ToUpper(replacement)
	case strings.ToLower(original) == original:
		return replacement
	case title.String(strings.ToLower(original)) == original:
		return title.String(replacement)
	}

	out := []rune(replacement)
	orig := []rune(original)
	for i, r := range out {
		if i < len(orig) && unicode.IsUpper(orig[i]) {
			out[i] = unicode.ToUpper(r)
		} else {
			out[i] = unicode.ToLower(r)
		}
	}
	return string(out)
}
