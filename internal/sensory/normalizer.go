package sensory

import (
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// Kind tags how a raw descriptor was classified.
type Kind int

const (
	KindAbsent Kind = iota
	KindRecognized
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindRecognized:
		return "recognized"
	case KindFallback:
		return "fallback"
	default:
		return "absent"
	}
}

// Result is the outcome of classifying one descriptor. Level is empty only
// for KindAbsent. For KindFallback, Raw holds the original text.
type Result struct {
	Kind  Kind
	Level Level
	Raw   string
}

type rule struct {
	level    Level
	keywords []string
}

func (r rule) matches(s string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Keywords are in canonical form (see canonicalize). Classify tries
// compoundLevel before these rules, and compound levels still come first
// here: "high" is a substring of "fairly high" and "low" of "somewhat low".
var rules = []rule{
	{LowModerate, []string{
		"low moderate", "low to moderate", "low medium", "low to medium",
		"low mod", "mod low", "moderately low", "light medium", "light to medium",
		"light moderate", "light to moderate", "mild moderate", "mild to moderate",
		"somewhat low", "fairly low", "slightly low", "below average",
	}},
	{ModerateHigh, []string{
		"moderate high", "moderate to high", "medium high", "medium to high",
		"mod high", "high mod", "high moderate", "moderately high", "quite high",
		"fairly high", "somewhat high", "rather high", "above average",
	}},
	{Low, []string{
		"very low", "minimal", "minimum", "low", "rare", "gentle", "calm",
		"quiet", "soft", "slow", "none", "little", "mild", "subtle", "sparse",
		"infrequent",
	}},
	{Moderate, []string{
		"moderate", "medium", "average", "balanced", "mid", "occasional",
		"regular", "normal", "typical",
	}},
	{High, []string{
		"very high", "high", "intense", "constant", "frequent", "fast", "loud",
		"rapid", "extreme", "overstimulating", "heavy", "busy", "strong",
	}},
}

var (
	extremeWords = map[string]Level{"low": LowModerate, "high": ModerateHigh}
	middleWords  = map[string]bool{
		"moderate": true, "moderately": true, "medium": true, "med": true,
		"mod": true, "mid": true,
	}
	pairJoiners = map[string]bool{"to": true, "and": true, "or": true}
)

// compoundLevel finds the first low or high word that sits next to a
// moderate word, in either order, optionally joined by "to", "and" or "or".
// "Med-High", "moderate to low" and "high/medium" all resolve here.
func compoundLevel(s string) (Level, bool) {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	for i, w := range words {
		level, extreme := extremeWords[w]
		if !extreme && !middleWords[w] {
			continue
		}

		j := i + 1
		if j < len(words) && pairJoiners[words[j]] {
			j++
		}
		if j >= len(words) {
			break
		}

		next := words[j]
		switch {
		case extreme && middleWords[next]:
			return level, true
		case !extreme:
			if l, ok := extremeWords[next]; ok {
				return l, true
			}
		}
	}
	return "", false
}

var canonicalLabels = func() map[string]Level {
	m := make(map[string]Level, len(levels))
	for _, l := range levels {
		m[canonicalize(string(l))] = l
	}
	return m
}()

// canonicalize folds case, applies NFKC and turns hyphens, underscores,
// slashes and dashes into single spaces.
func canonicalize(raw string) string {
	s := strings.ToLower(norm.NFKC.String(raw))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '/', '‐', '‑', '‒', '–', '—':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Classify maps raw onto a Level without side effects.
func Classify(raw string) Result {
	s := canonicalize(raw)
	if s == "" {
		return Result{Kind: KindAbsent}
	}

	if l, ok := canonicalLabels[s]; ok {
		return Result{Kind: KindRecognized, Level: l, Raw: raw}
	}

	if l, ok := compoundLevel(s); ok {
		return Result{Kind: KindRecognized, Level: l, Raw: raw}
	}

	for _, r := range rules {
		if r.matches(s) {
			return Result{Kind: KindRecognized, Level: r.level, Raw: raw}
		}
	}

	return Result{Kind: KindFallback, Level: Moderate, Raw: raw}
}

// FallbackSink receives descriptors that were not recognized and were
// defaulted to Moderate.
type FallbackSink interface {
	Unrecognized(field, raw string)
}

// SinkFunc adapts a function to FallbackSink.
type SinkFunc func(field, raw string)

func (f SinkFunc) Unrecognized(field, raw string) { f(field, raw) }

// MultiSink fans a fallback out to every sink.
type MultiSink []FallbackSink

func (m MultiSink) Unrecognized(field, raw string) {
	for _, s := range m {
		if s != nil {
			s.Unrecognized(field, raw)
		}
	}
}

// LogSink logs each fallback as a warning for later review.
type LogSink struct {
	Logger *logrus.Logger
}

func (s LogSink) Unrecognized(field, raw string) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithFields(logrus.Fields{
		"field": field,
		"raw":   raw,
	}).Warn("Unrecognized sensory value, defaulting to Moderate")
}

// Normalizer classifies descriptors and reports fallbacks to a sink.
type Normalizer struct {
	sink FallbackSink
}

func NewNormalizer(sink FallbackSink) *Normalizer {
	return &Normalizer{sink: sink}
}

// Normalize returns nil for nil or blank input and a canonical level
// otherwise.
func (n *Normalizer) Normalize(raw *string) *Level {
	return n.NormalizeField("", raw)
}

// NormalizeField is Normalize with the metric name attached to any fallback
// report.
func (n *Normalizer) NormalizeField(field string, raw *string) *Level {
	if raw == nil {
		return nil
	}

	res := Classify(*raw)
	switch res.Kind {
	case KindAbsent:
		return nil
	case KindFallback:
		if n != nil && n.sink != nil {
			n.sink.Unrecognized(field, res.Raw)
		}
	}

	l := res.Level
	return &l
}

// NormalizeString is NormalizeField for callers that store levels as
// *string.
func (n *Normalizer) NormalizeString(field string, raw *string) *string {
	l := n.NormalizeField(field, raw)
	if l == nil {
		return nil
	}
	s := string(*l)
	return &s
}
