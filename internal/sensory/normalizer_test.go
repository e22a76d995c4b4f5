package sensory

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

type recordingSink struct {
	fields []string
	raws   []string
}

func (r *recordingSink) Unrecognized(field, raw string) {
	r.fields = append(r.fields, field)
	r.raws = append(r.raws, raw)
}

func TestClassify_CanonicalLabels(t *testing.T) {
	for _, l := range Levels() {
		variants := []string{
			string(l),
			strings.ToLower(string(l)),
			strings.ToUpper(string(l)),
			"  " + string(l) + "\t",
			strings.ReplaceAll(string(l), "-", " "),
			strings.ReplaceAll(string(l), "-", "_"),
		}
		for _, v := range variants {
			res := Classify(v)
			assert.Equal(t, KindRecognized, res.Kind, "input %q", v)
			assert.Equal(t, l, res.Level, "input %q", v)
		}
	}
}

func TestClassify_Keywords(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"Mod-High", ModerateHigh},
		{"fairly low", LowModerate},
		{"very intense", High},
		{"low to moderate", LowModerate},
		{"Light-Medium", LowModerate},
		{"somewhat low", LowModerate},
		{"moderate to high", ModerateHigh},
		{"Medium-High", ModerateHigh},
		{"quite high", ModerateHigh},
		{"minimal", Low},
		{"Very Low", Low},
		{"rare", Low},
		{"gentle", Low},
		{"medium", Moderate},
		{"average", Moderate},
		{"balanced", Moderate},
		{"very high", High},
		{"constant", High},
		{"Fast–paced", High},
		{"infrequent", Low},
		{"frequent", High},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Classify(tt.input)
			assert.Equal(t, KindRecognized, res.Kind)
			assert.Equal(t, tt.expected, res.Level)
		})
	}
}

func TestClassify_CompoundBeatsSingleWord(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"moderate to high with loud moments", ModerateHigh},
		{"medium-high, sometimes intense", ModerateHigh},
		{"low to moderate but occasionally high", LowModerate},
		{"Somewhat low, moderate at times", LowModerate},
		{"high-moderate", ModerateHigh},
		{"high to moderate", ModerateHigh},
		{"High-Medium", ModerateHigh},
		{"Med-High", ModerateHigh},
		{"high to medium", ModerateHigh},
		{"Moderate-Low", LowModerate},
		{"Medium-Low", LowModerate},
		{"Low/Med", LowModerate},
		{"med low", LowModerate},
		{"low and moderate", LowModerate},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Classify(tt.input)
			assert.Equal(t, KindRecognized, res.Kind)
			assert.Equal(t, tt.expected, res.Level)
		})
	}
}

func TestClassify_UnpairedWordsStaySingle(t *testing.T) {
	assert.Equal(t, Low, Classify("low volume, moderate pacing").Level)
	assert.Equal(t, High, Classify("high energy").Level)
	assert.Equal(t, Moderate, Classify("moderate to").Level)
}

func TestClassify_AbsentAndFallback(t *testing.T) {
	assert.Equal(t, KindAbsent, Classify("").Kind)
	assert.Equal(t, KindAbsent, Classify("   ").Kind)
	assert.Equal(t, Level(""), Classify("").Level)

	res := Classify("some gibberish xyz")
	assert.Equal(t, KindFallback, res.Kind)
	assert.Equal(t, Moderate, res.Level)
	assert.Equal(t, "some gibberish xyz", res.Raw)

	exact := Classify("Moderate")
	assert.Equal(t, KindRecognized, exact.Kind)
	assert.Equal(t, Moderate, exact.Level)
}

func TestNormalizer_Normalize(t *testing.T) {
	sink := &recordingSink{}
	n := NewNormalizer(sink)

	assert.Nil(t, n.Normalize(nil))
	assert.Nil(t, n.Normalize(strPtr("")))
	assert.Empty(t, sink.raws)

	got := n.NormalizeField("music_tempo", strPtr("some gibberish xyz"))
	require.NotNil(t, got)
	assert.Equal(t, Moderate, *got)
	assert.Equal(t, []string{"music_tempo"}, sink.fields)
	assert.Equal(t, []string{"some gibberish xyz"}, sink.raws)

	got = n.Normalize(strPtr("Moderate"))
	require.NotNil(t, got)
	assert.Equal(t, Moderate, *got)
	assert.Len(t, sink.raws, 1, "exact Moderate must not be reported")
}

func TestNormalizer_NormalizeString(t *testing.T) {
	n := NewNormalizer(nil)

	got := n.NormalizeString("scene_frequency", strPtr("  mod-high "))
	require.NotNil(t, got)
	assert.Equal(t, "Moderate-High", *got)

	assert.Nil(t, n.NormalizeString("scene_frequency", nil))
}

func TestNilNormalizerStillClassifies(t *testing.T) {
	var n *Normalizer
	got := n.Normalize(strPtr("whatever this is"))
	require.NotNil(t, got)
	assert.Equal(t, Moderate, *got)
}

func TestLogSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewNormalizer(MultiSink{LogSink{Logger: logger}, nil})

	n.NormalizeField("dialogue_intensity", strPtr("???"))

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "dialogue_intensity", entry.Data["field"])
	assert.Equal(t, "???", entry.Data["raw"])
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 1, Low.Rank())
	assert.Equal(t, 3, Moderate.Rank())
	assert.Equal(t, 5, High.Rank())
	assert.Equal(t, 0, Level("Loud").Rank())

	l, err := ParseLevel("Low-Moderate")
	require.NoError(t, err)
	assert.Equal(t, LowModerate, l)

	_, err = ParseLevel("low")
	assert.Error(t, err)

	all := Levels()
	all[0] = High
	assert.Equal(t, Low, Levels()[0])
}
