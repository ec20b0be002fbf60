package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countercurse/countercurse/internal/lexicon"
	"github.com/countercurse/countercurse/internal/transcribe"
)

func testLexicon() *lexicon.Lexicon {
	return lexicon.New(map[lexicon.Tier][]string{
		lexicon.TierMinor:    {"darn"},
		lexicon.TierModerate: {"damn", "hell"},
		lexicon.TierStrict:   {"damn", "hell", "crap"},
	})
}

func TestDetect_PreservesTranscriptOrder(t *testing.T) {
	tr := transcribe.Transcript{Segments: []transcribe.Segment{
		{Words: []transcribe.Word{
			{Text: " Hell,", Start: 0.5, End: 0.9},
			{Text: " no", Start: 0.9, End: 1.1},
			{Text: " damn!", Start: 1.1, End: 1.4},
		}},
		{Words: []transcribe.Word{
			{Text: "damn", Start: 3.0, End: 3.2},
			{Text: "hell", Start: 2.9, End: 3.5},
		}},
	}}

	got := Detect(tr, testLexicon(), lexicon.TierModerate)

	assert.Equal(t, []Interval{
		{Start: 0.5, End: 0.9, Word: " Hell,"},
		{Start: 1.1, End: 1.4, Word: " damn!"},
		{Start: 3.0, End: 3.2, Word: "damn"},
		{Start: 2.9, End: 3.5, Word: "hell"},
	}, got, "no sorting or merging")
}

func TestDetect_SegmentsWithoutWords(t *testing.T) {
	tr := transcribe.Transcript{Segments: []transcribe.Segment{
		{Text: "damn it", Start: 0, End: 1},
		{Words: []transcribe.Word{{Text: "damn", Start: 1.5, End: 1.8}}},
		{Text: "hell", Words: []transcribe.Word{}},
	}}

	got := Detect(tr, testLexicon(), lexicon.TierModerate)
	require.Len(t, got, 1)
	assert.Equal(t, 1.5, got[0].Start)
}

func TestDetect_Tiers(t *testing.T) {
	tr := transcribe.Transcript{Segments: []transcribe.Segment{{Words: []transcribe.Word{
		{Text: "darn", Start: 0, End: 0.2},
		{Text: "damn", Start: 0.2, End: 0.4},
		{Text: "crap", Start: 0.4, End: 0.6},
	}}}}
	lex := testLexicon()

	assert.Len(t, Detect(tr, lex, lexicon.TierMinor), 1)
	assert.Len(t, Detect(tr, lex, lexicon.TierModerate), 1)
	assert.Len(t, Detect(tr, lex, lexicon.TierStrict), 2)
	assert.Len(t, Detect(tr, lex, lexicon.Tier(99)), 1, "unknown tier behaves as moderate")
	assert.Empty(t, Detect(tr, nil, lexicon.TierStrict))
}

func TestDetect_CorrectsMalformedTiming(t *testing.T) {
	tr := transcribe.Transcript{Segments: []transcribe.Segment{{Words: []transcribe.Word{
		{Text: "damn", Start: 2.0, End: 1.5},
		{Text: "hell", Start: -0.3, End: 0.2},
		{Text: "damn", Start: 4.0, End: 4.0},
	}}}}

	got := Detect(tr, testLexicon(), lexicon.TierModerate)
	require.Len(t, got, 3)
	assert.Equal(t, Interval{Start: 1.5, End: 2.0, Word: "damn"}, got[0])
	assert.Equal(t, Interval{Start: 0, End: 0.2, Word: "hell"}, got[1])
	assert.Zero(t, got[2].Duration(), "zero-duration tokens are kept")
}

func TestDetect_Empty(t *testing.T) {
	assert.Empty(t, Detect(transcribe.Transcript{}, testLexicon(), lexicon.TierStrict))
}

func TestWords(t *testing.T) {
	tr := transcribe.Transcript{Segments: []transcribe.Segment{
		{Words: []transcribe.Word{{Text: "a"}, {Text: "b"}}},
		{},
		{Words: []transcribe.Word{{Text: "c"}}},
	}}

	words := Words(tr)
	require.Len(t, words, 3)
	assert.Equal(t, "c", words[2].Text)
}
