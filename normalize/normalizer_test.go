package normalize

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/pulse/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(WithBatchDelay(time.Millisecond))
	require.NoError(t, err)
	return n
}

func post(id, title, body string) core.RawPost {
	return core.RawPost{
		ExternalID: id,
		Title:      title,
		Body:       body,
		CreatedAt:  time.Now().Add(-time.Hour),
		Subreddit:  "golang",
	}
}

func TestCleanText(t *testing.T) {
	in := "> quoted line\n**Bold** and *italic* text by u/someone in r/golang see https://example.com/x?y=1 and [docs](https://go.dev) &amp; more!!"
	assert.Equal(t, "quoted line Bold and italic text by in see and docs more!!", CleanText(in))
}

func TestCleanText_KeepsSentencePunctuation(t *testing.T) {
	assert.Equal(t, "Is it good? Yes, it's well-made. Wow!", CleanText("Is it good? Yes, it's well-made. Wow! :) #"))
}

func TestCleanText_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a \n\n\t b    c  "))
}

func TestExtractKeywords(t *testing.T) {
	n := newTestNormalizer(t)

	t.Run("ranked with stable ties", func(t *testing.T) {
		kw := n.ExtractKeywords("zebra apple zebra apple mango")
		assert.Equal(t, []core.Keyword{{Word: "zebra", Count: 2}, {Word: "apple", Count: 2}, {Word: "mango", Count: 1}}, kw)
	})

	t.Run("filters short words and stopwords", func(t *testing.T) {
		kw := n.ExtractKeywords("The cat sat on a mat with ox")
		assert.Equal(t, []core.Keyword{{Word: "cat", Count: 1}, {Word: "sat", Count: 1}, {Word: "mat", Count: 1}}, kw)
	})

	t.Run("alphabetic only", func(t *testing.T) {
		kw := n.ExtractKeywords("abc123 hello 2024 don't")
		assert.Equal(t, []core.Keyword{{Word: "hello", Count: 1}}, kw)
	})

	t.Run("capped", func(t *testing.T) {
		var parts []string
		for i := 0; i < 20; i++ {
			parts = append(parts, strings.Repeat(string(rune('a'+i)), 3))
		}
		kw := n.ExtractKeywords(strings.Join(parts, " "))
		assert.Len(t, kw, MaxKeywords)
		assert.Equal(t, "aaa", kw[0].Word)
	})
}

func TestExtractEntities(t *testing.T) {
	n := newTestNormalizer(t)

	ents := n.ExtractEntities("My iphone battery died, I am so frustrated. Paid 199.99 for 2 years, iphone again")
	assert.Equal(t, []string{"iphone"}, ents.Products)
	assert.Equal(t, []string{"battery"}, ents.Features)
	assert.Equal(t, []string{"frustrated"}, ents.Emotions)
	assert.Equal(t, []string{"199.99", "2"}, ents.Numbers)

	var nums []string
	for i := 0; i < 12; i++ {
		nums = append(nums, fmt.Sprint(i))
	}
	ents = n.ExtractEntities(strings.Join(nums, " "))
	assert.Len(t, ents.Numbers, MaxNumbers)
}

func TestReadability(t *testing.T) {
	assert.Equal(t, 0.0, Readability(""))
	assert.Equal(t, 100.0, Readability("The cat sat."))
	assert.Equal(t, 0.0, Readability("Internationalization incomprehensibility characteristically."))

	mid := Readability("The application works well. Notifications arrive late.")
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, 100.0)
}

func TestScoreSentiment(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		text  string
		label core.SentimentLabel
	}{
		{"I love it", core.SentimentPositive},
		{"WHOOP battery amazing", core.SentimentPositive},
		{"WHOOP battery terrible", core.SentimentNegative},
		{"not good at all", core.SentimentNegative},
		{"this is a table", core.SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s := n.ScoreSentiment(tt.text)
			assert.Equal(t, tt.label, s.Label)
			assert.GreaterOrEqual(t, s.Score, -1.0)
			assert.LessOrEqual(t, s.Score, 1.0)
		})
	}

	assert.Greater(t, n.ScoreSentiment("really great").Score, n.ScoreSentiment("great").Score)
}

func TestClean(t *testing.T) {
	n := newTestNormalizer(t)

	item := n.Clean(post("t3_1", "Battery life?", "The **battery** drains fast, I hate it! See https://x.io"))
	require.False(t, item.Failed())
	assert.Equal(t, "Battery life? The battery drains fast, I hate it! See", item.CleanedText)
	assert.Equal(t, 10, item.WordCount)
	assert.Equal(t, "battery", item.Keywords[0].Word)
	assert.Equal(t, 2, item.Keywords[0].Count)
	assert.True(t, item.Features.HasQuestion)
	assert.True(t, item.Features.HasExclamation)
	assert.Equal(t, core.SentimentNegative, item.Sentiment.Label)
	assert.Equal(t, []string{"battery"}, item.Entities.Features)
	assert.Equal(t, "t3_1", item.ExternalID)
}

func TestClean_Fallbacks(t *testing.T) {
	n := newTestNormalizer(t)

	t.Run("missing external id", func(t *testing.T) {
		item := n.Clean(post("", "Hello **world**", ""))
		assert.True(t, item.Failed())
		assert.Equal(t, "Hello **world**", item.CleanedText, "raw text passes through")
		assert.Empty(t, item.Keywords)
		assert.Empty(t, item.Entities.Products)
	})

	t.Run("only markup", func(t *testing.T) {
		item := n.Clean(post("t3_2", "https://example.com", ""))
		assert.True(t, item.Failed())
		assert.Contains(t, item.Err, ErrNothingLeft.Error())
	})

	t.Run("empty content", func(t *testing.T) {
		item := n.Clean(post("t3_3", "", ""))
		assert.True(t, item.Failed())
	})
}

func TestCleanBatch(t *testing.T) {
	n := newTestNormalizer(t)

	raws := []core.RawPost{
		post("1", "first post about sync", ""),
		post("", "broken", ""),
		post("3", "third post about battery", ""),
		post("4", "fourth", ""),
		post("5", "fifth", ""),
	}

	items, err := n.CleanBatch(context.Background(), raws, 2)
	require.NoError(t, err)
	require.Len(t, items, len(raws))
	for i := range raws {
		assert.Equal(t, raws[i].ExternalID, items[i].ExternalID)
	}
	assert.True(t, items[1].Failed())
	assert.False(t, items[2].Failed())
}

func TestCleanBatch_Canceled(t *testing.T) {
	n := newTestNormalizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.CleanBatch(ctx, []core.RawPost{post("1", "x", "")}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLexicon(t *testing.T) {
	_, err := NewNormalizer(WithLexicon(nil))
	assert.ErrorIs(t, err, ErrLexiconRequired)

	lex := DefaultLexicon()
	lex.AddStopwords("battery")
	n, err := NewNormalizer(WithLexicon(lex))
	require.NoError(t, err)
	assert.Empty(t, n.ExtractKeywords("battery battery"))
}

func TestLexicon_ContentWords(t *testing.T) {
	lex := DefaultLexicon()
	assert.Equal(t, []string{"battery", "drains", "overnight"}, lex.ContentWords("The battery, it drains overnight!"))
	assert.Empty(t, lex.ContentWords("the a an"))

	n, err := NewNormalizer(WithLexicon(lex))
	require.NoError(t, err)
	assert.Same(t, lex, n.Lexicon())
}
