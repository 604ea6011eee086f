package normalize

import "strings"

// Lexicon holds the word lists the normalizer matches against.
// All entries are lowercase.
type Lexicon struct {
	Stopwords map[string]struct{}
	Products  map[string]struct{}
	Features  map[string]struct{}
	Emotions  map[string]struct{}

	// Sentiment weights in [-4, 4]. Negators flip, intensifiers scale.
	Sentiment    map[string]float64
	Negators     map[string]struct{}
	Intensifiers map[string]float64
}

// DefaultLexicon returns the built-in word lists.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Stopwords:    set(defaultStopwords),
		Products:     set(defaultProducts),
		Features:     set(defaultFeatures),
		Emotions:     set(defaultEmotions),
		Sentiment:    defaultSentiment(),
		Negators:     set(defaultNegators),
		Intensifiers: map[string]float64{"very": 1.5, "really": 1.4, "extremely": 1.8, "so": 1.3, "super": 1.5, "incredibly": 1.7, "totally": 1.3, "absolutely": 1.5},
	}
}

// AddStopwords adds words to the stopword list.
func (l *Lexicon) AddStopwords(words ...string) {
	for _, w := range words {
		l.Stopwords[strings.ToLower(w)] = struct{}{}
	}
}

// AddProducts adds product names to the product lexicon.
func (l *Lexicon) AddProducts(words ...string) {
	for _, w := range words {
		l.Products[strings.ToLower(w)] = struct{}{}
	}
}

// ContentWords returns the lowercase tokens of text that carry meaning:
// longer than two characters and not stopwords.
func (l *Lexicon) ContentWords(text string) []string {
	all := words(text)
	out := all[:0]
	for _, w := range all {
		if len([]rune(w)) > 2 && !l.isStopword(w) {
			out = append(out, w)
		}
	}
	return out
}

func (l *Lexicon) isStopword(w string) bool {
	_, ok := l.Stopwords[w]
	return ok
}

func (l *Lexicon) isNegator(w string) bool {
	_, ok := l.Negators[w]
	return ok
}

func set(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var defaultStopwords = []string{
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had", "her",
	"was", "one", "our", "out", "day", "get", "has", "him", "his", "how", "man", "new",
	"now", "old", "see", "two", "way", "who", "boy", "did", "its", "let", "put", "say",
	"she", "too", "use", "that", "with", "have", "this", "will", "your", "from", "they",
	"know", "want", "been", "good", "much", "some", "time", "very", "when", "come", "here",
	"just", "like", "long", "make", "many", "over", "such", "take", "than", "them", "well",
	"were", "what", "about", "after", "again", "also", "because", "before", "being",
	"could", "does", "doing", "down", "each", "few", "further", "into", "more", "most",
	"myself", "only", "other", "ought", "ourselves", "own", "same", "should", "then",
	"there", "these", "those", "through", "under", "until", "which", "while", "whom",
	"why", "would", "yourself", "their", "theirs", "yours", "where", "really", "still",
	"even", "anyone", "anything", "something", "thing", "things", "going", "got", "im",
	"ive", "dont", "doesnt", "didnt", "isnt", "cant", "wont", "thats", "theres", "youre",
	"edit", "post", "thanks", "thank", "please", "every", "since", "though", "think",
	"yes", "yeah", "lol", "etc", "able", "back", "first", "last",
}

var defaultProducts = []string{
	"app", "apps", "iphone", "android", "ios", "ipad", "laptop", "phone", "tablet", "watch",
	"website", "browser", "extension", "plugin", "api", "software", "hardware", "device",
	"subscription", "membership", "plan", "tier", "version", "update", "firmware", "strap",
	"band", "sensor", "tracker", "headphones", "earbuds", "charger", "router", "console",
}

var defaultFeatures = []string{
	"battery", "screen", "display", "camera", "sync", "syncing", "notification",
	"notifications", "login", "signup", "onboarding", "dashboard", "search", "export",
	"import", "integration", "integrations", "pricing", "price", "support", "performance",
	"speed", "accuracy", "tracking", "sleep", "recovery", "workout", "heart", "bluetooth",
	"wifi", "ui", "ux", "interface", "design", "settings", "privacy", "security", "backup",
	"storage", "offline", "widget", "widgets", "charging", "durability", "comfort", "fit",
}

var defaultEmotions = []string{
	"love", "hate", "happy", "sad", "angry", "frustrated", "frustrating", "annoyed",
	"annoying", "excited", "disappointed", "disappointing", "satisfied", "confused",
	"worried", "afraid", "grateful", "impressed", "upset", "furious", "delighted",
	"thrilled", "bored", "stressed", "relieved", "anxious", "proud", "surprised",
}

var defaultNegators = []string{
	"not", "no", "never", "none", "nobody", "nothing", "neither", "nor", "without",
	"don't", "doesn't", "didn't", "isn't", "wasn't", "aren't", "weren't", "can't",
	"cannot", "won't", "wouldn't", "shouldn't", "couldn't", "hardly", "barely",
	"dont", "doesnt", "didnt", "isnt", "wasnt", "cant", "wont",
}

func defaultSentiment() map[string]float64 {
	return map[string]float64{
		// positive
		"love": 3.2, "loved": 2.9, "loving": 2.9, "amazing": 2.8, "awesome": 3.1,
		"excellent": 3.2, "fantastic": 2.6, "great": 3.1, "good": 1.9, "best": 3.2,
		"better": 1.9, "nice": 1.8, "perfect": 2.7, "happy": 2.7, "glad": 2.0,
		"recommend": 1.5, "recommended": 1.5, "reliable": 1.7, "easy": 1.9,
		"fast": 1.3, "smooth": 1.4, "helpful": 1.8, "impressed": 2.1, "impressive": 2.3,
		"worth": 1.2, "solid": 1.4, "enjoy": 2.2, "enjoyed": 2.3, "satisfied": 1.8,
		"wonderful": 2.7, "beautiful": 2.9, "brilliant": 2.8, "fixed": 1.0, "works": 1.0,
		"delighted": 2.9, "thrilled": 2.8, "grateful": 2.2, "accurate": 1.5, "favorite": 2.0,
		// negative
		"hate": -2.7, "hated": -3.2, "terrible": -2.1, "awful": -2.0, "horrible": -2.5,
		"bad": -2.5, "worst": -3.1, "worse": -2.1, "poor": -2.1, "broken": -2.1,
		"broke": -1.8, "bug": -1.2, "bugs": -1.2, "buggy": -1.9, "crash": -1.7,
		"crashes": -1.7, "crashing": -1.8, "slow": -1.2, "expensive": -1.0,
		"overpriced": -1.9, "annoying": -1.7, "annoyed": -1.6, "useless": -1.8,
		"disappointed": -1.9, "disappointing": -2.2, "frustrating": -2.1,
		"frustrated": -1.9, "problem": -1.7, "problems": -1.7, "issue": -1.1,
		"issues": -1.1, "fail": -2.0, "fails": -2.0, "failed": -2.0, "refund": -1.0,
		"angry": -2.3, "upset": -1.6, "sad": -2.1, "confusing": -1.3, "lag": -1.2,
		"laggy": -1.6, "inaccurate": -1.8, "junk": -2.0, "garbage": -2.5, "scam": -2.8,
		"furious": -2.9, "stressed": -1.4, "worried": -1.2, "unreliable": -1.9,
	}
}
