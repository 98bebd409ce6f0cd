package narrative

import (
	"sort"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Narrative Classifier — map token name/symbol/description to a meta narrative
// Whole-word keyword match; first narrative in declaration order wins.
// ---------------------------------------------------------------------------

// Keywords defines a keyword group for one narrative.
type Keywords struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// DefaultNarratives returns the built-in narrative keyword database.
func DefaultNarratives() []Keywords {
	return []Keywords{
		{Name: "AI_AGENTS", Keywords: []string{"ai", "agent", "agents", "gpt", "neural", "llm", "openai", "chatgpt", "claude", "agi"}},
		{Name: "POLITICAL", Keywords: []string{"trump", "biden", "maga", "vote", "election", "president", "political"}},
		{Name: "ANIMAL_MEME", Keywords: []string{"dog", "cat", "pepe", "frog", "shib", "doge", "floki", "inu", "penguin", "wif", "bonk"}},
		{Name: "CELEBRITY", Keywords: []string{"elon", "drake", "kanye", "celebrity", "influencer", "famous"}},
		{Name: "DEFI_META", Keywords: []string{"yield", "farm", "stake", "restake", "lsd", "lst"}},
		{Name: "GAMING", Keywords: []string{"game", "gaming", "play", "nft", "metaverse", "pixel"}},
		{Name: "RWA", Keywords: []string{"rwa", "real world", "tokenized", "treasury"}},
	}
}

type entry struct {
	narrative string
	keyword   string
	rank      int
}

// Classifier matches text against keyword groups. Immutable after
// construction and safe for concurrent use.
type Classifier struct {
	entries []entry
}

// NewClassifier builds a classifier; nil keywords selects DefaultNarratives.
func NewClassifier(groups []Keywords) *Classifier {
	if groups == nil {
		groups = DefaultNarratives()
	}
	c := &Classifier{}
	for rank, g := range groups {
		for _, kw := range g.Keywords {
			kw = strings.Join(words(kw), " ")
			if kw == "" {
				continue
			}
			c.entries = append(c.entries, entry{narrative: g.Name, keyword: kw, rank: rank})
		}
	}
	sort.SliceStable(c.entries, func(i, j int) bool {
		if c.entries[i].rank != c.entries[j].rank {
			return c.entries[i].rank < c.entries[j].rank
		}
		return c.entries[i].keyword < c.entries[j].keyword
	})
	return c
}

// Classify returns the narrative the combined texts belong to, or "".
func (c *Classifier) Classify(texts ...string) string {
	n, _ := c.Match(texts...)
	return n
}

// Match returns the matching narrative and the keyword that matched.
func (c *Classifier) Match(texts ...string) (narrative, keyword string) {
	haystack := " " + strings.Join(words(strings.Join(texts, " ")), " ") + " "
	if strings.TrimSpace(haystack) == "" {
		return "", ""
	}
	for _, e := range c.entries {
		if strings.Contains(haystack, " "+e.keyword+" ") {
			return e.narrative, e.keyword
		}
	}
	return "", ""
}

// words lower-cases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
