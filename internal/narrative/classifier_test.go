package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name  string
		texts []string
		want  string
	}{
		{"symbol", []string{"Based Agent", "AGENT"}, "AI_AGENTS"},
		{"description", []string{"Wojak", "WJK", "the first pepe on a frog chain"}, "ANIMAL_MEME"},
		{"multi word", []string{"Real-World Gold", "RWG"}, "RWA"},
		{"substring does not match", []string{"Said the Mountain", "SAID"}, ""},
		{"first group wins", []string{"Trump Dog", "TDOG"}, "POLITICAL"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.texts...))
		})
	}
}

func TestClassifier_MatchKeyword(t *testing.T) {
	c := NewClassifier([]Keywords{
		{Name: "SPORTS", Keywords: []string{"  Football ", ""}},
	})
	n, kw := c.Match("FOOTBALL club token")
	assert.Equal(t, "SPORTS", n)
	assert.Equal(t, "football", kw)

	n, kw = c.Match("footballer")
	assert.Empty(t, n)
	assert.Empty(t, kw)
}
