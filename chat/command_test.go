package chat

import (
	"fmt"
	"strings"
	"testing"
)

// fixedRollParser always rolls the minimum, making outputs deterministic.
func fixedRollParser() *Parser {
	return &Parser{roll: func(min, max int) int { return min }}
}

func TestParse(t *testing.T) {
	p := fixedRollParser()

	tests := []struct {
		name        string
		raw         string
		target      string
		wantContent string
		wantKind    Kind
	}{
		{"plain text", "hello barrens", "", "hello barrens", KindText},
		{"trims whitespace", "   hi there   ", "", "hi there", KindText},
		{"empty stays empty text", "   ", "", "", KindText},
		{"yell", "/yell WTS boar livers", "", "WTS boar livers", KindYell},
		{"yell alias y", "/y anyone seen mankrik's wife", "", "anyone seen mankrik's wife", KindYell},
		{"yell alias sh", "/sh LFG WC", "", "LFG WC", KindYell},
		{"yell alias shout", "/shout chuck norris", "", "chuck norris", KindYell},
		{"yell uppercase command", "/YELL loud", "", "loud", KindYell},
		{"yell without text is plain text", "/yell", "", "/yell", KindText},
		{"yell with only spaces is plain text", "/yell   ", "", "/yell", KindText},
		{"roll default range", "/roll", "", "rolls 1 (1-100).", KindRoll},
		{"random alias", "/random", "", "rolls 1 (1-100).", KindRoll},
		{"roll upper bound", "/roll 20", "", "rolls 1 (1-20).", KindRoll},
		{"roll explicit range", "/roll 5-10", "", "rolls 5 (5-10).", KindRoll},
		{"roll inverted range falls back", "/roll 100-50", "", "rolls 1 (1-100).", KindRoll},
		{"roll zero falls back", "/roll 0", "", "rolls 1 (1-100).", KindRoll},
		{"roll negative falls back", "/roll -5", "", "rolls 1 (1-100).", KindRoll},
		{"roll garbage falls back", "/roll abc", "", "rolls 1 (1-100).", KindRoll},
		{"roll ignores extra args", "/roll 5-10 something", "", "rolls 5 (5-10).", KindRoll},
		{"dance without target", "/dance", "", "dances.", KindEmote},
		{"dance with target", "/dance", "Mankrik", "dances with Mankrik.", KindEmote},
		{"flex without target", "/flex", "", "flexes.", KindEmote},
		{"flex with target", "/flex", "Chuckfacts", "flexes at Chuckfacts.", KindEmote},
		{"emote alias", "/yay", "", "cheers!", KindEmote},
		{"emote alias ro is roar not roll", "/ro", "", "roars ferociously.", KindEmote},
		{"emote case insensitive", "/DANCE", "", "dances.", KindEmote},
		{"unknown command passes through", "/conjure water", "", "/conjure water", KindText},
		{"lone slash passes through", "/", "", "/", KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.raw, tt.target)
			if got.Content != tt.wantContent || got.Kind != tt.wantKind {
				t.Errorf("Parse(%q, %q) = (%q, %s), want (%q, %s)",
					tt.raw, tt.target, got.Content, got.Kind, tt.wantContent, tt.wantKind)
			}
		})
	}
}

func TestParseRollStaysInRange(t *testing.T) {
	p := NewParser()
	for i := 0; i < 50; i++ {
		got := p.Parse("/roll 5-10", "")
		if got.Kind != KindRoll {
			t.Fatalf("kind = %s, want %s", got.Kind, KindRoll)
		}
		if !strings.HasSuffix(got.Content, "(5-10).") || !strings.HasPrefix(got.Content, "rolls ") {
			t.Fatalf("content = %q, want rolls n (5-10).", got.Content)
		}
		var n int
		if _, err := fmt.Sscanf(got.Content, "rolls %d", &n); err != nil {
			t.Fatalf("could not parse roll from %q: %v", got.Content, err)
		}
		if n < 5 || n > 10 {
			t.Fatalf("rolled %d, want within [5,10]", n)
		}
	}
}
