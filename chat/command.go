package chat

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// CommandResult is the outcome of parsing raw input: the content to route and
// the kind it resolved to. It is never persisted directly.
type CommandResult struct {
	Content string
	Kind    Kind
}

// Emote is one entry in the static emote table. Text is rendered when no
// target was supplied; TargetText substitutes {target} when one was.
type Emote struct {
	Command    string
	Aliases    []string
	Text       string
	TargetText string
}

// Emotes is the static emote table. Matching is on the full command token,
// canonical name or alias, so an alias like "ro" can never shadow /roll.
var Emotes = []Emote{
	{Command: "dance", Text: "dances.", TargetText: "dances with {target}."},
	{Command: "flex", Text: "flexes.", TargetText: "flexes at {target}."},
	{Command: "roar", Aliases: []string{"ro"}, Text: "roars ferociously.", TargetText: "roars at {target}."},
	{Command: "wave", Aliases: []string{"hi"}, Text: "waves.", TargetText: "waves at {target}."},
	{Command: "salute", Text: "salutes.", TargetText: "salutes {target}."},
	{Command: "cheer", Aliases: []string{"yay"}, Text: "cheers!", TargetText: "cheers at {target}!"},
}

var yellAliases = map[string]bool{"yell": true, "y": true, "sh": true, "shout": true}
var rollAliases = map[string]bool{"roll": true, "random": true}

const (
	defaultRollMin = 1
	defaultRollMax = 100
)

// Parser turns raw input into a typed command result. It is deterministic
// except for dice rolls, whose randomness is injectable for tests.
type Parser struct {
	roll func(min, max int) int
}

// NewParser returns a parser rolling dice with math/rand.
func NewParser() *Parser {
	return &Parser{roll: func(min, max int) int { return min + rand.IntN(max-min+1) }}
}

// Parse maps raw input (plus an optional target name for emotes) to content
// and kind. Unrecognized input, including unknown slash commands, passes
// through verbatim as TEXT after trimming.
func (p *Parser) Parse(raw, targetName string) CommandResult {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "/") {
		return CommandResult{Content: trimmed, Kind: KindText}
	}

	token, rest, _ := strings.Cut(trimmed[1:], " ")
	cmd := strings.ToLower(token)
	rest = strings.TrimSpace(rest)

	switch {
	case yellAliases[cmd]:
		// A yell with no text is not a yell; fall through to plain text.
		if rest != "" {
			return CommandResult{Content: rest, Kind: KindYell}
		}
	case rollAliases[cmd]:
		min, max := resolveRollRange(rest)
		n := p.roll(min, max)
		return CommandResult{
			Content: fmt.Sprintf("rolls %d (%d-%d).", n, min, max),
			Kind:    KindRoll,
		}
	default:
		for _, e := range Emotes {
			if !matchesEmote(e, cmd) {
				continue
			}
			if targetName != "" {
				return CommandResult{
					Content: strings.ReplaceAll(e.TargetText, "{target}", targetName),
					Kind:    KindEmote,
				}
			}
			return CommandResult{Content: e.Text, Kind: KindEmote}
		}
	}

	return CommandResult{Content: trimmed, Kind: KindText}
}

func matchesEmote(e Emote, cmd string) bool {
	if cmd == e.Command {
		return true
	}
	for _, a := range e.Aliases {
		if cmd == a {
			return true
		}
	}
	return false
}

// resolveRollRange interprets the first argument of /roll. Invalid arguments
// never fail the roll; they fall back to the 1-100 default.
func resolveRollRange(arg string) (int, int) {
	arg, _, _ = strings.Cut(arg, " ")
	if arg == "" {
		return defaultRollMin, defaultRollMax
	}
	if lo, hi, ok := strings.Cut(arg, "-"); ok {
		a, errA := strconv.Atoi(lo)
		b, errB := strconv.Atoi(hi)
		if errA == nil && errB == nil && a > 0 && b > 0 && a < b {
			return a, b
		}
		return defaultRollMin, defaultRollMax
	}
	if n, err := strconv.Atoi(arg); err == nil && n > 0 {
		return defaultRollMin, n
	}
	return defaultRollMin, defaultRollMax
}
