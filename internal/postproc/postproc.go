// Package postproc cleans up raw transcripts before injection: a bounded,
// language-keyed list of filler tokens is stripped and whitespace is
// normalized. The operation is idempotent.
package postproc

import (
	"strings"
	"unicode"
)

// fillers maps an ISO 639-1 language code to the tokens stripped for it.
// Tokens match whole words only. Languages without an entry pass through
// untouched apart from whitespace normalization.
var fillers = map[string]map[string]bool{
	"en": {"um": true, "uh": true, "erm": true, "hmm": true},
}

// pairFillers are two-token fillers removed when both tokens appear
// consecutively.
var pairFillers = map[string][][2]string{
	"en": {{"you", "know"}},
}

// commaFillers are stripped only in interjection position, i.e. set off by
// a comma on either side. "like" as a verb survives.
var commaFillers = map[string]map[string]bool{
	"en": {"like": true},
}

// Process strips fillers for the given language and normalizes whitespace.
// Punctuation attached to surviving tokens is preserved; sentence-final
// punctuation on a removed token migrates to the preceding word. If a
// removal exposes a lowercase word at the front of a text that began
// uppercase, the first letter is re-capitalized.
func Process(text, language string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	single := fillers[language]
	pairs := pairFillers[language]
	comma := commaFillers[language]

	var kept []string
	removed := false

	for i := 0; i < len(words); i++ {
		raw := words[i]
		core := coreOf(raw)

		// Two-token fillers first, so "you know" never survives as "you".
		if i+1 < len(words) {
			next := coreOf(words[i+1])
			if matchPair(pairs, core, next) {
				carryPunct(&kept, words[i+1])
				i++ // consume the second token too
				removed = true
				continue
			}
		}

		if single[core] {
			carryPunct(&kept, raw)
			removed = true
			continue
		}

		if comma[core] && interjection(kept, raw) {
			carryPunct(&kept, raw)
			removed = true
			continue
		}

		kept = append(kept, raw)
	}

	out := strings.Join(kept, " ")
	out = strings.TrimSpace(out)

	if removed && out != "" && startsUpper(text) {
		out = upperFirst(out)
	}
	return out
}

// coreOf lowercases a token and strips surrounding punctuation so matching
// is whole-word, never substring.
func coreOf(tok string) string {
	return strings.ToLower(strings.TrimFunc(tok, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

func matchPair(pairs [][2]string, a, b string) bool {
	for _, p := range pairs {
		if p[0] == a && p[1] == b {
			return true
		}
	}
	return false
}

// carryPunct migrates sentence-final punctuation from a removed token onto
// the last kept word, so "yes uh." keeps its period. Commas attached to a
// filler belong to the interjection and are dropped with it.
func carryPunct(kept *[]string, removedTok string) {
	if len(*kept) == 0 {
		return
	}
	trailing := strings.TrimLeftFunc(removedTok, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\''
	})
	for _, r := range trailing {
		switch r {
		case '.', '!', '?':
			last := (*kept)[len(*kept)-1]
			if !strings.HasSuffix(last, string(r)) {
				(*kept)[len(*kept)-1] = last + string(r)
			}
			return
		}
	}
}

// interjection reports whether a token is set off by a comma: the token
// itself or the last surviving word before it ends with one. Judging the
// survivor, not the raw predecessor, keeps the pass idempotent when a
// comma-bearing filler was just removed.
func interjection(kept []string, tok string) bool {
	if strings.HasSuffix(tok, ",") {
		return true
	}
	if len(kept) > 0 && strings.HasSuffix(kept[len(kept)-1], ",") {
		return true
	}
	return false
}

func startsUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return unicode.IsUpper(r)
		}
	}
	return false
}

func upperFirst(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			return string(runes)
		}
	}
	return s
}
