package reminder

import (
	"regexp"
	"strings"

	"tgremind/internal/transport"
)

// directiveRe matches one directive per line. The phrase group is lazy, so
// the first " // " separates phrase from description.
var directiveRe = regexp.MustCompile(`(?m)^(REMINDER: *(.*?) // (.*?))\r?$`)

// Directive is a single reminder declaration found in a chat description.
type Directive struct {
	ChatID transport.ChatID
	// Line is the whole matched directive; it is the notification text.
	Line string
	// When is the free-text date phrase.
	When string
	// Name is the description up to the first '@', whitespace-collapsed.
	Name string
}

// ParseDirectives returns every directive in text, in order of appearance.
// Lines that do not match the grammar are ignored.
func ParseDirectives(chatID transport.ChatID, text string) []Directive {
	matches := directiveRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Directive, 0, len(matches))
	for _, m := range matches {
		out = append(out, Directive{
			ChatID: chatID,
			Line:   m[1],
			When:   strings.TrimSpace(m[2]),
			Name:   cleanName(m[3]),
		})
	}
	return out
}

func cleanName(s string) string {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}
