package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	storeNumberRe = regexp.MustCompile(`^(.*?)[\s#-]*(\d+)\s*$`)
	spaceRe       = regexp.MustCompile(`\s+`)
	nonAlnumRe    = regexp.MustCompile(`[^A-Z0-9]+`)
)

// ParsedStore holds the structured parts of a store display name.
type ParsedStore struct {
	Chain  string
	Number string
}

// ParseStoreName splits a display name such as "King Soopers #00014" into its
// chain and trailing store number. Names without a trailing number keep the
// whole name as the chain.
func ParseStoreName(raw string) (ParsedStore, error) {
	s := strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
	if s == "" {
		return ParsedStore{}, fmt.Errorf("empty store name")
	}

	if m := storeNumberRe.FindStringSubmatch(s); m != nil {
		chain := strings.TrimSpace(strings.TrimRight(m[1], "#- "))
		if chain != "" {
			return ParsedStore{Chain: chain, Number: m[2]}, nil
		}
	}
	return ParsedStore{Chain: s}, nil
}

// StoreCode derives a short identifier from a display name: chain initials
// followed by the store number ("Family Dollar 3477" -> "FD3477"). Single-word
// chains contribute their first two letters. Names without a number fall back
// to the first ten alphanumerics.
func StoreCode(raw string) (string, error) {
	parsed, err := ParseStoreName(raw)
	if err != nil {
		return "", err
	}

	if parsed.Number == "" {
		code := nonAlnumRe.ReplaceAllString(strings.ToUpper(parsed.Chain), "")
		if code == "" {
			return "", fmt.Errorf("unable to derive store code from %q", raw)
		}
		if len(code) > 10 {
			code = code[:10]
		}
		return code, nil
	}

	words := strings.Fields(nonAlnumRe.ReplaceAllString(strings.ToUpper(parsed.Chain), " "))
	var prefix string
	switch len(words) {
	case 0:
	case 1:
		prefix = words[0]
		if len(prefix) > 2 {
			prefix = prefix[:2]
		}
	default:
		for _, w := range words {
			prefix += w[:1]
		}
	}
	return prefix + parsed.Number, nil
}
