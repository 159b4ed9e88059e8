package parse

import (
	"fmt"
	"regexp"
	"strings"
)

// Symbologies recognised by ScanCode.
const (
	SymbologyEAN8   = "EAN-8"
	SymbologyUPCA   = "UPC-A"
	SymbologyEAN13  = "EAN-13"
	SymbologyGTIN14 = "GTIN-14"
	SymbologyText   = "TEXT"
)

var (
	codeSeparatorRe = regexp.MustCompile(`[\s-]+`)
	digitsRe        = regexp.MustCompile(`^\d+$`)
)

// ParsedCode is a normalized scan value.
type ParsedCode struct {
	Value     string
	Symbology string
}

// ScanCode normalizes a decoded or hand-typed code. Numeric values of a GTIN
// length with a valid check digit are tagged with their symbology; anything
// else is kept as trimmed free text.
func ScanCode(raw string) (ParsedCode, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedCode{}, fmt.Errorf("empty scan value")
	}

	compact := codeSeparatorRe.ReplaceAllString(s, "")
	if !digitsRe.MatchString(compact) {
		return ParsedCode{Value: s, Symbology: SymbologyText}, nil
	}

	var sym string
	switch len(compact) {
	case 8:
		sym = SymbologyEAN8
	case 12:
		sym = SymbologyUPCA
	case 13:
		sym = SymbologyEAN13
	case 14:
		sym = SymbologyGTIN14
	default:
		return ParsedCode{Value: compact, Symbology: SymbologyText}, nil
	}

	if !validCheckDigit(compact) {
		return ParsedCode{Value: compact, Symbology: SymbologyText}, nil
	}
	return ParsedCode{Value: compact, Symbology: sym}, nil
}

// validCheckDigit applies the GS1 mod-10 check used by every GTIN length.
func validCheckDigit(code string) bool {
	sum := 0
	body := code[:len(code)-1]
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if (len(body)-1-i)%2 == 0 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return check == int(code[len(code)-1]-'0')
}
