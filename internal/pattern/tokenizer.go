package pattern

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	// English
	"a": {}, "an": {}, "and": {}, "at": {}, "for": {}, "from": {}, "in": {}, "is": {}, "it": {},
	"my": {}, "of": {}, "on": {}, "or": {}, "paid": {}, "pay": {}, "spent": {}, "spend": {},
	"the": {}, "to": {}, "today": {}, "yesterday": {}, "with": {}, "bought": {}, "buy": {},
	"i": {}, "me": {}, "we": {}, "was": {}, "this": {}, "that": {}, "some": {}, "just": {},
	// Indonesian
	"di": {}, "ke": {}, "dari": {}, "untuk": {}, "yang": {}, "dan": {}, "beli": {}, "bayar": {},
	"hari": {}, "ini": {}, "kemarin": {}, "saya": {}, "aku": {},
}

var currencyWords = map[string]struct{}{
	"rp": {}, "idr": {}, "usd": {}, "eur": {}, "gbp": {}, "sgd": {}, "jpy": {},
	"dollar": {}, "dollars": {}, "euro": {}, "euros": {}, "rupiah": {}, "bucks": {},
	"ribu": {}, "rb": {}, "juta": {}, "jt": {}, "k": {},
}

// amountSuffixes are magnitude suffixes glued to numbers, as in "25k" or "10rb".
var amountSuffixes = map[string]struct{}{
	"": {}, "k": {}, "m": {}, "rb": {}, "jt": {}, "st": {}, "nd": {}, "rd": {}, "th": {},
}

// Tokenize lowercases text, splits it into words and drops stop-words, currency
// words and numeric tokens. Tokens are unique and keep their first-seen order.
func Tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "'", "")
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 || isNumericToken(f) {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, currency := currencyWords[f]; currency {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

func isNumericToken(tok string) bool {
	if !strings.ContainsFunc(tok, unicode.IsDigit) {
		return false
	}
	rest := strings.TrimLeftFunc(tok, unicode.IsDigit)
	_, ok := amountSuffixes[rest]
	return ok
}
