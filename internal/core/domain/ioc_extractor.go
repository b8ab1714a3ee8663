package domain

import "strings"

// Tokenize splits message text on runs of whitespace. Order is kept and
// punctuation is left attached, so "example.com," stays one token.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// ExtractIOCs tokenizes text and returns every token that classifies as an
// IOC, in message order. The same value may appear more than once.
func ExtractIOCs(text string, tlds TLDChecker) []Classification {
	var found []Classification
	for _, token := range Tokenize(text) {
		if c := Classify(token, tlds); c.Matched() {
			found = append(found, c)
		}
	}
	return found
}
