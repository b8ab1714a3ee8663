package domain

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

var tldLabelPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// TLDRegistry is the set of valid top-level domains. It is built once at
// startup and never modified, so it is safe for concurrent use.
type TLDRegistry struct {
	tlds map[string]struct{}
}

// NewTLDRegistry builds a registry from raw list entries. Entries are
// trimmed and lowercased; blank lines and "#" comments are skipped.
// Punycode entries are kept as opaque strings.
func NewTLDRegistry(entries []string) (*TLDRegistry, error) {
	tlds := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		tlds[strings.ToLower(entry)] = struct{}{}
	}
	if len(tlds) == 0 {
		return nil, ErrEmptyTLDList
	}
	return &TLDRegistry{tlds: tlds}, nil
}

// ParseTLDList reads the IANA tlds-alpha-by-domain.txt format: one TLD per
// line, "#" comment lines. A line holding anything other than a single
// label is rejected as malformed.
func ParseTLDList(r io.Reader) ([]string, error) {
	var entries []string
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !tldLabelPattern.MatchString(line) {
			return nil, fmt.Errorf("malformed tld list at line %d: %q", lineNo, line)
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyTLDList
	}
	return entries, nil
}

// IsValid reports whether tld is registered. Comparison is case-insensitive.
// A nil registry knows no TLDs.
func (r *TLDRegistry) IsValid(tld string) bool {
	if r == nil {
		return false
	}
	_, ok := r.tlds[strings.ToLower(tld)]
	return ok
}

func (r *TLDRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tlds)
}

// Sorted returns the registered TLDs in lexicographic order.
func (r *TLDRegistry) Sorted() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.tlds))
	for tld := range r.tlds {
		out = append(out, tld)
	}
	sort.Strings(out)
	return out
}
