package domain

import (
	"regexp"
	"strings"
)

// Octets accept optional leading zeros ("00", "010"); this mirrors the
// detection patterns already used on stored data.
var (
	ipv4Pattern     = regexp.MustCompile(`^(?:(?:[0-1]?[0-9]{1,2}|2[0-4][0-9]|25[0-5])\.){3}(?:[0-1]?[0-9]{1,2}|2[0-4][0-9]|25[0-5])$`)
	hostnamePattern = regexp.MustCompile(`^(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}$`)
)

// TLDChecker is satisfied by *TLDRegistry and by test doubles.
type TLDChecker interface {
	IsValid(tld string) bool
}

type Verdict int

const (
	Unmatched Verdict = iota
	VerdictIP
	VerdictDomain
	VerdictURL
)

func (v Verdict) String() string {
	switch v {
	case VerdictIP:
		return "ip"
	case VerdictDomain:
		return "domain"
	case VerdictURL:
		return "url"
	default:
		return "unmatched"
	}
}

// Classification is the result of classifying one token.
type Classification struct {
	Verdict Verdict
	Token   string
}

func (c Classification) Matched() bool {
	return c.Verdict != Unmatched
}

// IOCType maps the verdict to the stored type. ok is false for Unmatched.
func (c Classification) IOCType() (t IOCType, ok bool) {
	switch c.Verdict {
	case VerdictIP:
		return IPAddress, true
	case VerdictDomain:
		return Domain, true
	case VerdictURL:
		return URL, true
	default:
		return "", false
	}
}

// Classify decides what a single token is. The checks run in a fixed order
// and the first one that applies decides:
//
//  1. anything starting with "http" is a URL (prefix only, no scheme parsing)
//  2. a hostname whose final label is a registered TLD is a Domain; a
//     hostname with an unknown TLD is Unmatched
//  3. a dotted quad with every octet in 0-255 is an IP
//
// A hostname needs an alphabetic final label, so digits-and-dots tokens can
// only ever reach the IP branch. A nil checker disables domain matches.
func Classify(token string, tlds TLDChecker) Classification {
	switch {
	case token == "":
		return Classification{Verdict: Unmatched, Token: token}
	case strings.HasPrefix(token, "http"):
		return Classification{Verdict: VerdictURL, Token: token}
	case hostnamePattern.MatchString(token):
		if hasRegisteredTLD(token, tlds) {
			return Classification{Verdict: VerdictDomain, Token: token}
		}
		return Classification{Verdict: Unmatched, Token: token}
	case ipv4Pattern.MatchString(token):
		return Classification{Verdict: VerdictIP, Token: token}
	default:
		return Classification{Verdict: Unmatched, Token: token}
	}
}

// HasHostnameShape reports whether token is dotted labels ending in an
// alphabetic label, regardless of whether that label is a registered TLD.
func HasHostnameShape(token string) bool {
	return hostnamePattern.MatchString(token)
}

func hasRegisteredTLD(hostname string, tlds TLDChecker) bool {
	if tlds == nil {
		return false
	}
	// A nil *TLDRegistry stored in the interface is handled by IsValid.
	tld := hostname[strings.LastIndexByte(hostname, '.')+1:]
	return tlds.IsValid(strings.ToLower(tld))
}
