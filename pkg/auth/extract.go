package auth

import (
	"net/url"
	"strings"
)

// AuthorizationHeader is the standard HTTP credential header.
const AuthorizationHeader = "Authorization"

const bearerPrefix = "Bearer "

// RequestAdapter is the narrow view of an inbound request that a host
// integration provides to the extractor.
type RequestAdapter interface {
	// Header returns the first value of the named header.
	Header(name string) (string, bool)

	// Cookie returns the value of the named cookie.
	Cookie(name string) (string, bool)

	// RawQuery returns the undecoded query string without the leading '?'.
	RawQuery() string
}

// CredentialSource identifies where a token was found.
type CredentialSource int

const (
	SourceNone CredentialSource = iota
	SourceHeader
	SourceAuthorization
	SourceCookie
	SourceQuery
)

func (s CredentialSource) String() string {
	switch s {
	case SourceHeader:
		return "header"
	case SourceAuthorization:
		return "authorization"
	case SourceCookie:
		return "cookie"
	case SourceQuery:
		return "query"
	default:
		return "none"
	}
}

// Credential is a raw token and the request location it came from.
type Credential struct {
	Token  string
	Source CredentialSource
}

// ExtractToken looks for a token in this order, returning the first hit:
//
//  1. header tokenName, with a leading "Bearer " stripped
//  2. header Authorization (only if tokenName differs), stripped the same way
//  3. cookie tokenName, as is
//  4. query parameter tokenName, percent-decoded
//
// A source counts only when it carries a non-empty value after stripping, so
// a bare "Bearer " header falls through to the next tier.
func ExtractToken(req RequestAdapter, tokenName string) (Credential, bool) {
	if v, ok := req.Header(tokenName); ok {
		if t := StripBearer(v); t != "" {
			return Credential{Token: t, Source: SourceHeader}, true
		}
	}
	if tokenName != AuthorizationHeader {
		if v, ok := req.Header(AuthorizationHeader); ok {
			if t := StripBearer(v); t != "" {
				return Credential{Token: t, Source: SourceAuthorization}, true
			}
		}
	}
	if v, ok := req.Cookie(tokenName); ok && v != "" {
		return Credential{Token: v, Source: SourceCookie}, true
	}
	if v, ok := QueryParam(req.RawQuery(), tokenName); ok && v != "" {
		return Credential{Token: v, Source: SourceQuery}, true
	}
	return Credential{}, false
}

// StripBearer removes a single leading "Bearer " and surrounding spaces.
func StripBearer(v string) string {
	v, _ = strings.CutPrefix(v, bearerPrefix)
	return strings.TrimSpace(v)
}

// QueryParam returns the first value of name in a raw query string.
// Keys are compared undecoded; values are percent-decoded without turning
// '+' into a space. Values that fail to decode are skipped.
func QueryParam(rawQuery, name string) (string, bool) {
	for pair := range strings.SplitSeq(rawQuery, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key != name {
			continue
		}
		decoded, err := url.PathUnescape(value)
		if err != nil {
			continue
		}
		return decoded, true
	}
	return "", false
}
