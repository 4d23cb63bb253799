package domain

import (
	"maps"
	"time"
)

// DefaultAllowedClockSkew is the clock skew used when none is configured.
const DefaultAllowedClockSkew = 60 * time.Second

// ProcessingPolicy controls how sign responses are validated.
// It is read-only once handed to the processor.
type ProcessingPolicy struct {
	// StrictProcessing turns on exact cross-checks of attributes and
	// assertion correlation.
	StrictProcessing bool `json:"strict_processing" yaml:"strict_processing"`

	// RequireAssertion makes a response without SAML assertions invalid.
	RequireAssertion bool `json:"require_assertion" yaml:"require_assertion"`

	// AllowedClockSkew is the drift tolerated when comparing times.
	AllowedClockSkew time.Duration `json:"allowed_clock_skew" yaml:"allowed_clock_skew"`

	// AllowSigMessageURIs accepts an authentication context that differs from
	// the requested one if it is the mapped "sigmessage" alternative.
	AllowSigMessageURIs bool `json:"allow_sig_message_uris" yaml:"allow_sig_message_uris"`

	// SigMessageURIMap maps a requested authentication context to the
	// alternative an identity provider may return after showing a sign message.
	SigMessageURIMap map[string]string `json:"sig_message_uri_map" yaml:"sig_message_uri_map"`
}

// DefaultSigMessageURIMap holds the Sweden Connect level of assurance
// identifiers and their sign message counterparts.
var DefaultSigMessageURIMap = map[string]string{
	"http://id.elegnamnden.se/loa/1.0/loa2":       "http://id.elegnamnden.se/loa/1.0/loa2-sigmessage",
	"http://id.elegnamnden.se/loa/1.0/loa3":       "http://id.elegnamnden.se/loa/1.0/loa3-sigmessage",
	"http://id.elegnamnden.se/loa/1.0/loa4":       "http://id.elegnamnden.se/loa/1.0/loa4-sigmessage",
	"http://id.elegnamnden.se/loa/1.0/eidas-low":  "http://id.elegnamnden.se/loa/1.0/eidas-low-sigm",
	"http://id.elegnamnden.se/loa/1.0/eidas-sub":  "http://id.elegnamnden.se/loa/1.0/eidas-sub-sigm",
	"http://id.elegnamnden.se/loa/1.0/eidas-high": "http://id.elegnamnden.se/loa/1.0/eidas-high-sigm",
}

// DefaultProcessingPolicy returns the policy used when nothing is configured.
func DefaultProcessingPolicy() *ProcessingPolicy {
	return &ProcessingPolicy{
		StrictProcessing:    false,
		RequireAssertion:    true,
		AllowedClockSkew:    DefaultAllowedClockSkew,
		AllowSigMessageURIs: true,
		SigMessageURIMap:    maps.Clone(DefaultSigMessageURIMap),
	}
}

// ExpectedSigMessageURI returns the alternative for the requested context.
func (p *ProcessingPolicy) ExpectedSigMessageURI(requested string) (string, bool) {
	uri, ok := p.SigMessageURIMap[requested]
	return uri, ok && uri != ""
}

// AuthnInstantWithinWindow reports whether instant lies within
// [requestTime - skew, responseTime + skew].
//
// This is a pure function with no side effects or I/O.
func AuthnInstantWithinWindow(instant, requestTime, responseTime time.Time, skew time.Duration) (notBefore, notAfter bool) {
	notBefore = !instant.Add(skew).Before(requestTime)
	notAfter = !instant.Add(-skew).After(responseTime)
	return notBefore, notAfter
}
