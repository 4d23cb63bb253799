package ports

// AssertionParser decodes raw SAML assertions delivered in a sign response.
// This is a port interface - implementations are adapters.
type AssertionParser interface {
	// AssertionID parses the assertion and returns its declared ID.
	// Returns error if the bytes are not a well-formed SAML assertion.
	AssertionID(assertion []byte) (string, error)
}
