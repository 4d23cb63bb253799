package ports

// SignatureVerifier verifies the XML signature on a signed SAML object.
// This is a port interface - implementations are adapters.
//
// The interface returns validated bytes (not just error) following goxmldsig
// best practices to prevent signature wrapping attacks. The returned bytes
// should be used for further processing.
type SignatureVerifier interface {
	// Verify validates the XML signature and returns the validated XML bytes.
	// Returns error if signature is invalid or missing.
	Verify(data []byte) ([]byte, error)
}

// XMLSigner signs XML documents with an enveloped signature.
type XMLSigner interface {
	Sign(data []byte) ([]byte, error)
}
