package domain

import (
	"time"
)

// AttributeNameSignMessageDigest is the attribute an identity provider
// releases as proof that a sign message was displayed to the user.
const AttributeNameSignMessageDigest = "urn:oid:1.2.752.201.3.14"

// SignMessageMimeType is the MIME type of a sign message.
type SignMessageMimeType string

const (
	SignMessageMimeTypeText     SignMessageMimeType = "text"
	SignMessageMimeTypeHTML     SignMessageMimeType = "text/html"
	SignMessageMimeTypeMarkdown SignMessageMimeType = "text/markdown"
)

// ParseSignMessageMimeType returns the MIME type matching s.
func ParseSignMessageMimeType(s string) (SignMessageMimeType, bool) {
	switch t := SignMessageMimeType(s); t {
	case SignMessageMimeTypeText, SignMessageMimeTypeHTML, SignMessageMimeTypeMarkdown:
		return t, true
	default:
		return "", false
	}
}

// SignMessage is the message the user was asked to approve at signing.
type SignMessage struct {
	MustShow bool                `json:"must_show"`
	MimeType SignMessageMimeType `json:"mime_type,omitempty"`
	Message  string              `json:"message,omitempty"`
}

// RequestedCertAttribute is one attribute requested for the signing
// certificate. Any of the SAML attribute names will do.
type RequestedCertAttribute struct {
	CertAttributeRef   string   `json:"cert_attribute_ref,omitempty"`
	SAMLAttributeNames []string `json:"saml_attribute_names"`
	Required           bool     `json:"required"`
	DefaultValue       string   `json:"default_value,omitempty"`
}

// SignatureSessionState is the state recorded when the sign request was
// sent. It is owned by the caller; the core only reads it.
type SignatureSessionState struct {
	RequestID            string                   `json:"request_id"`
	IdentityProvider     string                   `json:"identity_provider"`
	AuthnContextClassRef string                   `json:"authn_context_class_ref"`
	RequestedAttributes  []RequestedCertAttribute `json:"requested_attributes,omitempty"`
	RequestTime          time.Time                `json:"request_time"`
	SignMessage          *SignMessage             `json:"sign_message,omitempty"`
}

// RequireDisplaySignMessageProof reports whether a sign message with the
// must-show flag set was part of the request.
func (s *SignatureSessionState) RequireDisplaySignMessageProof() bool {
	return s.SignMessage != nil && s.SignMessage.MustShow
}

// SignerAttribute is an identity attribute delivered for the signer.
type SignerAttribute struct {
	Name         string `json:"name"`
	Value        string `json:"value"`
	NameFormat   string `json:"name_format,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

// ContextInfo describes the authentication bound to the signature.
type ContextInfo struct {
	IdentityProvider      string     `json:"identity_provider"`
	AuthenticationInstant *time.Time `json:"authentication_instant,omitempty"`
	AuthnContextClassRef  string     `json:"authn_context_class_ref"`
	AuthType              string     `json:"auth_type,omitempty"`
	AssertionRef          string     `json:"assertion_ref"`
	ServiceID             string     `json:"service_id,omitempty"`
}

// SignerAssertionInfo is the signer identity block of a sign response.
type SignerAssertionInfo struct {
	Attributes  []SignerAttribute `json:"attributes"`
	ContextInfo *ContextInfo      `json:"context_info,omitempty"`

	// Assertions holds the raw SAML assertions included by the signer.
	Assertions [][]byte `json:"assertions,omitempty"`
}

// SignResponse is the part of a decoded sign response that the assertion
// processing reads.
type SignResponse struct {
	InResponseTo        string               `json:"in_response_to,omitempty"`
	ResponseTime        time.Time            `json:"response_time"`
	SignerAssertionInfo *SignerAssertionInfo `json:"signer_assertion_info,omitempty"`
}

// SignerAssertionInformation is the validated evidence about the signer's
// authentication, handed on to certificate issuance.
type SignerAssertionInformation struct {
	SignerAttributes   []SignerAttribute `json:"signer_attributes"`
	AuthnServiceID     string            `json:"authn_service_id"`
	AuthnInstant       time.Time         `json:"authn_instant"`
	AuthnContextRef    string            `json:"authn_context_ref"`
	AuthnType          string            `json:"authn_type,omitempty"`
	AssertionReference string            `json:"assertion_reference"`

	// Assertion is the selected raw assertion, nil when none was delivered
	// and none was required.
	Assertion []byte `json:"assertion,omitempty"`
}

// HasAttribute reports whether an attribute with the given name is present.
func HasAttribute(attrs []SignerAttribute, name string) bool {
	_, ok := AttributeValue(attrs, name)
	return ok
}

// AttributeValue returns the value of the first attribute with the given name.
func AttributeValue(attrs []SignerAttribute, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}
