// Package signature verifies and creates enveloped XML signatures on SAML
// assertions using goxmldsig.
package signature

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"go.uber.org/zap"

	"github.com/janderssonse/signservice-integration/internal/core/ports"
)

// algorithmURIToName maps XML DSig algorithm URIs to human-readable names.
var algorithmURIToName = map[string]string{
	"http://www.w3.org/2000/09/xmldsig#rsa-sha1":          "RSA-SHA1",
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha256":   "RSA-SHA256",
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha384":   "RSA-SHA384",
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha512":   "RSA-SHA512",
	"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256": "ECDSA-SHA256",
	"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha384": "ECDSA-SHA384",
	"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha512": "ECDSA-SHA512",
}

// algorithmName converts an XML DSig algorithm URI to a human-readable name.
// Returns the URI unchanged if not recognized.
func algorithmName(uri string) string {
	if name, ok := algorithmURIToName[uri]; ok {
		return name
	}
	return uri
}

// ErrSignatureInvalid is wrapped by every verification failure.
var ErrSignatureInvalid = errors.New("assertion signature invalid")

// XMLDsigVerifier verifies enveloped assertion signatures against the
// identity provider certificates it trusts.
type XMLDsigVerifier struct {
	certStore dsig.X509CertificateStore
	certs     []*x509.Certificate
	logger    *zap.Logger
}

// NewXMLDsigVerifier creates a verifier trusting the given certificates.
// Several certificates may be given to cover key rollover.
func NewXMLDsigVerifier(certs []*x509.Certificate, logger *zap.Logger) *XMLDsigVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XMLDsigVerifier{
		certStore: &dsig.MemoryX509CertificateStore{Roots: certs},
		certs:     certs,
		logger:    logger,
	}
}

// Verify validates the signature on the root element of data and returns the
// validated element, re-serialized.
func (v *XMLDsigVerifier) Verify(data []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: parse XML: %v", ErrSignatureInvalid, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty XML document", ErrSignatureInvalid)
	}

	algorithm := extractSignatureAlgorithm(root)

	ctx := dsig.NewDefaultValidationContext(v.certStore)
	validated, err := ctx.Validate(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	v.logger.Debug("assertion signature verified",
		zap.String("algorithm", algorithmName(algorithm)),
		zap.String("id", validated.SelectAttrValue("ID", "")),
		zap.Int("trusted_certs", len(v.certs)))

	// Only the validated element is handed on, see signature wrapping attacks
	validatedDoc := etree.NewDocument()
	validatedDoc.SetRoot(validated)
	result, err := validatedDoc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize validated assertion: %w", err)
	}
	return result, nil
}

// extractSignatureAlgorithm returns the SignatureMethod Algorithm of the
// enveloped signature, or "" if there is none.
func extractSignatureAlgorithm(root *etree.Element) string {
	sig := root.FindElement("./Signature")
	if sig == nil {
		return ""
	}
	signedInfo := sig.FindElement("./SignedInfo")
	if signedInfo == nil {
		return ""
	}
	sigMethod := signedInfo.FindElement("./SignatureMethod")
	if sigMethod == nil {
		return ""
	}
	return sigMethod.SelectAttrValue("Algorithm", "")
}

// XMLDsigSigner creates enveloped signatures. The test identity provider
// and the test suites use it to produce signed assertions.
type XMLDsigSigner struct {
	privateKey  *rsa.PrivateKey
	certificate *x509.Certificate
}

// NewXMLDsigSigner creates a signer with the given key pair.
func NewXMLDsigSigner(privateKey *rsa.PrivateKey, certificate *x509.Certificate) *XMLDsigSigner {
	return &XMLDsigSigner{
		privateKey:  privateKey,
		certificate: certificate,
	}
}

// Sign adds an enveloped XML signature to the root element of data.
func (s *XMLDsigSigner) Sign(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty XML document")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty XML document")
	}

	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{s.certificate.Raw},
		PrivateKey:  s.privateKey,
	})
	signingContext := dsig.NewDefaultSigningContext(keyStore)
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signedRoot, err := signingContext.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("sign XML: %w", err)
	}
	doc.SetRoot(signedRoot)

	signed, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize signed XML: %w", err)
	}
	return signed, nil
}

// Ensure implementations satisfy interfaces
var _ ports.SignatureVerifier = (*XMLDsigVerifier)(nil)
var _ ports.XMLSigner = (*XMLDsigSigner)(nil)
