// Package idp provides a test identity provider that issues signed SAML
// assertions and the sign responses that carry them.
// It builds assertions with crewjam/saml and signs them with goxmldsig.
package idp

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml"
	"github.com/google/uuid"

	"github.com/janderssonse/signservice-integration/internal/adapters/driven/signature"
	"github.com/janderssonse/signservice-integration/internal/core/domain"
)

// User is a subject the test IdP authenticates.
type User struct {
	PersonalIdentityNumber string
	GivenName              string
	Surname                string
}

// Attribute names used for User.
const (
	AttributePersonalIdentityNumber = "urn:oid:1.2.752.29.4.13"
	AttributeGivenName              = "urn:oid:2.5.4.42"
	AttributeSurname                = "urn:oid:2.5.4.4"
)

// TestIdP is a test identity provider.
type TestIdP struct {
	t        testing.TB
	entityID string
	key      *rsa.PrivateKey
	cert     *x509.Certificate
	signer   *signature.XMLDsigSigner
}

// New creates a test IdP with a fresh self-signed certificate.
func New(t testing.TB, entityID string) *TestIdP {
	t.Helper()

	key, cert, err := generateSelfSignedCert()
	if err != nil {
		t.Fatalf("failed to generate IdP certificate: %v", err)
	}
	return &TestIdP{
		t:        t,
		entityID: entityID,
		key:      key,
		cert:     cert,
		signer:   signature.NewXMLDsigSigner(key, cert),
	}
}

// EntityID returns the entity id of the IdP.
func (idp *TestIdP) EntityID() string {
	return idp.entityID
}

// Certificate returns the signing certificate.
func (idp *TestIdP) Certificate() *x509.Certificate {
	return idp.cert
}

// CertificatePEM returns the IdP certificate in PEM format.
func (idp *TestIdP) CertificatePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: idp.cert.Raw,
	})
}

// Assertion issues a signed assertion for user.
func (idp *TestIdP) Assertion(id string, user User, authnInstant time.Time, authnContextClassRef string) []byte {
	idp.t.Helper()

	a := &saml.Assertion{
		ID:           id,
		IssueInstant: authnInstant,
		Version:      "2.0",
		Issuer: saml.Issuer{
			Format: "urn:oasis:names:tc:SAML:2.0:nameid-format:entity",
			Value:  idp.entityID,
		},
		Subject: &saml.Subject{
			NameID: &saml.NameID{
				Format: "urn:oasis:names:tc:SAML:2.0:nameid-format:transient",
				Value:  "_" + uuid.NewString(),
			},
		},
		AuthnStatements: []saml.AuthnStatement{{
			AuthnInstant: authnInstant,
			AuthnContext: saml.AuthnContext{
				AuthnContextClassRef: &saml.AuthnContextClassRef{Value: authnContextClassRef},
			},
		}},
		AttributeStatements: []saml.AttributeStatement{{
			Attributes: samlAttributes(user),
		}},
	}

	doc := etree.NewDocument()
	doc.SetRoot(a.Element())
	unsigned, err := doc.WriteToBytes()
	if err != nil {
		idp.t.Fatalf("failed to serialize assertion: %v", err)
	}
	signed, err := idp.signer.Sign(unsigned)
	if err != nil {
		idp.t.Fatalf("failed to sign assertion: %v", err)
	}
	return signed
}

// SignResponse issues a sign response answering state. The user is
// authenticated one second after the request was sent and the response is
// issued one second after that.
func (idp *TestIdP) SignResponse(state *domain.SignatureSessionState, user User, authnContextClassRef string) *domain.SignResponse {
	idp.t.Helper()

	authnInstant := state.RequestTime.Add(time.Second)
	assertionID := "_" + uuid.NewString()

	return &domain.SignResponse{
		InResponseTo: state.RequestID,
		ResponseTime: authnInstant.Add(time.Second),
		SignerAssertionInfo: &domain.SignerAssertionInfo{
			Attributes: signerAttributes(user),
			ContextInfo: &domain.ContextInfo{
				IdentityProvider:      idp.entityID,
				AuthenticationInstant: &authnInstant,
				AuthnContextClassRef:  authnContextClassRef,
				AuthType:              "saml",
				AssertionRef:          assertionID,
			},
			Assertions: [][]byte{idp.Assertion(assertionID, user, authnInstant, authnContextClassRef)},
		},
	}
}

func userAttributes(user User) [][2]string {
	return [][2]string{
		{AttributePersonalIdentityNumber, user.PersonalIdentityNumber},
		{AttributeGivenName, user.GivenName},
		{AttributeSurname, user.Surname},
	}
}

func samlAttributes(user User) []saml.Attribute {
	var attrs []saml.Attribute
	for _, kv := range userAttributes(user) {
		attrs = append(attrs, saml.Attribute{
			Name:       kv[0],
			NameFormat: "urn:oasis:names:tc:SAML:2.0:attrname-format:uri",
			Values:     []saml.AttributeValue{{Type: "xs:string", Value: kv[1]}},
		})
	}
	return attrs
}

func signerAttributes(user User) []domain.SignerAttribute {
	var attrs []domain.SignerAttribute
	for _, kv := range userAttributes(user) {
		attrs = append(attrs, domain.SignerAttribute{
			Name:       kv[0],
			Value:      kv[1],
			NameFormat: "urn:oasis:names:tc:SAML:2.0:attrname-format:uri",
		})
	}
	return attrs
}

// generateSelfSignedCert creates a self-signed certificate for the test IdP.
func generateSelfSignedCert() (*rsa.PrivateKey, *x509.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "Test IdP",
			Organization: []string{"Test"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, fmt.Errorf("parse certificate: %w", err)
	}

	return key, cert, nil
}
