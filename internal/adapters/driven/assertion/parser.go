// Package assertion decodes the raw SAML assertions found in sign responses.
package assertion

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/crewjam/saml"
	"go.uber.org/zap"

	"github.com/janderssonse/signservice-integration/internal/core/ports"
)

// samlAssertionNamespace is the SAML 2.0 assertion namespace.
const samlAssertionNamespace = "urn:oasis:names:tc:SAML:2.0:assertion"

// Parser reads SAML 2.0 assertions using crewjam/saml.
type Parser struct {
	verifier ports.SignatureVerifier
	logger   *zap.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithSignatureVerifier makes the parser verify the assertion signature before
// reading it. Only the verified element is used.
func WithSignatureVerifier(v ports.SignatureVerifier) Option {
	return func(p *Parser) {
		p.verifier = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates an assertion parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AssertionID returns the ID attribute of the assertion.
func (p *Parser) AssertionID(data []byte) (string, error) {
	a, err := p.Parse(data)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// Parse decodes data into a saml.Assertion.
func (p *Parser) Parse(data []byte) (*saml.Assertion, error) {
	if len(data) == 0 {
		return nil, errors.New("empty assertion")
	}

	if p.verifier != nil {
		verified, err := p.verifier.Verify(data)
		if err != nil {
			return nil, fmt.Errorf("verify assertion: %w", err)
		}
		data = verified
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse assertion XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty XML document")
	}
	if root.Tag != "Assertion" || root.NamespaceURI() != samlAssertionNamespace {
		return nil, fmt.Errorf("unexpected root element {%s}%s", root.NamespaceURI(), root.Tag)
	}

	var assertion saml.Assertion
	if err := xml.Unmarshal(data, &assertion); err != nil {
		return nil, fmt.Errorf("unmarshal assertion: %w", err)
	}
	if strings.TrimSpace(assertion.ID) == "" {
		return nil, errors.New("assertion has no ID")
	}

	p.logger.Debug("parsed SAML assertion",
		zap.String("assertion_id", assertion.ID),
		zap.String("issuer", assertion.Issuer.Value))
	return &assertion, nil
}

// Ensure Parser implements ports.AssertionParser
var _ ports.AssertionParser = (*Parser)(nil)
