package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/janderssonse/signservice-integration/internal/core/domain"
	"github.com/janderssonse/signservice-integration/internal/core/ports"
)

// SignerAssertionInfoProcessor validates the signer identity evidence in a
// sign response against the state recorded when the request was sent.
// It holds no per-call state and is safe for concurrent use.
type SignerAssertionInfoProcessor struct {
	parser  ports.AssertionParser
	metrics ports.MetricsRecorder
	logger  *zap.Logger
}

// ProcessorOption configures a SignerAssertionInfoProcessor.
type ProcessorOption func(*SignerAssertionInfoProcessor)

// WithProcessorLogger sets the logger.
func WithProcessorLogger(logger *zap.Logger) ProcessorOption {
	return func(p *SignerAssertionInfoProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProcessorMetrics sets the metrics recorder.
func WithProcessorMetrics(m ports.MetricsRecorder) ProcessorOption {
	return func(p *SignerAssertionInfoProcessor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewSignerAssertionInfoProcessor creates a processor that uses parser to
// read the declared id of delivered assertions.
func NewSignerAssertionInfoProcessor(parser ports.AssertionParser, opts ...ProcessorOption) *SignerAssertionInfoProcessor {
	p := &SignerAssertionInfoProcessor{
		parser:  parser,
		metrics: noopMetrics{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates the signer assertion info of response. The checks run in
// a fixed order and the first failure is returned; there is no partial result.
// A nil policy means domain.DefaultProcessingPolicy.
func (p *SignerAssertionInfoProcessor) Process(ctx context.Context, response *domain.SignResponse, state *domain.SignatureSessionState, policy *domain.ProcessingPolicy) (*domain.SignerAssertionInformation, error) {
	if policy == nil {
		policy = domain.DefaultProcessingPolicy()
	}
	correlationID := domain.CorrelationID(ctx)
	requestID := ""
	if state != nil {
		requestID = state.RequestID
	}
	log := p.logger.With(
		zap.String("correlation_id", correlationID),
		zap.String("request_id", requestID))

	info, err := p.process(log, response, state, policy)

	idp := ""
	if state != nil {
		idp = state.IdentityProvider
	}
	if err != nil {
		var ie *domain.IntegrationError
		code := ""
		if errors.As(err, &ie) {
			ie = ie.WithCorrelationID(correlationID)
			if ie.RequestID == "" {
				ie = ie.WithRequestID(requestID)
			}
			code = ie.Code.String()
			err = ie
		}
		log.Error("signer assertion processing failed", zap.Error(err))
		p.metrics.RecordAssertionValidation(idp, code)
		return nil, err
	}
	p.metrics.RecordAssertionValidation(idp, "")
	return info, nil
}

func (p *SignerAssertionInfoProcessor) process(log *zap.Logger, response *domain.SignResponse, state *domain.SignatureSessionState, policy *domain.ProcessingPolicy) (*domain.SignerAssertionInformation, error) {
	if response == nil {
		return nil, domain.InputValidationError("signResponse", "Missing sign response")
	}
	if state == nil {
		return nil, domain.InputValidationError("state", "Missing signature session state")
	}
	if sm := state.SignMessage; sm != nil && sm.MimeType != "" {
		if _, ok := domain.ParseSignMessageMimeType(string(sm.MimeType)); !ok {
			return nil, domain.InputValidationError("state.signMessage.mimeType",
				fmt.Sprintf("Unsupported sign message MIME type '%s'", sm.MimeType))
		}
	}

	assertionInfo := response.SignerAssertionInfo
	if assertionInfo == nil {
		return nil, domain.ProtocolError("No SignerAssertionInfo available in SignResponse", nil)
	}

	attributes, err := processAttributes(log, assertionInfo, state, policy)
	if err != nil {
		return nil, err
	}

	contextInfo := assertionInfo.ContextInfo
	if contextInfo == nil {
		return nil, domain.ProtocolError("No SignerAssertionInfo/ContextInfo available in SignResponse", nil)
	}

	if strings.TrimSpace(contextInfo.IdentityProvider) == "" {
		return nil, domain.ProtocolError("No SignerAssertionInfo/ContextInfo/IdentityProvider available in SignResponse", nil)
	}
	if contextInfo.IdentityProvider != state.IdentityProvider {
		return nil, domain.ResponseProcessingError(fmt.Sprintf(
			"IdentityProvider in SignResponse (%s) does not match provider given in SignRequest (%s)",
			contextInfo.IdentityProvider, state.IdentityProvider), nil)
	}

	if err := processAuthenticationInstant(contextInfo, state, response, policy); err != nil {
		return nil, err
	}

	if err := processAuthnContextClassRef(contextInfo, attributes, state, policy); err != nil {
		return nil, err
	}

	assertionRef := contextInfo.AssertionRef
	if strings.TrimSpace(assertionRef) == "" {
		return nil, domain.ProtocolError("No SignerAssertionInfo/ContextInfo/AssertionRef available in SignResponse", nil)
	}

	assertion, err := p.selectAssertion(log, assertionInfo.Assertions, assertionRef, policy)
	if err != nil {
		return nil, err
	}

	return &domain.SignerAssertionInformation{
		SignerAttributes:   attributes,
		AuthnServiceID:     contextInfo.IdentityProvider,
		AuthnInstant:       *contextInfo.AuthenticationInstant,
		AuthnContextRef:    contextInfo.AuthnContextClassRef,
		AuthnType:          contextInfo.AuthType,
		AssertionReference: assertionRef,
		Assertion:          assertion,
	}, nil
}

// processAttributes returns the delivered attributes. Under strict processing
// every required attribute without a default value must have been delivered
// under at least one of its accepted names.
func processAttributes(log *zap.Logger, info *domain.SignerAssertionInfo, state *domain.SignatureSessionState, policy *domain.ProcessingPolicy) ([]domain.SignerAttribute, error) {
	if len(info.Attributes) == 0 {
		return nil, domain.ProtocolError("No SignerAssertionInfo/AttributeStatement available in SignResponse", nil)
	}
	attributes := make([]domain.SignerAttribute, len(info.Attributes))
	copy(attributes, info.Attributes)

	if !policy.StrictProcessing {
		return attributes, nil
	}
	for _, requested := range state.RequestedAttributes {
		if !requested.Required || strings.TrimSpace(requested.DefaultValue) != "" {
			continue
		}
		delivered := false
		for _, name := range requested.SAMLAttributeNames {
			if domain.HasAttribute(attributes, name) {
				log.Debug("requested attribute was delivered", zap.String("attribute", name))
				delivered = true
				break
			}
		}
		if !delivered {
			return nil, domain.ResponseProcessingError(fmt.Sprintf(
				"None of the requested attribute(s) %v were delivered in SignerAssertionInfo/AttributeStatement",
				requested.SAMLAttributeNames), nil)
		}
	}
	return attributes, nil
}

// processAuthenticationInstant checks that the user authenticated after the
// request was sent and before the response was issued, give or take the
// allowed clock skew.
func processAuthenticationInstant(contextInfo *domain.ContextInfo, state *domain.SignatureSessionState, response *domain.SignResponse, policy *domain.ProcessingPolicy) error {
	if contextInfo.AuthenticationInstant == nil {
		return domain.ProtocolError("No SignerAssertionInfo/ContextInfo/AuthenticationInstant available in SignResponse", nil)
	}
	instant := *contextInfo.AuthenticationInstant
	notBefore, notAfter := domain.AuthnInstantWithinWindow(instant, state.RequestTime, response.ResponseTime, policy.AllowedClockSkew)
	if !notBefore {
		return domain.ResponseProcessingError(fmt.Sprintf(
			"Invalid authentication instant (%s). It is before the SignRequest was sent (%s)",
			instant.UTC().Format(timeFormat), state.RequestTime.UTC().Format(timeFormat)), nil)
	}
	if !notAfter {
		return domain.ResponseProcessingError(fmt.Sprintf(
			"Invalid authentication instant (%s). It is after the SignResponse time (%s)",
			instant.UTC().Format(timeFormat), response.ResponseTime.UTC().Format(timeFormat)), nil)
	}
	return nil
}

// processAuthnContextClassRef checks the delivered authentication context
// against the requested one.
//
// TODO: under strict processing, compare the signMessageDigest value with a
// digest of the sign message that was sent once the digest algorithm has been
// decided on.
func processAuthnContextClassRef(contextInfo *domain.ContextInfo, attributes []domain.SignerAttribute, state *domain.SignatureSessionState, policy *domain.ProcessingPolicy) error {
	delivered := contextInfo.AuthnContextClassRef
	if strings.TrimSpace(delivered) == "" {
		return domain.ProtocolError("No SignerAssertionInfo/ContextInfo/AuthnContextClassRef available in SignResponse", nil)
	}
	requested := state.AuthnContextClassRef

	if delivered == requested {
		if state.RequireDisplaySignMessageProof() {
			digest, _ := domain.AttributeValue(attributes, domain.AttributeNameSignMessageDigest)
			if strings.TrimSpace(digest) == "" {
				return domain.ResponseProcessingError(
					"Missing proof for displayed sign message (no signMessageDigest and no sigmessage authnContext)", nil)
			}
		}
		return nil
	}

	if !policy.AllowSigMessageURIs {
		return domain.ResponseProcessingError(fmt.Sprintf(
			"Unexpected authnContextRef received - %s. %s was expected", delivered, requested), nil)
	}
	expected, ok := policy.ExpectedSigMessageURI(requested)
	if !ok {
		return domain.ResponseProcessingError(fmt.Sprintf(
			"Unrecognized authnContextRef received %s - no sigmessage mapping exists for %s", delivered, requested), nil)
	}
	if delivered != expected {
		return domain.ResponseProcessingError(fmt.Sprintf(
			"Unexpected authnContextRef received - %s. %s was expected", delivered, expected), nil)
	}
	if state.SignMessage == nil {
		return domain.ResponseProcessingError(fmt.Sprintf(
			"Invalid authnContextRef received - %s. No SignMessage was sent, so returning a sigmessage URI is illegal", delivered), nil)
	}
	return nil
}

// selectAssertion picks the first assertion whose declared id equals
// assertionRef. Every candidate must parse. With a single assertion and strict
// processing off, that assertion is trusted without parsing it.
func (p *SignerAssertionInfoProcessor) selectAssertion(log *zap.Logger, assertions [][]byte, assertionRef string, policy *domain.ProcessingPolicy) ([]byte, error) {
	if len(assertions) == 0 {
		if policy.RequireAssertion {
			return nil, domain.ProtocolError("No SignerAssertionInfo/SamlAssertions present in SignResponse. Configuration requires this", nil)
		}
		return nil, nil
	}

	if len(assertions) == 1 && !policy.StrictProcessing {
		return cloneBytes(assertions[0]), nil
	}

	var selected []byte
	for i, a := range assertions {
		id, err := p.parser.AssertionID(a)
		if err != nil {
			return nil, domain.ResponseProcessingError(fmt.Sprintf(
				"Invalid SAML assertion found in SignerAssertionInfo/SamlAssertions (index %d)", i), err)
		}
		if id == assertionRef {
			if selected == nil {
				selected = a
			}
			continue
		}
		log.Info("assertion does not match AssertionRef",
			zap.String("assertion_id", id),
			zap.String("assertion_ref", assertionRef))
	}
	if selected == nil {
		return nil, domain.ResponseProcessingError("No SAML assertion matching AssertionRef found in SignerAssertionInfo/SamlAssertions", nil)
	}
	return cloneBytes(selected), nil
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
