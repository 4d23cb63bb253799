// Package services implements the two operations that bracket a remote
// signing transaction: signature page preparation before the sign request is
// sent and signer assertion processing after the sign response is received.
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

// rfc3161SubFilter identifies document timestamps, which do not occupy a
// signature image slot.
const rfc3161SubFilter = "ETSI.RFC3161"

// SignaturePagePreparer decides whether a signature page must be added to a
// PDF document and computes where the next signature image goes.
// It holds no per-call state and is safe for concurrent use.
type SignaturePagePreparer struct {
	processor ports.DocumentProcessor
	metrics   ports.MetricsRecorder
	logger    *zap.Logger
}

// PreparerOption configures a SignaturePagePreparer.
type PreparerOption func(*SignaturePagePreparer)

// WithPreparerLogger sets the logger.
func WithPreparerLogger(logger *zap.Logger) PreparerOption {
	return func(p *SignaturePagePreparer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPreparerMetrics sets the metrics recorder.
func WithPreparerMetrics(m ports.MetricsRecorder) PreparerOption {
	return func(p *SignaturePagePreparer) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewSignaturePagePreparer creates a preparer using the given document processor.
func NewSignaturePagePreparer(processor ports.DocumentProcessor, opts ...PreparerOption) *SignaturePagePreparer {
	p := &SignaturePagePreparer{
		processor: processor,
		metrics:   noopMetrics{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare prepares document for signing according to prefs and policy.
//
// If the document has no signatures, the signature page is inserted and the
// updated document is returned. Otherwise the existing signature page is
// located and the document is left as is. When the page is full the result
// carries a null visible signature requirement, unless the preferences ask
// for an error.
func (p *SignaturePagePreparer) Prepare(ctx context.Context, document []byte, prefs *domain.SignaturePagePreferences, policy *domain.PolicyConfiguration) (*domain.PreparedDocument, error) {
	correlationID := domain.CorrelationID(ctx)
	log := p.logger.With(zap.String("correlation_id", correlationID))

	policyName := ""
	if policy != nil {
		policyName = policy.Policy
	}

	result, outcome, err := p.prepare(log, document, prefs, policy)
	if err != nil {
		var ie *domain.IntegrationError
		if errors.As(err, &ie) {
			err = ie.WithCorrelationID(correlationID)
		}
		log.Error("signature page preparation failed", zap.String("policy", policyName), zap.Error(err))
		p.metrics.RecordSignaturePagePrepared(policyName, ports.OutcomeError)
		return nil, err
	}
	p.metrics.RecordSignaturePagePrepared(policyName, outcome)
	return result, nil
}

func (p *SignaturePagePreparer) prepare(log *zap.Logger, document []byte, prefs *domain.SignaturePagePreferences, policy *domain.PolicyConfiguration) (*domain.PreparedDocument, string, error) {
	if len(document) == 0 {
		return nil, "", domain.InputValidationError("pdfDocument", "Missing pdfDocument")
	}
	if err := domain.ValidateSignaturePagePreferences(prefs, policy); err != nil {
		return nil, "", err
	}
	resolved, err := domain.ResolvePreferences(prefs, policy)
	if err != nil {
		return nil, "", err
	}
	page := resolved.SignaturePage
	if prefs.SignaturePage == nil {
		// Pages taken from the policy have not been checked yet.
		if err := domain.ValidateSignaturePage(page, fmt.Sprintf("policy.signaturePages[%s]", page.ID)); err != nil {
			return nil, "", err
		}
		log.Debug("using configured signature page",
			zap.String("signature_page", page.ID),
			zap.String("policy", policy.Policy))
	}

	doc, err := p.processor.Load(document)
	if err != nil {
		return nil, "", &domain.IntegrationError{
			Code:    domain.ErrCodeInputValidation,
			Field:   "pdfDocument",
			Message: "Invalid pdfDocument",
			Cause:   err,
		}
	}
	defer closeDocument(log, doc)

	signatureCount, err := countSignatures(doc)
	if err != nil {
		return nil, "", err
	}

	if signatureCount >= page.MaxSignatureImages {
		msg := fmt.Sprintf("PDF signature page already has '%d' sign images - exceeds maximum allowed number", signatureCount)
		log.Info(msg, zap.Int("max_signature_images", page.MaxSignatureImages))
		if resolved.FailWhenSignPageFull {
			return nil, "", domain.SignaturePageFullError(msg)
		}
		return &domain.PreparedDocument{
			Policy:                      policy.Policy,
			VisibleSignatureRequirement: domain.NullVisibleSignatureRequirement(),
		}, ports.OutcomePageFull, nil
	}

	var (
		pageNumber int
		outcome    string
	)
	if signatureCount > 0 && resolved.ExistingSignaturePageNumber != nil {
		log.Debug("PDF document already contains signatures", zap.Int("signature_count", signatureCount))
		pageNumber, err = existingSignaturePage(doc, *resolved.ExistingSignaturePageNumber)
		outcome = ports.OutcomePageLocated
	} else {
		template, loadErr := p.loadTemplate(page)
		if loadErr != nil {
			return nil, "", loadErr
		}
		defer closeDocument(log, template)

		if signatureCount == 0 {
			log.Debug("adding PDF signature page to document")
			pageNumber, err = insertSignaturePage(doc, template, resolved)
			outcome = ports.OutcomePageInserted
		} else {
			log.Debug("PDF document already contains signatures", zap.Int("signature_count", signatureCount))
			pageNumber, err = locateSignaturePage(doc, template, resolved)
			outcome = ports.OutcomePageLocated
		}
	}
	if err != nil {
		return nil, "", err
	}
	log.Debug("PDF signature page resolved", zap.Int("page", pageNumber), zap.String("outcome", outcome))

	placement := *page.ImagePlacement
	requirement := &domain.VisibleSignatureRequirement{
		Page:             pageNumber,
		TemplateImageRef: page.SignatureImageReference,
		UserInformation:  resolved.VisibleSignatureUserInformation,
	}
	if placement.Scale != nil {
		requirement.Scale = *placement.Scale
	}
	requirement.XPosition, requirement.YPosition = domain.ImagePosition(signatureCount, page.EffectiveColumns(), placement)

	result := &domain.PreparedDocument{
		Policy:                      policy.Policy,
		VisibleSignatureRequirement: requirement,
	}
	if signatureCount == 0 {
		updated, err := doc.Bytes()
		if err != nil {
			return nil, "", domain.ProtocolError("Failed to serialize updated PDF document", err)
		}
		result.UpdatedDocument = updated
	}
	return result, outcome, nil
}

// countSignatures counts the signatures that carry a signature image, i.e.,
// all signature dictionaries except document timestamps.
func countSignatures(doc ports.Document) (int, error) {
	subFilters, err := doc.SignatureSubFilters()
	if err != nil {
		return 0, domain.ProtocolError("Failed to list signature dictionaries of PDF document", err)
	}
	count := 0
	for _, sf := range subFilters {
		if !strings.EqualFold(sf, rfc3161SubFilter) {
			count++
		}
	}
	return count, nil
}

// loadTemplate opens the signature page template. The caller closes it.
func (p *SignaturePagePreparer) loadTemplate(page *domain.SignaturePage) (ports.Document, error) {
	template, err := p.processor.Load(page.Contents)
	if err != nil {
		return nil, domain.ProtocolError(fmt.Sprintf("Invalid contents for signature page '%s'", page.ID), err)
	}
	if template.PageCount() < 1 {
		_ = template.Close()
		return nil, domain.ProtocolError(fmt.Sprintf("Signature page '%s' has no pages", page.ID), nil)
	}
	return template, nil
}

// insertSignaturePage merges the template into doc and returns the page
// number holding the signature images.
func insertSignaturePage(doc, template ports.Document, prefs *domain.ResolvedPreferences) (int, error) {
	docPages := doc.PageCount()
	position := domain.InsertPosition(prefs.InsertPageAt, docPages)
	if position > docPages+1 {
		return 0, domain.InputValidationError("signaturePagePreferences.insertPageAt",
			fmt.Sprintf("Invalid value for insertPageAt (%d) - Document only has %d pages", prefs.InsertPageAt, docPages))
	}
	templatePages := template.PageCount()
	pageNumber, err := selectSignaturePage(position, templatePages, prefs.SignaturePage)
	if err != nil {
		return 0, err
	}
	if err := doc.InsertPages(template, position); err != nil {
		return 0, domain.ProtocolError("Failed to insert signature page into PDF document", err)
	}
	return pageNumber, nil
}

// existingSignaturePage checks a caller supplied signature page number.
func existingSignaturePage(doc ports.Document, n int) (int, error) {
	if totalPages := doc.PageCount(); n > totalPages {
		return 0, domain.InputValidationError("signaturePagePreferences.existingSignaturePageNumber",
			fmt.Sprintf("Invalid value for existingSignaturePageNumber (%d) - Document only has %d pages", n, totalPages))
	}
	return n, nil
}

// locateSignaturePage finds the page holding the signature images of a
// document that already has signatures. The template block must lie within
// the document.
func locateSignaturePage(doc, template ports.Document, prefs *domain.ResolvedPreferences) (int, error) {
	totalPages := doc.PageCount()
	templatePages := template.PageCount()
	docPages := totalPages - templatePages
	if docPages <= 0 {
		return 0, domain.ProtocolError("Document has signature(s), but no previous sign page - cannot process", nil)
	}
	blockStart := domain.InsertPosition(prefs.InsertPageAt, docPages)
	if blockEnd := blockStart + templatePages - 1; blockEnd > totalPages {
		return 0, domain.InputValidationError("signaturePagePreferences.insertPageAt",
			fmt.Sprintf("Invalid value for insertPageAt (%d) - signature page would end at page %d but document only has %d pages",
				prefs.InsertPageAt, blockEnd, totalPages))
	}
	return selectSignaturePage(blockStart, templatePages, prefs.SignaturePage)
}

// selectSignaturePage applies the page selector and checks that the result
// lies within the template block.
func selectSignaturePage(blockStart, templatePages int, page *domain.SignaturePage) (int, error) {
	pageNumber := domain.SignaturePageNumber(blockStart, templatePages, page.ImagePlacement.Page)
	if pageNumber < blockStart || pageNumber > blockStart+templatePages-1 {
		return 0, domain.InputValidationError("signaturePage.imagePlacementConfiguration.page",
			fmt.Sprintf("Page selector resolves to page %d which is outside signature page '%s' (pages %d-%d)",
				pageNumber, page.ID, blockStart, blockStart+templatePages-1))
	}
	return pageNumber, nil
}

func closeDocument(log *zap.Logger, doc ports.Document) {
	if err := doc.Close(); err != nil {
		log.Warn("failed to close PDF document", zap.Error(err))
	}
}
