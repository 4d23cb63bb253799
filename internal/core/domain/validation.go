package domain

import (
	"fmt"
	"strings"
)

// ValidateSignaturePage checks the structure of a signature page layout.
// The field argument is used as prefix in the returned error.
func ValidateSignaturePage(page *SignaturePage, field string) error {
	if page == nil {
		return InputValidationError(field, "Missing signature page")
	}
	if len(page.Contents) == 0 {
		return InputValidationError(field+".contents", "Missing signature page contents")
	}
	if strings.TrimSpace(page.SignatureImageReference) == "" {
		return InputValidationError(field+".signatureImageReference", "Missing signature image reference")
	}
	if page.Columns < 0 {
		return InputValidationError(field+".columns", fmt.Sprintf("Invalid number of columns (%d)", page.Columns))
	}
	if page.MaxSignatureImages < 1 {
		return InputValidationError(field+".maxSignatureImages",
			fmt.Sprintf("maxSignatureImages must be at least 1 (was %d)", page.MaxSignatureImages))
	}
	if page.ImagePlacement == nil {
		return InputValidationError(field+".imagePlacementConfiguration", "Missing image placement configuration")
	}
	if p := page.ImagePlacement.Page; p != nil && *p < 0 {
		return InputValidationError(field+".imagePlacementConfiguration.page",
			fmt.Sprintf("Invalid page selector (%d)", *p))
	}
	if page.ImagePlacement.XPosition < 0 || page.ImagePlacement.YPosition < 0 {
		return InputValidationError(field+".imagePlacementConfiguration", "Image position must not be negative")
	}
	return nil
}

// ValidateSignaturePagePreferences performs the structural checks of the
// preferences against the policy they will be resolved with.
func ValidateSignaturePagePreferences(prefs *SignaturePagePreferences, policy *PolicyConfiguration) error {
	const field = "signaturePagePreferences"
	if prefs == nil {
		return InputValidationError(field, "Missing signaturePagePreferences")
	}
	if policy == nil {
		return InputValidationError("policy", "Can not find policy")
	}

	switch {
	case prefs.SignaturePageReference != "" && prefs.SignaturePage != nil:
		return InputValidationError(field, "Both signaturePageReference and signaturePage are set - only one is allowed")
	case prefs.SignaturePageReference != "":
		if _, ok := policy.LookupSignaturePage(prefs.SignaturePageReference); !ok {
			return InputValidationError(field+".signaturePageReference",
				fmt.Sprintf("Policy '%s' has no signature page with id '%s'", policy.Policy, prefs.SignaturePageReference))
		}
	case prefs.SignaturePage != nil:
		if err := ValidateSignaturePage(prefs.SignaturePage, field+".signaturePage"); err != nil {
			return err
		}
	default:
		if _, ok := policy.DefaultSignaturePage(); !ok {
			return InputValidationError(field+".signaturePage",
				fmt.Sprintf("No signature page given and policy '%s' has no configured signature pages", policy.Policy))
		}
	}

	if prefs.InsertPageAt < 0 {
		return InputValidationError(field+".insertPageAt",
			fmt.Sprintf("insertPageAt must not be negative (was %d)", prefs.InsertPageAt))
	}
	if n := prefs.ExistingSignaturePageNumber; n != nil && *n < 1 {
		return InputValidationError(field+".existingSignaturePageNumber",
			fmt.Sprintf("existingSignaturePageNumber must be at least 1 (was %d)", *n))
	}
	if ui := prefs.VisibleSignatureUserInformation; ui != nil && ui.SignerName != nil && len(ui.SignerName.Attributes) == 0 {
		return InputValidationError(field+".visiblePdfSignatureUserInformation.signerName.signerAttributes",
			"At least one signer attribute must be given")
	}
	return nil
}

// Validate checks the policy configuration.
func (c *PolicyConfiguration) Validate() error {
	if c == nil {
		return InputValidationError("policy", "Missing policy configuration")
	}
	if strings.TrimSpace(c.Policy) == "" {
		return InputValidationError("policy", "Missing policy name")
	}
	seen := make(map[string]bool, len(c.SignaturePages))
	for i, p := range c.SignaturePages {
		field := fmt.Sprintf("pdfSignaturePages[%d]", i)
		if p == nil {
			return InputValidationError(field, "Missing signature page")
		}
		if strings.TrimSpace(p.ID) == "" {
			return InputValidationError(field+".id", "Missing signature page id")
		}
		if seen[p.ID] {
			return InputValidationError(field+".id", fmt.Sprintf("Duplicate signature page id '%s'", p.ID))
		}
		seen[p.ID] = true
		if err := ValidateSignaturePage(p, field); err != nil {
			return err
		}
	}
	return nil
}
