package domain

import "slices"

// ImagePlacementConfiguration tells where on a signature page the first
// signature image goes and how subsequent images are laid out.
type ImagePlacementConfiguration struct {
	// XPosition and YPosition give the origin of the first image.
	XPosition int `json:"x_position" yaml:"x_position"`
	YPosition int `json:"y_position" yaml:"y_position"`

	// XIncrement is added per column, YIncrement per row.
	XIncrement int `json:"x_increment" yaml:"x_increment"`
	YIncrement int `json:"y_increment" yaml:"y_increment"`

	// Scale is the zoom percentage passed on to the signer (nil means 0).
	Scale *int `json:"scale,omitempty" yaml:"scale,omitempty"`

	// Page selects which page of the template block holds the images:
	// nil or 1 is the first page, 0 is the last page and n is the n:th page.
	Page *int `json:"page,omitempty" yaml:"page,omitempty"`
}

// SignaturePage is a configured signature page layout (template PDF plus
// placement rules).
type SignaturePage struct {
	ID string `json:"id" yaml:"id"`

	// Contents holds the template PDF document.
	Contents []byte `json:"-" yaml:"-"`

	// SignatureImageReference names the image template the signer renders.
	SignatureImageReference string `json:"signature_image_reference" yaml:"signature_image_reference"`

	// Columns is the number of images per row (0 is treated as 1).
	Columns int `json:"columns,omitempty" yaml:"columns,omitempty"`

	// MaxSignatureImages is the number of images the page has room for.
	MaxSignatureImages int `json:"max_signature_images" yaml:"max_signature_images"`

	ImagePlacement *ImagePlacementConfiguration `json:"image_placement" yaml:"image_placement"`
}

// EffectiveColumns returns the column count with the default applied.
func (p *SignaturePage) EffectiveColumns() int {
	if p.Columns <= 0 {
		return 1
	}
	return p.Columns
}

// Clone returns a deep copy of the page.
func (p *SignaturePage) Clone() *SignaturePage {
	if p == nil {
		return nil
	}
	c := *p
	c.Contents = slices.Clone(p.Contents)
	if p.ImagePlacement != nil {
		ip := *p.ImagePlacement
		if p.ImagePlacement.Scale != nil {
			s := *p.ImagePlacement.Scale
			ip.Scale = &s
		}
		if p.ImagePlacement.Page != nil {
			pg := *p.ImagePlacement.Page
			ip.Page = &pg
		}
		c.ImagePlacement = &ip
	}
	return &c
}

// SignerName tells how the signer name is rendered in the signature image.
type SignerName struct {
	// Attributes lists the attribute names whose values make up the name.
	Attributes []string `json:"attributes" yaml:"attributes"`

	// Formatting is an optional format string, e.g. "%1 %2 (%3)".
	Formatting string `json:"formatting,omitempty" yaml:"formatting,omitempty"`
}

// VisibleSignatureUserInformation is passed through untouched to the
// visible signature requirement.
type VisibleSignatureUserInformation struct {
	SignerName  *SignerName       `json:"signer_name,omitempty" yaml:"signer_name,omitempty"`
	FieldValues map[string]string `json:"field_values,omitempty" yaml:"field_values,omitempty"`
}

// SignaturePagePreferences are the caller's wishes for the signature page.
type SignaturePagePreferences struct {
	// SignaturePageReference refers to a page configured in the policy.
	// Mutually exclusive with SignaturePage.
	SignaturePageReference string `json:"signature_page_reference,omitempty" yaml:"signature_page_reference,omitempty"`

	// SignaturePage is an inline layout.
	SignaturePage *SignaturePage `json:"signature_page,omitempty" yaml:"signature_page,omitempty"`

	VisibleSignatureUserInformation *VisibleSignatureUserInformation `json:"visible_signature_user_information,omitempty" yaml:"visible_signature_user_information,omitempty"`

	// InsertPageAt is the 1-based position for the inserted page.
	// Zero appends the page after the last page of the document.
	InsertPageAt int `json:"insert_page_at,omitempty" yaml:"insert_page_at,omitempty"`

	// ExistingSignaturePageNumber pins the page holding the signature page
	// when the document is already signed.
	ExistingSignaturePageNumber *int `json:"existing_signature_page_number,omitempty" yaml:"existing_signature_page_number,omitempty"`

	// FailWhenSignPageFull makes a full signature page an error instead of
	// a null visible signature requirement.
	FailWhenSignPageFull bool `json:"fail_when_sign_page_full,omitempty" yaml:"fail_when_sign_page_full,omitempty"`
}

// ResolvedPreferences are preferences merged with policy defaults. The layout
// is always present. Built once per call, never shared.
type ResolvedPreferences struct {
	SignaturePage                   *SignaturePage
	VisibleSignatureUserInformation *VisibleSignatureUserInformation
	InsertPageAt                    int
	ExistingSignaturePageNumber     *int
	FailWhenSignPageFull            bool
}

// PolicyConfiguration is the part of an integration policy that the
// signature page preparation reads. It must be treated as read-only.
type PolicyConfiguration struct {
	Policy string `json:"policy" yaml:"policy"`

	// SignaturePages is an ordered registry, the first entry is the default.
	SignaturePages []*SignaturePage `json:"signature_pages" yaml:"signature_pages"`
}

// DefaultSignaturePage returns the first configured page.
func (c *PolicyConfiguration) DefaultSignaturePage() (*SignaturePage, bool) {
	if c == nil || len(c.SignaturePages) == 0 || c.SignaturePages[0] == nil {
		return nil, false
	}
	return c.SignaturePages[0], true
}

// LookupSignaturePage finds a configured page by id.
func (c *PolicyConfiguration) LookupSignaturePage(id string) (*SignaturePage, bool) {
	if c == nil {
		return nil, false
	}
	for _, p := range c.SignaturePages {
		if p != nil && p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// ResolvePreferences merges prefs with the policy defaults. Neither prefs nor
// policy is modified; the result owns deep copies of everything it holds.
func ResolvePreferences(prefs *SignaturePagePreferences, policy *PolicyConfiguration) (*ResolvedPreferences, error) {
	if prefs == nil {
		return nil, InputValidationError("signaturePagePreferences", "Missing signaturePagePreferences")
	}
	if policy == nil {
		return nil, InputValidationError("policy", "Can not find policy")
	}

	var page *SignaturePage
	switch {
	case prefs.SignaturePageReference != "":
		p, ok := policy.LookupSignaturePage(prefs.SignaturePageReference)
		if !ok {
			return nil, InputValidationError("signaturePagePreferences.signaturePageReference",
				"No signature page with id '"+prefs.SignaturePageReference+"' in policy '"+policy.Policy+"'")
		}
		page = p
	case prefs.SignaturePage != nil:
		page = prefs.SignaturePage
	default:
		p, ok := policy.DefaultSignaturePage()
		if !ok {
			return nil, InputValidationError("signaturePagePreferences.signaturePage",
				"No signature page given and policy '"+policy.Policy+"' has no default signature page")
		}
		page = p
	}

	r := &ResolvedPreferences{
		SignaturePage:        page.Clone(),
		InsertPageAt:         prefs.InsertPageAt,
		FailWhenSignPageFull: prefs.FailWhenSignPageFull,
	}
	if prefs.ExistingSignaturePageNumber != nil {
		n := *prefs.ExistingSignaturePageNumber
		r.ExistingSignaturePageNumber = &n
	}
	if ui := prefs.VisibleSignatureUserInformation; ui != nil {
		c := &VisibleSignatureUserInformation{}
		if ui.SignerName != nil {
			c.SignerName = &SignerName{
				Attributes: slices.Clone(ui.SignerName.Attributes),
				Formatting: ui.SignerName.Formatting,
			}
		}
		if ui.FieldValues != nil {
			c.FieldValues = make(map[string]string, len(ui.FieldValues))
			for k, v := range ui.FieldValues {
				c.FieldValues[k] = v
			}
		}
		r.VisibleSignatureUserInformation = c
	}
	return r, nil
}

// VisibleSignatureRequirement instructs the remote signer where and how to
// render the signature image.
type VisibleSignatureRequirement struct {
	// Null marks a requirement that explicitly asks for no visible signature.
	Null bool `json:"null,omitempty"`

	Page             int                              `json:"page,omitempty"`
	XPosition        int                              `json:"x_position"`
	YPosition        int                              `json:"y_position"`
	Scale            int                              `json:"scale"`
	TemplateImageRef string                           `json:"template_image_ref,omitempty"`
	UserInformation  *VisibleSignatureUserInformation `json:"user_information,omitempty"`
}

// NullVisibleSignatureRequirement returns a requirement telling the signer
// not to add any signature image.
func NullVisibleSignatureRequirement() *VisibleSignatureRequirement {
	return &VisibleSignatureRequirement{Null: true}
}

// IsNull reports whether r is the null requirement.
func (r *VisibleSignatureRequirement) IsNull() bool {
	return r == nil || r.Null
}

// PreparedDocument is the result of signature page preparation.
type PreparedDocument struct {
	Policy string `json:"policy"`

	// UpdatedDocument is only set when a signature page was inserted.
	UpdatedDocument []byte `json:"updated_document,omitempty"`

	VisibleSignatureRequirement *VisibleSignatureRequirement `json:"visible_signature_requirement"`
}
