//go:build unit

package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/janderssonse/signservice-integration/internal/core/domain"
	"github.com/janderssonse/signservice-integration/internal/core/ports"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const policiesYAML = `policies:
  - policy: default
    pdf_signature_pages:
      - id: swedish
        file: templates/sv.pdf
        signature_image_reference: sv-image
        columns: 2
        max_signature_images: 6
        image_placement:
          x_position: 37
          y_position: 165
          x_increment: 268
          y_increment: 105
          scale: -74
      - id: english
        file: templates/en.pdf
        signature_image_reference: en-image
        max_signature_images: 3
        image_placement:
          x_position: 10
          y_position: 20
          page: 0
  - policy: other
    pdf_signature_pages: []
`

// TestFileStore_LoadYAML verifies policy loading with template files.
func TestFileStore_LoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "templates/sv.pdf", "%PDF sv")
	writeFile(t, dir, "templates/en.pdf", "%PDF en")
	path := writeFile(t, dir, "policies.yaml", policiesYAML)

	store := NewFileStore(path, nil)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if names := store.Names(); len(names) != 2 || names[0] != "default" || names[1] != "other" {
		t.Errorf("Names() = %v", names)
	}

	p, err := store.Policy("default")
	if err != nil {
		t.Fatalf("Policy() error = %v", err)
	}
	if len(p.SignaturePages) != 2 {
		t.Fatalf("SignaturePages = %d, want 2", len(p.SignaturePages))
	}
	def, _ := p.DefaultSignaturePage()
	if def.ID != "swedish" || string(def.Contents) != "%PDF sv" {
		t.Errorf("default page = %s %q", def.ID, def.Contents)
	}
	if def.Columns != 2 || def.MaxSignatureImages != 6 {
		t.Errorf("default page = %+v", def)
	}
	if def.ImagePlacement.XIncrement != 268 || def.ImagePlacement.Scale == nil || *def.ImagePlacement.Scale != -74 {
		t.Errorf("placement = %+v", def.ImagePlacement)
	}
	en, ok := p.LookupSignaturePage("english")
	if !ok || en.ImagePlacement.Page == nil || *en.ImagePlacement.Page != 0 {
		t.Errorf("english page = %+v", en)
	}
}

// TestFileStore_LoadJSON verifies the JSON format.
func TestFileStore_LoadJSON(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "page.pdf", "%PDF")
	path := writeFile(t, dir, "policies.json", `{"policies":[{"policy":"json","pdf_signature_pages":[
		{"id":"p","file":"`+filepath.ToSlash(tpl)+`","signature_image_reference":"img","max_signature_images":1,
		 "image_placement":{"x_position":1,"y_position":2}}]}]}`)

	store := NewFileStore(path, nil)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	p, err := store.Policy("json")
	if err != nil {
		t.Fatalf("Policy() error = %v", err)
	}
	if string(p.SignaturePages[0].Contents) != "%PDF" {
		t.Errorf("Contents = %q", p.SignaturePages[0].Contents)
	}
}

// TestFileStore_UnknownPolicy verifies ErrPolicyNotFound.
func TestFileStore_UnknownPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "p.yaml", "policies:\n  - policy: a\n")
	store := NewFileStore(path, nil)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if _, err := store.Policy("b"); !errors.Is(err, ports.ErrPolicyNotFound) {
		t.Errorf("Policy() error = %v, want ErrPolicyNotFound", err)
	}
}

// TestFileStore_RefreshErrors verifies invalid files and that the previous policies are kept.
func TestFileStore_RefreshErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "p.yaml", "policies:\n  - policy: a\n")
	store := NewFileStore(path, nil)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	testCases := []struct {
		name    string
		content string
	}{
		{"malformed", "policies: [unclosed"},
		{"duplicate policy", "policies:\n  - policy: a\n  - policy: a\n"},
		{"missing template", "policies:\n  - policy: a\n    pdf_signature_pages:\n      - id: x\n        file: missing.pdf\n"},
		{"invalid page", "policies:\n  - policy: a\n    pdf_signature_pages:\n      - id: x\n        max_signature_images: 1\n"},
		{"blank policy name", "policies:\n  - policy: ''\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			writeFile(t, dir, "p.yaml", tc.content)
			if err := store.Refresh(context.Background()); err == nil {
				t.Error("Refresh() should fail")
			}
			if _, err := store.Policy("a"); err != nil {
				t.Errorf("previous policies were dropped: %v", err)
			}
		})
	}
}

// TestFileStore_RefreshCanceled verifies context cancellation.
func TestFileStore_RefreshCanceled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "p.yaml", "policies:\n  - policy: a\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewFileStore(path, nil).Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Refresh() error = %v, want context.Canceled", err)
	}
}

// TestLoadProcessingPolicy verifies overlaying file settings on the defaults.
func TestLoadProcessingPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "processing.yaml", `strict_processing: true
allowed_clock_skew: 2m
sig_message_uri_map:
  urn:example:loa: urn:example:loa-sigmessage
`)
	p, err := LoadProcessingPolicy(path)
	if err != nil {
		t.Fatalf("LoadProcessingPolicy() error = %v", err)
	}
	if !p.StrictProcessing || !p.RequireAssertion {
		t.Errorf("policy = %+v", p)
	}
	if p.AllowedClockSkew != 2*time.Minute {
		t.Errorf("AllowedClockSkew = %s, want 2m", p.AllowedClockSkew)
	}
	if uri, ok := p.ExpectedSigMessageURI("urn:example:loa"); !ok || uri != "urn:example:loa-sigmessage" {
		t.Errorf("custom mapping = %q, %v", uri, ok)
	}
	if _, ok := p.ExpectedSigMessageURI("http://id.elegnamnden.se/loa/1.0/loa3"); !ok {
		t.Error("default mapping was dropped")
	}

	neg := writeFile(t, dir, "neg.yaml", "allowed_clock_skew: -1s\n")
	if _, err := LoadProcessingPolicy(neg); err == nil {
		t.Error("expected error for negative clock skew")
	}
}

// TestLoadPreferences verifies preference files.
func TestLoadPreferences(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "prefs.json", `{
		"signature_page_reference": "english",
		"insert_page_at": 2,
		"existing_signature_page_number": 4,
		"fail_when_sign_page_full": true,
		"visible_signature_user_information": {
			"signer_name": {"attributes": ["urn:oid:2.5.4.42", "urn:oid:2.5.4.4"]},
			"field_values": {"idp": "Test IdP"}
		}
	}`)
	prefs, err := LoadPreferences(path)
	if err != nil {
		t.Fatalf("LoadPreferences() error = %v", err)
	}
	if prefs.SignaturePageReference != "english" || prefs.InsertPageAt != 2 || !prefs.FailWhenSignPageFull {
		t.Errorf("prefs = %+v", prefs)
	}
	if prefs.ExistingSignaturePageNumber == nil || *prefs.ExistingSignaturePageNumber != 4 {
		t.Errorf("ExistingSignaturePageNumber = %v", prefs.ExistingSignaturePageNumber)
	}
	ui := prefs.VisibleSignatureUserInformation
	if ui == nil || len(ui.SignerName.Attributes) != 2 || ui.FieldValues["idp"] != "Test IdP" {
		t.Errorf("user information = %+v", ui)
	}
}

// TestExampleFiles verifies that the shipped example configuration loads.
func TestExampleFiles(t *testing.T) {
	dir := filepath.Join("..", "..", "..", "..", "examples", "policies")

	store := NewFileStore(filepath.Join(dir, "policies.yaml"), nil)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	p, err := store.Policy("default")
	if err != nil {
		t.Fatalf("Policy() error = %v", err)
	}

	prefs, err := LoadPreferences(filepath.Join(dir, "preferences.yaml"))
	if err != nil {
		t.Fatalf("LoadPreferences() error = %v", err)
	}
	if err := domain.ValidateSignaturePagePreferences(prefs, p); err != nil {
		t.Errorf("example preferences do not match example policy: %v", err)
	}

	processing, err := LoadProcessingPolicy(filepath.Join(dir, "processing.yaml"))
	if err != nil {
		t.Fatalf("LoadProcessingPolicy() error = %v", err)
	}
	if processing.AllowedClockSkew != time.Minute {
		t.Errorf("AllowedClockSkew = %s", processing.AllowedClockSkew)
	}
}
