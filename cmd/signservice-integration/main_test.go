//go:build unit

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/janderssonse/signservice-integration/internal/adapters/driven/signature"
	"github.com/janderssonse/signservice-integration/internal/config"
	"github.com/janderssonse/signservice-integration/testfixtures/idp"
)

func TestAssertionVerifier_WithoutTrustedCertificates(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a := &app{env: &config.Environment{}, logger: zap.New(core)}

	v, err := a.assertionVerifier()
	if err != nil {
		t.Fatalf("assertionVerifier() error = %v", err)
	}
	if _, ok := v.(*signature.NoopVerifier); !ok {
		t.Errorf("verifier = %T, want *signature.NoopVerifier", v)
	}
	if logs.FilterMessageSnippet("not verified").Len() != 1 {
		t.Error("expected a warning about unverified assertions")
	}

	data := []byte("<saml:Assertion/>")
	out, err := v.Verify(data)
	if err != nil || string(out) != string(data) {
		t.Errorf("Verify() = %q, %v", out, err)
	}
}

func TestAssertionVerifier_WithTrustedCertificates(t *testing.T) {
	testIdP := idp.New(t, "https://idp.example.com")
	path := filepath.Join(t.TempDir(), "trusted.pem")
	if err := os.WriteFile(path, testIdP.CertificatePEM(), 0o600); err != nil {
		t.Fatal(err)
	}
	a := &app{env: &config.Environment{TrustedCertsFile: path}, logger: zap.NewNop()}

	v, err := a.assertionVerifier()
	if err != nil {
		t.Fatalf("assertionVerifier() error = %v", err)
	}
	if _, ok := v.(*signature.XMLDsigVerifier); !ok {
		t.Fatalf("verifier = %T, want *signature.XMLDsigVerifier", v)
	}
	signed := testIdP.Assertion("_a1", idp.User{PersonalIdentityNumber: "195207092072", GivenName: "Agda", Surname: "Andersson"}, time.Now(),
		"http://id.elegnamnden.se/loa/1.0/loa3")
	if _, err := v.Verify(signed); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestAssertionVerifier_MissingCertificateFile(t *testing.T) {
	a := &app{
		env:    &config.Environment{TrustedCertsFile: filepath.Join(t.TempDir(), "missing.pem")},
		logger: zap.NewNop(),
	}
	if _, err := a.assertionVerifier(); err == nil {
		t.Error("assertionVerifier() should fail for a missing certificate file")
	}
}
