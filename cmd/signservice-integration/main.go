// Command signservice-integration runs the two ends of a signing
// transaction from the command line: preparing a PDF signature page before
// the sign request is sent, and validating the signer assertion info of the
// sign response.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/janderssonse/signservice-integration/internal/adapters/driven/assertion"
	"github.com/janderssonse/signservice-integration/internal/adapters/driven/metrics"
	"github.com/janderssonse/signservice-integration/internal/adapters/driven/pdf"
	"github.com/janderssonse/signservice-integration/internal/adapters/driven/policy"
	"github.com/janderssonse/signservice-integration/internal/adapters/driven/signature"
	"github.com/janderssonse/signservice-integration/internal/config"
	"github.com/janderssonse/signservice-integration/internal/core/domain"
	"github.com/janderssonse/signservice-integration/internal/core/ports"
	"github.com/janderssonse/signservice-integration/internal/core/services"
)

var Version = "dev"

type app struct {
	env           *config.Environment
	logger        *zap.Logger
	registry      *prometheus.Registry
	recorder      ports.MetricsRecorder
	correlationID string
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:               "signservice-integration",
		Version:           Version,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Short:             "Signature service integration tools",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.PersistentFlags().StringVar(&a.correlationID, "correlation-id", "", "Correlation id for logs and errors (default: random)")

	rootCmd.AddCommand(newPrepareCmd(a), newValidateCmd(a))

	err := rootCmd.Execute()
	if terr := a.teardown(); terr != nil && err == nil {
		err = terr
	}
	if err != nil {
		if code, ok := domain.CodeOf(err); ok && code.Known() {
			fmt.Fprintf(os.Stderr, "%s (%s): %v\n", code.Title(), code, err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	env, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := env.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.env = env
	a.logger = logger
	if a.correlationID == "" {
		a.correlationID = uuid.NewString()
	}
	if env.MetricsFile != "" {
		a.registry = prometheus.NewRegistry()
		a.recorder = metrics.NewPrometheusMetricsRecorderWithRegistry(a.registry)
	} else {
		a.recorder = metrics.NewNoopMetricsRecorder()
	}
	return nil
}

func (a *app) teardown() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.registry != nil {
		if err := prometheus.WriteToTextfile(a.env.MetricsFile, a.registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func (a *app) context(cmd *cobra.Command) context.Context {
	return domain.WithCorrelationID(cmd.Context(), a.correlationID)
}

func newPrepareCmd(a *app) *cobra.Command {
	var (
		policyFile      string
		policyName      string
		documentPath    string
		preferencesPath string
		outputPath      string
	)
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Add or locate the PDF signature page and compute the signature image placement",
		RunE: func(cmd *cobra.Command, args []string) error {
			if policyFile == "" {
				policyFile = a.env.PolicyFile
			}
			if policyFile == "" {
				return fmt.Errorf("no policy file given (use --policy-file or SIGNSERVICE_POLICY_FILE)")
			}
			store := policy.NewFileStore(policyFile, a.logger)
			if err := store.Refresh(cmd.Context()); err != nil {
				return err
			}
			if policyName == "" {
				names := store.Names()
				if len(names) == 0 {
					return fmt.Errorf("policy file %s has no policies", policyFile)
				}
				policyName = names[0]
			}
			policyCfg, err := store.Policy(policyName)
			if err != nil {
				return err
			}

			prefs := &domain.SignaturePagePreferences{}
			if preferencesPath != "" {
				if prefs, err = policy.LoadPreferences(preferencesPath); err != nil {
					return err
				}
			}

			document, err := os.ReadFile(documentPath)
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			preparer := services.NewSignaturePagePreparer(
				pdf.NewProcessor(a.logger),
				services.WithPreparerLogger(a.logger),
				services.WithPreparerMetrics(a.recorder))

			prepared, err := preparer.Prepare(a.context(cmd), document, prefs, policyCfg)
			if err != nil {
				return err
			}

			out := struct {
				Policy                      string                              `json:"policy"`
				UpdatedDocument             string                              `json:"updated_document,omitempty"`
				VisibleSignatureRequirement *domain.VisibleSignatureRequirement `json:"visible_signature_requirement"`
			}{
				Policy:                      prepared.Policy,
				VisibleSignatureRequirement: prepared.VisibleSignatureRequirement,
			}
			if prepared.UpdatedDocument != nil {
				if outputPath == "" {
					return fmt.Errorf("a signature page was added; use --output to write the updated document")
				}
				if err := os.WriteFile(outputPath, prepared.UpdatedDocument, 0o644); err != nil {
					return fmt.Errorf("write updated document: %w", err)
				}
				out.UpdatedDocument = outputPath
			}
			return writeJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&policyFile, "policy-file", "", "Policy file (JSON or YAML)")
	cmd.Flags().StringVarP(&policyName, "policy", "p", "", "Policy name (default: first policy in file)")
	cmd.Flags().StringVarP(&documentPath, "document", "d", "", "PDF document to prepare [required]")
	cmd.Flags().StringVar(&preferencesPath, "preferences", "", "Signature page preferences file (JSON or YAML)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Where to write the updated document")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var (
		responsePath   string
		statePath      string
		processingFile string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the signer assertion info of a decoded sign response",
		RunE: func(cmd *cobra.Command, args []string) error {
			var response domain.SignResponse
			if err := readJSON(responsePath, &response); err != nil {
				return err
			}
			var state domain.SignatureSessionState
			if err := readJSON(statePath, &state); err != nil {
				return err
			}

			if processingFile == "" {
				processingFile = a.env.ProcessingFile
			}
			processing := domain.DefaultProcessingPolicy()
			if processingFile != "" {
				p, err := policy.LoadProcessingPolicy(processingFile)
				if err != nil {
					return err
				}
				processing = p
			}

			verifier, err := a.assertionVerifier()
			if err != nil {
				return err
			}

			processor := services.NewSignerAssertionInfoProcessor(
				assertion.NewParser(assertion.WithLogger(a.logger), assertion.WithSignatureVerifier(verifier)),
				services.WithProcessorLogger(a.logger),
				services.WithProcessorMetrics(a.recorder))

			info, err := processor.Process(a.context(cmd), &response, &state, processing)
			if err != nil {
				return err
			}
			return writeJSON(cmd, info)
		},
	}
	cmd.Flags().StringVarP(&responsePath, "response", "r", "", "Decoded sign response (JSON) [required]")
	cmd.Flags().StringVarP(&statePath, "state", "s", "", "Signature session state (JSON) [required]")
	cmd.Flags().StringVar(&processingFile, "processing-file", "", "Response processing settings (JSON or YAML)")
	_ = cmd.MarkFlagRequired("response")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

// assertionVerifier returns the verifier for signer assertions. Without
// trusted certificates the sign service is relied upon to have verified them.
func (a *app) assertionVerifier() (ports.SignatureVerifier, error) {
	if a.env.TrustedCertsFile == "" {
		a.logger.Warn("no trusted certificates configured, assertion signatures are not verified")
		return signature.NewNoopVerifier(), nil
	}
	certs, err := signature.LoadTrustedCertificates(a.env.TrustedCertsFile)
	if err != nil {
		return nil, err
	}
	return signature.NewXMLDsigVerifier(certs, a.logger), nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
