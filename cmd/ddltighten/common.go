package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/outsystems-tools/ddl-tightener/internal/bootstrap"
	"github.com/outsystems-tools/ddl-tightener/internal/modelingest"
	"github.com/outsystems-tools/ddl-tightener/internal/policy"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/typemapping"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// bootstrapFlags collects the flag values every analysis subcommand needs
// to assemble a bootstrap.Request.
type bootstrapFlags struct {
	modelPath          string
	supplementalPath   string
	profileFixture     string
	modules            string
	entityAllowlist    string
	includeSystem      bool
	includeInactive    bool
	allowMissingPK     string
	allowMissingSchema string
}

func addBootstrapFlags(cmd *cobra.Command) *bootstrapFlags {
	f := &bootstrapFlags{}
	cmd.Flags().StringVar(&f.modelPath, "model", "", "path to the logical model JSON (required)")
	cmd.Flags().StringVar(&f.supplementalPath, "supplemental", "", "path to a supplemental model JSON merged in after filtering")
	cmd.Flags().StringVar(&f.profileFixture, "profile-fixture", "", "path to a captured profile snapshot JSON (required; live capture is wired separately via capture-profile)")
	cmd.Flags().StringVar(&f.modules, "modules", "", "comma-separated module names to include (default: all)")
	cmd.Flags().StringVar(&f.entityAllowlist, "entity-allowlist", "", "module:entity1|entity2,module2:entity3 restricting entities within named modules")
	cmd.Flags().BoolVar(&f.includeSystem, "include-system", false, "include system-flagged modules")
	cmd.Flags().BoolVar(&f.includeInactive, "include-inactive", false, "include inactive-flagged modules")
	cmd.Flags().StringVar(&f.allowMissingPK, "allow-missing-pk", "", "comma-separated modules exempt from the missing-identifier warning")
	cmd.Flags().StringVar(&f.allowMissingSchema, "allow-missing-schema", "", "comma-separated modules exempt from the missing-schema warning")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("profile-fixture")
	return f
}

func (f *bootstrapFlags) toRequest() bootstrap.Request {
	return bootstrap.Request{
		Model:        bootstrap.ModelSource{Path: f.modelPath},
		Supplemental: bootstrap.SupplementalSource{Enabled: f.supplementalPath != "", Path: f.supplementalPath},
		Profile:      bootstrap.ProfileSource{FixturePath: f.profileFixture},
		Filter:       f.filterOptions(),
		Validation: modelingest.IngestOptions{
			AllowMissingPrimaryKey: splitCSV(f.allowMissingPK),
			AllowMissingSchema:     splitCSV(f.allowMissingSchema),
		},
	}
}

func (f *bootstrapFlags) filterOptions() modelingest.FilterOptions {
	opts := modelingest.FilterOptions{
		IncludeSystem:   f.includeSystem,
		IncludeInactive: f.includeInactive,
	}
	if f.modules != "" {
		opts.Modules = splitCSV(f.modules)
	}
	if f.entityAllowlist != "" {
		opts.EntityAllowlist = parseEntityAllowlist(f.entityAllowlist)
	}
	return opts
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseEntityAllowlist parses "Module:Entity1|Entity2,Module2:Entity3"
// into modelingest.FilterOptions.EntityAllowlist.
func parseEntityAllowlist(s string) map[string][]string {
	out := map[string][]string{}
	for _, group := range strings.Split(s, ",") {
		module, entities, found := strings.Cut(group, ":")
		if !found {
			continue
		}
		module = strings.TrimSpace(module)
		if module == "" {
			continue
		}
		out[module] = splitCSV(strings.ReplaceAll(entities, "|", ","))
	}
	return out
}

// policyFlags collects the flag values needed to assemble policy.Options.
type policyFlags struct {
	onMissingEvidence string
	remediationMode   string
}

func addPolicyFlags(cmd *cobra.Command, cfg func() (defaultEvidence, defaultRemediation string)) *policyFlags {
	evidence, remediation := cfg()
	f := &policyFlags{}
	cmd.Flags().StringVar(&f.onMissingEvidence, "on-missing-evidence", evidence, "Conservative | EvidenceGated | Aggressive")
	cmd.Flags().StringVar(&f.remediationMode, "remediation-mode", remediation, "Withhold | Tolerate")
	return f
}

func (f *policyFlags) toOptions() (policy.Options, error) {
	evidence, err := parseOnMissingEvidence(f.onMissingEvidence)
	if err != nil {
		return policy.Options{}, err
	}
	remediation, err := parseRemediationMode(f.remediationMode)
	if err != nil {
		return policy.Options{}, err
	}
	return policy.Options{OnMissingEvidence: evidence, RemediationMode: remediation}, nil
}

func parseOnMissingEvidence(s string) (types.OnMissingEvidence, error) {
	switch types.OnMissingEvidence(s) {
	case types.Conservative, types.EvidenceGated, types.Aggressive:
		return types.OnMissingEvidence(s), nil
	default:
		return "", fmt.Errorf("invalid --on-missing-evidence %q: want Conservative, EvidenceGated, or Aggressive", s)
	}
}

func parseRemediationMode(s string) (types.RemediationMode, error) {
	switch types.RemediationMode(s) {
	case types.RemediationWithhold, types.RemediationTolerate:
		return types.RemediationMode(s), nil
	default:
		return "", fmt.Errorf("invalid --remediation-mode %q: want Withhold or Tolerate", s)
	}
}

// loadTypeMapping reads a type-mapping TOML document from path.
func loadTypeMapping(path string) (typemapping.Policy, error) {
	if path == "" {
		return typemapping.Policy{}, fmt.Errorf("--type-mapping is required")
	}
	policy, err := typemapping.Load(path)
	if err != nil {
		return typemapping.Policy{}, err
	}
	return policy, nil
}

// dispatchErr flattens the failure aggregator's error records into a
// single error for cobra to print, preserving every code and message
// rather than surfacing only the first one.
func dispatchErr(errs []result.ErrorRecord) error {
	if len(errs) == 1 {
		return errs[0]
	}
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Error()
	}
	return fmt.Errorf("%d errors: %s", len(errs), strings.Join(messages, "; "))
}

// printJSON writes v to stdout as indented JSON, the CLI's only output
// format.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
