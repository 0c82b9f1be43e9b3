package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/embedrelay/config"
	"github.com/byteness/embedrelay/permissions"
)

// PermissionChecker evaluates IAM permissions for the relay.
type PermissionChecker interface {
	Check(ctx context.Context, features []permissions.Feature) (*permissions.CheckSummary, error)
	CheckTrust(ctx context.Context) permissions.CheckResult
}

// CheckCommandInput contains the input for the check command.
type CheckCommandInput struct {
	Offline bool // Skip IAM simulation

	// For testing
	Checker PermissionChecker
	Stdout  io.Writer
}

// ConfigureCheckCommand sets up the check command.
func ConfigureCheckCommand(app *kingpin.Application, g *EmbedRelay) {
	input := CheckCommandInput{}

	cmd := app.Command("check", "Validate configuration and simulate the IAM permissions it needs")

	cmd.Flag("offline", "Only validate configuration, without calling AWS").
		BoolVar(&input.Offline)

	cmd.Action(func(c *kingpin.ParseContext) error {
		exitCode, err := CheckCommand(context.Background(), g, input)
		app.FatalIfError(err, "check")
		if exitCode != 0 {
			os.Exit(exitCode)
		}
		return nil
	})
}

// CheckCommand validates the loaded configuration and, online, checks the
// embed role's trust policy and every permission the configuration uses.
// Returns exit code: 0=ready, 1=problems found.
func CheckCommand(ctx context.Context, g *EmbedRelay, input CheckCommandInput) (int, error) {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	st := newStyles(stdout)

	cfg, err := g.LoadConfig()
	if err != nil {
		return 1, err
	}

	fmt.Fprintln(stdout, st.title.Render("Configuration"))
	result := config.Validate(cfg, g.source())
	writeValidation(stdout, st, result)

	if !result.Valid {
		fmt.Fprintln(stdout, st.fail.Render("Fix configuration errors before checking permissions."))
		return 1, nil
	}
	if input.Offline {
		return 0, nil
	}

	checker := input.Checker
	if checker == nil {
		awsCfg, err := g.AWSConfig(ctx)
		if err != nil {
			return 1, err
		}
		checker = permissions.NewChecker(awsCfg, cfg.AWS.RoleARN)
	}

	fmt.Fprintln(stdout, st.title.Render("Trust policy"))
	trust := checker.CheckTrust(ctx)
	writeCheckResult(stdout, st, trust)
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, st.title.Render("Permissions"))
	summary, err := checker.Check(ctx, configuredFeatures(cfg))
	if err != nil {
		return 1, err
	}
	for _, r := range summary.Results {
		writeCheckResult(stdout, st, r)
	}
	fmt.Fprintf(stdout, "  %d passed, %d failed, %d optional denied, %d error%s\n",
		summary.PassCount, summary.FailCount, summary.WarnCount, summary.ErrorCount, pluralize(summary.ErrorCount))

	if !summary.OK() || trust.Status != permissions.StatusAllowed {
		return 1, nil
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, st.ok.Render("Ready to serve embed URLs."))
	return 0, nil
}

func writeCheckResult(w io.Writer, st styles, r permissions.CheckResult) {
	var marker string
	switch {
	case r.Status == permissions.StatusAllowed:
		marker = st.ok.Render("✓")
	case r.Status == permissions.StatusDenied && r.Optional:
		marker = st.warn.Render("!")
	default:
		marker = st.fail.Render("✗")
	}
	label := r.Action
	if r.Feature != "" {
		label = fmt.Sprintf("%s (%s)", r.Action, r.Feature)
	}
	fmt.Fprintf(w, "  %s %s\n", marker, label)
	if r.Message != "" && r.Status != permissions.StatusAllowed {
		fmt.Fprintf(w, "    %s\n", st.dim.Render(r.Message))
	}
}

// configuredFeatures returns the embed role features plus the relay
// features the configuration enables.
func configuredFeatures(cfg *config.Config) []permissions.Feature {
	features := permissions.EmbedFeatures()
	if cfg.SSMPath != "" {
		features = append(features, permissions.FeatureConfigSSM)
	}
	if cfg.Server.TLSSecretID != "" && cfg.Server.TLSCertFile == "" {
		features = append(features, permissions.FeatureTLSSecret)
	}
	if cfg.Audit.CloudWatchLogGroup != "" {
		features = append(features, permissions.FeatureAuditCloudWatch)
	}
	if cfg.Notifications.SNSTopicARN != "" {
		features = append(features, permissions.FeatureNotifySNS)
	}
	if cfg.Metrics.Enabled {
		features = append(features, permissions.FeatureMetrics)
	}
	if cfg.RateLimit.Requests > 0 && cfg.RateLimit.Table != "" {
		features = append(features, permissions.FeatureRateLimitDynamoDB)
	}
	return features
}
