package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/embedrelay/permissions"
)

// PermissionsCommandInput contains the input for the permissions command.
type PermissionsCommandInput struct {
	// Format is the output format (human, json, trust).
	Format string
	// Principal filters to embed_role or relay.
	Principal string
	// Configured limits relay features to those the configuration enables.
	Configured bool
	// RequiredOnly excludes optional features.
	RequiredOnly bool
	// Provider is the IAM OIDC provider ARN for --format trust.
	Provider string

	// For testing
	Stdout io.Writer
}

// ConfigurePermissionsCommand sets up the permissions command.
func ConfigurePermissionsCommand(app *kingpin.Application, g *EmbedRelay) {
	input := PermissionsCommandInput{}

	cmd := app.Command("permissions", "Show IAM permissions required by embedrelay")

	cmd.Flag("format", "Output format: human, json (IAM policy), trust (embed role trust policy)").
		Default("human").
		EnumVar(&input.Format, "human", "json", "trust")

	cmd.Flag("principal", "Filter by principal: embed_role, relay").
		EnumVar(&input.Principal, string(permissions.PrincipalEmbedRole), string(permissions.PrincipalRelay))

	cmd.Flag("configured", "Only include relay features enabled in the configuration").
		BoolVar(&input.Configured)

	cmd.Flag("required-only", "Exclude optional features").
		BoolVar(&input.RequiredOnly)

	cmd.Flag("provider", "IAM OIDC provider ARN for the Cognito user pool (trust format)").
		StringVar(&input.Provider)

	cmd.Action(func(c *kingpin.ParseContext) error {
		err := PermissionsCommand(g, input)
		app.FatalIfError(err, "permissions")
		return nil
	})
}

// PermissionsCommand prints the selected permissions as text or as an IAM
// policy document, or the embed role's trust policy.
func PermissionsCommand(g *EmbedRelay, input PermissionsCommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	if input.Format == "trust" {
		return writeTrustPolicy(stdout, g, input.Provider)
	}

	features := permissions.AllFeatures()
	if input.Configured {
		cfg, err := g.LoadConfig()
		if err != nil {
			return err
		}
		features = configuredFeatures(cfg)
	}

	var perms []permissions.FeaturePermissions
	for _, fp := range permissions.GetPermissions(features) {
		if input.Principal != "" && string(fp.Principal) != input.Principal {
			continue
		}
		if input.RequiredOnly && fp.Optional {
			continue
		}
		perms = append(perms, fp)
	}

	switch input.Format {
	case "json":
		output, err := permissions.FormatJSON(perms)
		if err != nil {
			return fmt.Errorf("format JSON: %w", err)
		}
		fmt.Fprintln(stdout, output)
	default:
		fmt.Fprint(stdout, permissions.FormatHuman(perms))
	}
	return nil
}

func writeTrustPolicy(w io.Writer, g *EmbedRelay, provider string) error {
	if provider == "" {
		return fmt.Errorf("--provider is required for the trust format")
	}
	clientID := ""
	if cfg, err := g.LoadConfig(); err == nil {
		clientID = cfg.Cognito.ClientID
	}
	output, err := permissions.FormatTrustPolicy(provider, clientID)
	if err != nil {
		return fmt.Errorf("format trust policy: %w", err)
	}
	fmt.Fprintln(w, output)
	return nil
}
