package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/alecthomas/kingpin/v2"
	"github.com/charmbracelet/huh"

	"github.com/byteness/embedrelay/config"
	"github.com/byteness/embedrelay/embed"
)

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// InitCommandInput contains the input for the init command.
type InitCommandInput struct {
	Output         string
	Template       string
	Force          bool
	NonInteractive bool

	// Values pre-fill the form; empty fields become placeholders.
	Values config.TemplateInput

	// For testing
	Form   func(values *config.TemplateInput, template *string) error
	Stdout io.Writer
}

// ConfigureInitCommand sets up the init command.
func ConfigureInitCommand(app *kingpin.Application, g *EmbedRelay) {
	input := InitCommandInput{}

	cmd := app.Command("init", "Create a configuration file interactively")

	cmd.Flag("output", "File to write").
		Short('o').
		Default("embedrelay.yaml").
		StringVar(&input.Output)

	cmd.Flag("template", "Template: basic, server, full").
		Default(string(config.TemplateServer)).
		EnumVar(&input.Template, "basic", "server", "full")

	cmd.Flag("force", "Overwrite an existing file").
		BoolVar(&input.Force)

	cmd.Flag("non-interactive", "Skip the form and use flag values").
		BoolVar(&input.NonInteractive)

	cmd.Flag("account-id", "AWS account that owns the dashboards").
		StringVar(&input.Values.AccountID)

	cmd.Flag("role-arn", "IAM role assumed with Cognito ID tokens").
		StringVar(&input.Values.RoleARN)

	cmd.Flag("cognito-app", "Cognito hosted UI domain prefix").
		StringVar(&input.Values.AppName)

	cmd.Flag("client-id", "Cognito app client ID").
		StringVar(&input.Values.ClientID)

	cmd.Flag("redirect-uri", "Application URL Cognito redirects to").
		StringVar(&input.Values.RedirectURI)

	cmd.Action(func(c *kingpin.ParseContext) error {
		if g.Region != "" {
			input.Values.Region = g.Region
		}
		err := InitCommand(input)
		if errors.Is(err, huh.ErrUserAborted) {
			os.Exit(2)
		}
		app.FatalIfError(err, "init")
		return nil
	})
}

// InitCommand collects values, interactively unless disabled, and writes
// the generated configuration file.
func InitCommand(input InitCommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	values := input.Values
	template := input.Template
	if template == "" {
		template = string(config.TemplateServer)
	}

	if !input.NonInteractive {
		form := input.Form
		if form == nil {
			form = runInitForm
		}
		if err := form(&values, &template); err != nil {
			return err
		}
	}

	data, err := config.GenerateTemplate(config.TemplateID(template), values)
	if err != nil {
		return err
	}
	if err := writeConfigFile(input.Output, data, input.Force); err != nil {
		return err
	}

	st := newStyles(stdout)
	fmt.Fprintf(stdout, "%s Wrote %s\n", st.ok.Render("✓"), input.Output)
	fmt.Fprintf(stdout, "Next: embedrelay --config %s check\n", input.Output)
	return nil
}

// runInitForm asks for the values with a huh form.
func runInitForm(values *config.TemplateInput, template *string) error {
	if values.Region == "" {
		values.Region = embed.DefaultRegion
	}

	var templates []huh.Option[string]
	for _, t := range config.AllTemplates() {
		templates = append(templates, huh.NewOption(fmt.Sprintf("%s - %s", t.Name, t.Description), string(t.ID)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Template").
				Options(templates...).
				Value(template),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("AWS account ID").
				Value(&values.AccountID).
				Validate(validateAccountID),
			huh.NewInput().
				Title("Embed role ARN").
				Description("Leave empty for arn:aws:iam::<account>:role/QuickSightEmbedRole").
				Value(&values.RoleARN).
				Validate(validateOptionalRoleARN),
			huh.NewInput().
				Title("Default region").
				Value(&values.Region),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Cognito hosted UI domain prefix").
				Value(&values.AppName),
			huh.NewInput().
				Title("Cognito app client ID").
				Value(&values.ClientID),
			huh.NewInput().
				Title("Redirect URI").
				Value(&values.RedirectURI),
		),
	)
	return form.Run()
}

func validateAccountID(s string) error {
	if !accountIDPattern.MatchString(s) {
		return errors.New("account ID must be 12 digits")
	}
	return nil
}

func validateOptionalRoleARN(s string) error {
	if s == "" {
		return nil
	}
	_, _, err := embed.ParseRoleARN(s)
	return err
}
