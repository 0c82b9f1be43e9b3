package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/skratchdot/open-golang/open"
)

// LoginCommandInput contains the input for the login command.
type LoginCommandInput struct {
	NoBrowser bool

	// For testing
	Stdout     io.Writer
	Open       func(url string) error
	IsTerminal func() bool
}

// ConfigureLoginCommand sets up the login command.
func ConfigureLoginCommand(app *kingpin.Application, g *EmbedRelay) {
	input := LoginCommandInput{}

	cmd := app.Command("login", "Open the Cognito hosted UI sign-in page")

	cmd.Flag("no-browser", "Only print the sign-in URL").
		BoolVar(&input.NoBrowser)

	cmd.Action(func(c *kingpin.ParseContext) error {
		err := LoginCommand(g, input)
		app.FatalIfError(err, "login")
		return nil
	})
}

// LoginCommand prints the hosted UI URL and opens it in a browser when
// attached to a terminal.
func LoginCommand(g *EmbedRelay, input LoginCommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	openURL := input.Open
	if openURL == nil {
		openURL = open.Run
	}
	isTerminal := input.IsTerminal
	if isTerminal == nil {
		isTerminal = func() bool { return isATerminal(os.Stdout) }
	}

	cfg, err := g.LoadConfig()
	if err != nil {
		return err
	}
	login := cfg.Embed().Login
	if login.Region == "" {
		login.Region = cfg.AWS.Region
	}
	if login.ClientID == "" || (login.AppName == "" && login.Domain == "") {
		return fmt.Errorf("cognito.client_id and cognito.app_name (or cognito.domain) are required")
	}
	url := login.URL()

	fmt.Fprintln(stdout, url)
	if input.NoBrowser || !isTerminal() {
		return nil
	}
	if err := openURL(url); err != nil {
		fmt.Fprintf(stdout, "Could not open a browser (%v); open the URL above to sign in.\n", err)
	}
	return nil
}
