package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"golang.org/x/term"

	"github.com/byteness/embedrelay/embed"
	relayerrors "github.com/byteness/embedrelay/errors"
	"github.com/byteness/embedrelay/relay"
)

// EnvIDToken supplies the Cognito ID token to the embed command.
const EnvIDToken = "EMBEDRELAY_ID_TOKEN"

// EmbedResolver resolves embed URLs.
type EmbedResolver interface {
	ResolveEmbedURL(ctx context.Context, idToken, dashboardName string) (*embed.Result, error)
}

// EmbedCommandInput contains the input for the embed command.
type EmbedCommandInput struct {
	Dashboard string
	Token     string
	JSON      bool

	// For testing
	Resolver     EmbedResolver
	Stdin        io.Reader
	Stdout       io.Writer
	Stderr       io.Writer
	IsTerminal   func() bool
	ReadPassword func() ([]byte, error)
}

// EmbedCommandOutput is the --json output of the embed command.
type EmbedCommandOutput struct {
	URL            string `json:"url"`
	DashboardID    string `json:"dashboard_id"`
	DashboardName  string `json:"dashboard_name"`
	IdentityRegion string `json:"identity_region"`
	Registered     bool   `json:"registered"`
	RequestID      string `json:"request_id"`
}

// ConfigureEmbedCommand sets up the embed command.
func ConfigureEmbedCommand(app *kingpin.Application, g *EmbedRelay) {
	input := EmbedCommandInput{}

	cmd := app.Command("embed", "Resolve a dashboard embed URL for an ID token")

	cmd.Flag("dashboard", "Exact dashboard name").
		Short('d').
		Required().
		StringVar(&input.Dashboard)

	cmd.Flag("token", "Cognito ID token (prompted when omitted)").
		Envar(EnvIDToken).
		StringVar(&input.Token)

	cmd.Flag("json", "Output in JSON format").
		BoolVar(&input.JSON)

	cmd.Action(func(c *kingpin.ParseContext) error {
		err := EmbedCommand(context.Background(), g, input)
		if err != nil {
			FormatErrorWithSuggestion(err)
			os.Exit(1)
		}
		return nil
	})
}

// EmbedCommand resolves one embed URL and prints it.
func EmbedCommand(ctx context.Context, g *EmbedRelay, input EmbedCommandInput) error {
	stdin := input.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := input.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	token, err := readToken(input, stdin, stderr)
	if err != nil {
		return err
	}

	resolver := input.Resolver
	if resolver == nil {
		cfg, err := g.LoadConfig()
		if err != nil {
			return err
		}
		// Audit entries go to stderr so stdout carries only the URL.
		r, err := relay.Build(ctx, cfg, relay.WithLogOutput(stderr), relay.WithSource(g.source()))
		if err != nil {
			return err
		}
		defer r.Close()
		resolver = r.Resolver
	}

	result, err := resolver.ResolveEmbedURL(ctx, token, input.Dashboard)
	if err != nil {
		return err
	}

	if !input.JSON {
		fmt.Fprintln(stdout, result.URL)
		return nil
	}
	data, err := json.MarshalIndent(EmbedCommandOutput{
		URL:            result.URL,
		DashboardID:    result.DashboardID,
		DashboardName:  result.DashboardName,
		IdentityRegion: result.IdentityRegion,
		Registered:     result.Registered,
		RequestID:      result.RequestID,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

// readToken returns the token from the flag or environment, a hidden
// prompt on a terminal, or the first line of stdin otherwise.
func readToken(input EmbedCommandInput, stdin io.Reader, stderr io.Writer) (string, error) {
	if token := strings.TrimSpace(input.Token); token != "" {
		return token, nil
	}

	isTerminal := input.IsTerminal
	if isTerminal == nil {
		isTerminal = func() bool { return isATerminal(os.Stdin) }
	}

	var token string
	if isTerminal() {
		readPassword := input.ReadPassword
		if readPassword == nil {
			readPassword = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }
		}
		fmt.Fprint(stderr, "Cognito ID token: ")
		b, err := readPassword()
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		token = string(b)
	} else {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read token: %w", err)
		}
		token = line
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", relayerrors.New(relayerrors.KindInvalidToken,
			"no ID token given; use --token, "+EnvIDToken+" or stdin", nil)
	}
	return token, nil
}
