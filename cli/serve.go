package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/byteness/embedrelay/relay"
	"github.com/byteness/embedrelay/server"
)

// ServeCommandInput contains the input for the serve command.
type ServeCommandInput struct {
	Port int // Overrides server.port when non-zero
}

// ConfigureServeCommand sets up the serve command.
func ConfigureServeCommand(app *kingpin.Application, g *EmbedRelay) {
	input := ServeCommandInput{}

	cmd := app.Command("serve", "Run the HTTPS embed relay")

	cmd.Flag("port", "Port to listen on (default from configuration)").
		Short('p').
		IntVar(&input.Port)

	cmd.Action(func(c *kingpin.ParseContext) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// The server always logs, with or without --debug.
		log.SetOutput(os.Stderr)
		err := ServeCommand(ctx, g, input)
		app.FatalIfError(err, "serve")
		return nil
	})
}

// ServeCommand builds the relay and serves until ctx is cancelled.
func ServeCommand(ctx context.Context, g *EmbedRelay, input ServeCommandInput) error {
	cfg, err := g.LoadConfig()
	if err != nil {
		return err
	}
	if input.Port != 0 {
		cfg.Server.Port = input.Port
	}

	awsCfg, err := g.AWSConfig(ctx)
	if err != nil {
		return err
	}

	r, err := relay.Build(ctx, cfg, relay.WithAWSConfig(awsCfg), relay.WithSource(g.source()))
	if err != nil {
		return err
	}
	defer r.Close()

	var secrets server.SecretsManagerAPI
	if cfg.Server.TLSSecretID != "" {
		secrets = secretsmanager.NewFromConfig(awsCfg)
	}
	tlsConfig, err := server.LoadTLSConfig(ctx, cfg, secrets)
	if err != nil {
		return fmt.Errorf("load TLS material: %w", err)
	}
	if tlsConfig == nil {
		log.Printf("WARNING: no TLS material configured, serving plain HTTP")
	}

	return server.New(r.Config, r.Resolver, r.Limiter).Run(ctx, tlsConfig)
}
