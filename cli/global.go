// Package cli implements the embedrelay command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	isatty "github.com/mattn/go-isatty"

	"github.com/byteness/embedrelay/config"
)

// File permission constants for files written by the CLI.
const (
	// ConfigFileMode is for generated configuration files. They may hold a
	// Cognito client ID but never the audit signing key.
	ConfigFileMode fs.FileMode = 0644

	// SensitiveFileMode is for files that may contain secrets.
	SensitiveFileMode fs.FileMode = 0600
)

// EmbedRelay holds shared state for all commands.
type EmbedRelay struct {
	Debug      bool
	ConfigFile string
	EnvFile    string
	Region     string

	config *config.Config
}

// LoadConfig loads the layered configuration once. SSM parameters are
// applied later, when AWS clients exist.
func (g *EmbedRelay) LoadConfig() (*config.Config, error) {
	if g.config != nil {
		return g.config, nil
	}
	cfg, err := config.Load(config.LoadOptions{
		File:   g.ConfigFile,
		DotEnv: g.EnvFile,
	})
	if err != nil {
		return nil, err
	}
	if g.Region != "" {
		cfg.AWS.Region = g.Region
	}
	g.config = cfg
	return cfg, nil
}

// source names the configuration for messages.
func (g *EmbedRelay) source() string {
	if g.ConfigFile != "" {
		return g.ConfigFile
	}
	if path := os.Getenv(config.EnvConfigFile); path != "" {
		return path
	}
	return "environment"
}

// AWSConfig loads the default AWS configuration in the relay region.
func (g *EmbedRelay) AWSConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := g.LoadConfig()
	if err != nil {
		return aws.Config{}, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

func isATerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ConfigureGlobals registers the global flags.
func ConfigureGlobals(app *kingpin.Application) *EmbedRelay {
	g := &EmbedRelay{}

	app.Flag("debug", "Show debugging output").
		BoolVar(&g.Debug)

	app.Flag("config", "YAML configuration file").
		Short('c').
		Envar(config.EnvConfigFile).
		StringVar(&g.ConfigFile)

	app.Flag("env-file", "dotenv file read before the environment").
		Default(".env").
		StringVar(&g.EnvFile)

	app.Flag("region", "Override the relay's default AWS region").
		StringVar(&g.Region)

	app.PreAction(func(c *kingpin.ParseContext) error {
		if !g.Debug {
			log.SetOutput(io.Discard)
		}
		log.Printf("embedrelay %s", app.Model().Version)
		return nil
	})

	return g
}
