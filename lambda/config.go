package lambda

import (
	"context"
	"fmt"
	"log"

	"github.com/byteness/embedrelay/config"
	"github.com/byteness/embedrelay/relay"
)

// LoadDepsFromEnv builds the handler's components from EMBEDRELAY_*
// environment variables, an optional EMBEDRELAY_CONFIG file bundled with
// the function, and EMBEDRELAY_SSM_PATH parameters.
func LoadDepsFromEnv(ctx context.Context) (*Deps, error) {
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	r, err := relay.Build(ctx, cfg, relay.WithSource("environment"))
	if err != nil {
		return nil, err
	}

	log.Printf("INFO: embedrelay configured for account %s in %s", cfg.AWS.AccountID, cfg.AWS.Region)
	return &Deps{
		Config:   r.Config,
		Resolver: r.Resolver,
		Limiter:  r.Limiter,
	}, nil
}
