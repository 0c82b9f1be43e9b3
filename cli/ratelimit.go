package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/byteness/embedrelay/ratelimit"
)

// RateLimitTableCommandInput contains the input for ratelimit create-table.
type RateLimitTableCommandInput struct {
	TableName  string // Overrides rate_limit.table
	Plan       bool   // Show the table definition without creating it
	JSONOutput bool

	// For testing
	Client ratelimit.TableAdminAPI
	Stdout io.Writer
}

// ConfigureRateLimitCommand sets up the ratelimit commands.
func ConfigureRateLimitCommand(app *kingpin.Application, g *EmbedRelay) {
	input := RateLimitTableCommandInput{}

	rateLimitCmd := app.Command("ratelimit", "Shared rate limit operations")
	cmd := rateLimitCmd.Command("create-table", "Create the DynamoDB table for the shared rate limit")

	cmd.Flag("table", "Table name (default: rate_limit.table)").
		StringVar(&input.TableName)

	cmd.Flag("plan", "Show the table definition without creating it").
		BoolVar(&input.Plan)

	cmd.Flag("json", "Output in JSON format").
		BoolVar(&input.JSONOutput)

	cmd.Action(func(c *kingpin.ParseContext) error {
		exitCode, err := RateLimitTableCommand(context.Background(), g, input)
		app.FatalIfError(err, "ratelimit create-table")
		if exitCode != 0 {
			os.Exit(exitCode)
		}
		return nil
	})
}

// RateLimitTableCommand creates the rate limit table, or prints its plan.
// Returns exit code: 0=created or exists, 1=failed.
func RateLimitTableCommand(ctx context.Context, g *EmbedRelay, input RateLimitTableCommandInput) (int, error) {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	tableName := input.TableName
	if tableName == "" {
		cfg, err := g.LoadConfig()
		if err != nil {
			return 1, err
		}
		tableName = cfg.RateLimit.Table
	}
	if tableName == "" {
		return 1, fmt.Errorf("no table name; set rate_limit.table or pass --table")
	}

	client := input.Client
	if client == nil && !input.Plan {
		awsCfg, err := g.AWSConfig(ctx)
		if err != nil {
			return 1, err
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}
	provisioner := ratelimit.NewTableProvisioner(client)

	var (
		out  any
		code int
	)
	if input.Plan {
		plan, err := provisioner.Plan(tableName)
		if err != nil {
			return 1, err
		}
		out = plan
		if !input.JSONOutput {
			fmt.Fprintf(stdout, "Table:         %s\n", plan.TableName)
			fmt.Fprintf(stdout, "Partition key: %s\n", plan.PartitionKey)
			fmt.Fprintf(stdout, "TTL attribute: %s\n", plan.TTLAttribute)
			fmt.Fprintf(stdout, "Billing mode:  %s\n", plan.BillingMode)
		}
	} else {
		result, err := provisioner.Create(ctx, tableName)
		if err != nil {
			return 1, err
		}
		out = result
		st := newStyles(stdout)
		if result.Status == ratelimit.StatusFailed {
			code = 1
			if !input.JSONOutput {
				fmt.Fprintf(stdout, "%s %s: %s\n", st.fail.Render("✗"), result.TableName, result.Error)
			}
		} else if !input.JSONOutput {
			fmt.Fprintf(stdout, "%s %s %s (%s)\n", st.ok.Render("✓"), result.TableName, result.Status, result.ARN)
		}
	}

	if input.JSONOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return 1, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
	}
	return code, nil
}
