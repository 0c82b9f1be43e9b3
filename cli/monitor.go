package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/embedrelay/metrics"
)

// AlarmSetup provisions the relay's CloudWatch alarms.
type AlarmSetup interface {
	Setup(ctx context.Context, opts metrics.MonitorOptions) (*metrics.MonitorResult, error)
}

// MonitorSetupCommandInput contains the input for the monitor setup command.
type MonitorSetupCommandInput struct {
	TopicName     string   // SNS topic name for alarm actions
	Email         string   // Email for notifications (optional)
	Alarms        []string // Specific alarms to create (empty = all)
	AuditLogGroup string   // Overrides audit.cloudwatch_log_group
	DryRun        bool     // Preview without creating
	JSONOutput    bool     // Output in JSON format

	// For testing
	Setup  AlarmSetup
	Stdout io.Writer
}

// ConfigureMonitorCommand sets up the monitor commands.
func ConfigureMonitorCommand(app *kingpin.Application, g *EmbedRelay) {
	input := MonitorSetupCommandInput{}

	monitorCmd := app.Command("monitor", "CloudWatch monitoring operations")
	cmd := monitorCmd.Command("setup", "Create CloudWatch alarms on embedrelay metrics")

	cmd.Flag("topic-name", "SNS topic name for alarm notifications").
		Default(metrics.DefaultAlarmTopicName).
		StringVar(&input.TopicName)

	cmd.Flag("email", "Email address for notifications (optional)").
		Short('e').
		StringVar(&input.Email)

	cmd.Flag("alarm", "Specific alarm to create (repeatable)").
		EnumsVar(&input.Alarms, metrics.AlarmNames()...)

	cmd.Flag("audit-log-group", "Audit log group for the audit failure metric filter").
		StringVar(&input.AuditLogGroup)

	cmd.Flag("dry-run", "Preview what would be created without creating").
		BoolVar(&input.DryRun)

	cmd.Flag("json", "Output in JSON format").
		BoolVar(&input.JSONOutput)

	cmd.Action(func(c *kingpin.ParseContext) error {
		exitCode, err := MonitorSetupCommand(context.Background(), g, input)
		app.FatalIfError(err, "monitor setup")
		if exitCode != 0 {
			os.Exit(exitCode)
		}
		return nil
	})
}

// MonitorSetupCommand creates the alarms, or previews them with --dry-run.
// Returns exit code: 0=success, 1=some resources failed.
func MonitorSetupCommand(ctx context.Context, g *EmbedRelay, input MonitorSetupCommandInput) (int, error) {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	cfg, err := g.LoadConfig()
	if err != nil {
		return 1, err
	}
	opts := metrics.MonitorOptions{
		Namespace:     cfg.Metrics.Namespace,
		TopicName:     input.TopicName,
		Email:         input.Email,
		AuditLogGroup: input.AuditLogGroup,
		AlarmNames:    input.Alarms,
	}
	if opts.AuditLogGroup == "" {
		opts.AuditLogGroup = cfg.Audit.CloudWatchLogGroup
	}

	if input.DryRun {
		return 0, writeMonitorPreview(stdout, opts, input.JSONOutput)
	}

	setup := input.Setup
	if setup == nil {
		awsCfg, err := g.AWSConfig(ctx)
		if err != nil {
			return 1, err
		}
		setup = metrics.NewMonitor(awsCfg)
	}

	result, err := setup.Setup(ctx, opts)
	if err != nil {
		return 1, err
	}

	if input.JSONOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return 1, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		st := newStyles(stdout)
		fmt.Fprintf(stdout, "SNS topic: %s\n", result.TopicARN)
		for _, name := range result.AlarmsCreated {
			fmt.Fprintf(stdout, "  %s alarm %s\n", st.ok.Render("✓"), name)
		}
		if result.FilterCreated != "" {
			fmt.Fprintf(stdout, "  %s metric filter %s\n", st.ok.Render("✓"), result.FilterCreated)
		}
		for _, msg := range result.Errors {
			fmt.Fprintf(stdout, "  %s %s\n", st.fail.Render("✗"), msg)
		}
	}

	if len(result.Errors) > 0 {
		return 1, nil
	}
	return 0, nil
}

func writeMonitorPreview(w io.Writer, opts metrics.MonitorOptions, asJSON bool) error {
	selected := make(map[string]bool, len(opts.AlarmNames))
	for _, name := range opts.AlarmNames {
		selected[name] = true
	}
	var alarms []metrics.AlarmConfig
	for _, alarm := range metrics.DefaultAlarms() {
		if len(selected) == 0 || selected[alarm.Name] {
			alarms = append(alarms, alarm)
		}
	}

	if asJSON {
		data, err := json.MarshalIndent(alarms, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintf(w, "SNS topic: %s\n", opts.TopicName)
	if opts.AuditLogGroup != "" {
		fmt.Fprintf(w, "Audit log group: %s\n", opts.AuditLogGroup)
	}
	fmt.Fprintf(w, "Alarms to create (%d):\n", len(alarms))
	for _, alarm := range alarms {
		fmt.Fprintf(w, "  %-42s %s\n", alarm.Name, alarm.Description)
	}
	return nil
}
