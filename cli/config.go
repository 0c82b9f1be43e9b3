package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/embedrelay/config"
)

// ConfigValidateCommandInput contains the input for config validate.
type ConfigValidateCommandInput struct {
	Paths  []string // Files to validate; the loaded configuration when empty
	Output string   // human, json

	// For testing
	Stdout io.Writer
}

// ConfigTemplateCommandInput contains the input for config template.
type ConfigTemplateCommandInput struct {
	Template string
	Output   string // File to write; stdout when empty
	Force    bool
	List     bool

	// For testing
	Stdout io.Writer
}

// ConfigureConfigCommand sets up the config command with its subcommands.
func ConfigureConfigCommand(app *kingpin.Application, g *EmbedRelay) {
	configCmd := app.Command("config", "Configuration management commands")

	validateInput := ConfigValidateCommandInput{}
	validateCmd := configCmd.Command("validate", "Validate configuration files")

	validateCmd.Arg("paths", "YAML files to validate (default: the loaded configuration)").
		StringsVar(&validateInput.Paths)

	validateCmd.Flag("output", "Output format: human (default), json").
		Default("human").
		EnumVar(&validateInput.Output, "human", "json")

	validateCmd.Action(func(c *kingpin.ParseContext) error {
		exitCode, err := ConfigValidateCommand(g, validateInput)
		app.FatalIfError(err, "config validate")
		if exitCode != 0 {
			os.Exit(exitCode)
		}
		return nil
	})

	templateInput := ConfigTemplateCommandInput{}
	templateCmd := configCmd.Command("template", "Print a starter configuration file")

	templateCmd.Flag("template", "Template: basic, server, full").
		Short('t').
		Default(string(config.TemplateBasic)).
		EnumVar(&templateInput.Template, "basic", "server", "full")

	templateCmd.Flag("output", "Write to this file instead of stdout").
		Short('o').
		StringVar(&templateInput.Output)

	templateCmd.Flag("force", "Overwrite an existing file").
		BoolVar(&templateInput.Force)

	templateCmd.Flag("list", "List available templates").
		BoolVar(&templateInput.List)

	templateCmd.Action(func(c *kingpin.ParseContext) error {
		err := ConfigTemplateCommand(templateInput)
		app.FatalIfError(err, "config template")
		return nil
	})
}

// ConfigValidateCommand validates each file, or the loaded configuration.
// It returns exit code (0=all valid, 1=errors) and any fatal error.
func ConfigValidateCommand(g *EmbedRelay, input ConfigValidateCommandInput) (int, error) {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var results []config.ValidationResult
	if len(input.Paths) == 0 {
		cfg, err := g.LoadConfig()
		if err != nil {
			return 1, err
		}
		results = append(results, config.Validate(cfg, g.source()))
	}
	for _, path := range input.Paths {
		// A load failure is reported as an issue in the result.
		result, _ := config.ValidateFile(path)
		results = append(results, result)
	}

	if input.Output == "json" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return 1, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		st := newStyles(stdout)
		for _, result := range results {
			writeValidation(stdout, st, result)
		}
	}

	for _, result := range results {
		if !result.Valid {
			return 1, nil
		}
	}
	return 0, nil
}

// writeValidation prints one result with its issues and suggestions.
func writeValidation(w io.Writer, st styles, result config.ValidationResult) {
	errCount := result.Count(config.SeverityError)
	warnCount := result.Count(config.SeverityWarning)

	if result.Valid {
		fmt.Fprintf(w, "%s %s\n", st.ok.Render("✓"), st.title.Render(result.Source))
	} else {
		fmt.Fprintf(w, "%s %s\n", st.fail.Render("✗"), st.title.Render(result.Source))
	}

	for _, issue := range result.Issues {
		marker := st.warn.Render("warning")
		if issue.Severity == config.SeverityError {
			marker = st.fail.Render("error")
		}
		location := ""
		if issue.Location != "" {
			location = issue.Location + ": "
		}
		fmt.Fprintf(w, "  %s %s%s\n", marker, location, issue.Message)
		if issue.Suggestion != "" {
			fmt.Fprintf(w, "    %s\n", st.dim.Render("→ "+issue.Suggestion))
		}
	}

	fmt.Fprintf(w, "  %d error%s, %d warning%s\n\n", errCount, pluralize(errCount), warnCount, pluralize(warnCount))
}

// ConfigTemplateCommand writes a template to stdout or a file.
func ConfigTemplateCommand(input ConfigTemplateCommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	if input.List {
		for _, t := range config.AllTemplates() {
			fmt.Fprintf(stdout, "%-8s %s\n", t.ID, t.Description)
		}
		return nil
	}

	data, err := config.GenerateTemplate(config.TemplateID(input.Template), config.TemplateInput{})
	if err != nil {
		return err
	}
	if input.Output == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := writeConfigFile(input.Output, data, input.Force); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s template to %s\n", input.Template, input.Output)
	return nil
}

// writeConfigFile writes data to path, refusing to replace an existing
// file unless force is set.
func writeConfigFile(path string, data []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, ConfigFileMode)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s already exists; use --force to overwrite", path)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
