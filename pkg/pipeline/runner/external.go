package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// waitDelay bounds how long a killed command may keep its output pipes open.
const waitDelay = 2 * time.Second

// Formats understood by ExternalCommand.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatText  = "text"
	FormatLines = "lines"
)

// ExternalCommand runs a shell command on its input and reads back the first file it writes.
//
// Config:
//   - command: template run by the shell; {input_file} and {output_dir} are substituted
//   - input_format: json, yaml or text (default json)
//   - output_format: json, yaml, text or lines (default json)
//   - timeout: seconds before the process is killed
//   - output_dir: keep the output there and emit its path on output_file; emptied before each run
type ExternalCommand struct {
	opts Options
}

// NewExternalCommand creates the runner with opts as defaults.
func NewExternalCommand(opts Options) *ExternalCommand { return &ExternalCommand{opts: opts} }

// Run writes the input, runs the command and reads back its output.
func (r *ExternalCommand) Run(ctx context.Context, node *model.Node, _ *pipeline.Pipeline, ec *pipeline.ExecutionContext) error {
	command, err := node.Config.Text("command", "")
	if err != nil {
		return err
	}
	if command == "" {
		return errors.New("config command is required")
	}

	inputFormat, err := node.Config.Text("input_format", FormatJSON)
	if err != nil {
		return err
	}
	outputFormat, err := node.Config.Text("output_format", FormatJSON)
	if err != nil {
		return err
	}
	timeout, err := seconds(node.Config, "timeout", r.opts.CommandTimeout)
	if err != nil {
		return err
	}
	keepDir, err := node.Config.Text("output_dir", "")
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp(r.opts.TempDir, "labflow-cmd-*")
	if err != nil {
		return errors.Wrap(err, "unable to create working directory")
	}
	defer os.RemoveAll(workDir)

	input, _ := inputOrConfig(ec, node, "input", "input")
	inputFile := filepath.Join(workDir, "input."+extension(inputFormat))

	err = writeInput(inputFile, inputFormat, input)
	if err != nil {
		return err
	}

	outputDir := filepath.Join(workDir, "output")
	if keepDir != "" {
		outputDir = keepDir
	}

	err = os.MkdirAll(outputDir, 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create output directory %s", outputDir)
	}

	if keepDir != "" {
		err = clearDir(outputDir)
		if err != nil {
			return err
		}
	}

	err = r.execute(ctx, node, ec, command, inputFile, outputDir, workDir, timeout)
	if err != nil {
		return err
	}

	outputFile, err := firstFile(outputDir)
	if err != nil {
		return err
	}

	if outputFile == "" {
		ec.Log(node.ID, "warning: %s: command produced no output in %s", node.Label(), outputDir)
		setOutput(ec, node, "output", model.Null())

		return nil
	}

	output, err := readOutput(outputFile, outputFormat)
	if err != nil {
		return err
	}

	setOutput(ec, node, "output", output)
	if keepDir != "" {
		setOutput(ec, node, "output_file", model.String(outputFile))
	}

	return nil
}

func (r *ExternalCommand) execute(
	ctx context.Context,
	node *model.Node,
	ec *pipeline.ExecutionContext,
	command, inputFile, outputDir, workDir string,
	timeout time.Duration,
) error {
	command = strings.NewReplacer("{input_file}", inputFile, "{output_dir}", outputDir).Replace(command)

	shell := r.opts.Shell
	if shell == "" {
		shell = "sh"
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, shell, "-c", command)
	cmd.Dir = workDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "LABFLOW_INPUT_FILE="+inputFile, "LABFLOW_OUTPUT_DIR="+outputDir)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Round(time.Millisecond)

	if err == nil {
		if out := strings.TrimSpace(stdout.String()); out != "" {
			ec.Log(node.ID, "%s: %s", node.Label(), out)
		}

		return nil
	}

	switch {
	case ec.Cancelled() || ctx.Err() != nil:
		return cancelled(node)
	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded):
		return errors.Errorf("command timed out after %s (limit %s): %s", elapsed, timeout, command)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.Errorf("command exited with code %d after %s: %s", exitErr.ExitCode(), elapsed, strings.TrimSpace(stderr.String()))
	}

	return errors.Wrap(err, "unable to run command")
}

func extension(format string) string {
	switch format {
	case FormatYAML:
		return "yaml"
	case FormatText, FormatLines:
		return "txt"
	}

	return "json"
}

func writeInput(path, format string, value any) error {
	var (
		raw []byte
		err error
	)

	switch format {
	case FormatJSON:
		raw, err = json.Marshal(value)
	case FormatYAML:
		raw, err = yaml.Marshal(value)
	case FormatText:
		raw = []byte(text(value))
	default:
		return errors.Errorf("unknown input format %q", format)
	}
	if err != nil {
		return errors.Wrapf(err, "unable to encode input as %s", format)
	}

	err = os.WriteFile(path, raw, 0o600)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}

	return nil
}

func text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case model.Value:
		if s, ok := v.AsString(); ok {
			return s
		}

		return v.String()
	case string:
		return v
	}

	return fmt.Sprint(value)
}

// clearDir removes everything inside dir, so a previous run's output is never read back.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "unable to list %s", dir)
	}

	for _, entry := range entries {
		err = os.RemoveAll(filepath.Join(dir, entry.Name()))
		if err != nil {
			return errors.Wrapf(err, "unable to clear %s", dir)
		}
	}

	return nil
}

// firstFile returns the first regular file of dir in name order, or "" when there is none.
func firstFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "unable to list %s", dir)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.Type().IsRegular() {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", nil
}

func readOutput(path, format string) (model.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Value{}, errors.Wrapf(err, "unable to read %s", path)
	}

	var value model.Value

	switch format {
	case FormatJSON:
		err = json.Unmarshal(raw, &value)
	case FormatYAML:
		err = yaml.Unmarshal(raw, &value)
	case FormatText:
		value = model.String(string(raw))
	case FormatLines:
		var lines []model.Value
		for _, line := range strings.Split(string(raw), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, model.String(line))
			}
		}
		value = model.List(lines...)
	default:
		return model.Value{}, errors.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return model.Value{}, errors.Wrapf(err, "unable to decode %s as %s", filepath.Base(path), format)
	}

	return value, nil
}

var _ pipeline.NodeRunner = (*ExternalCommand)(nil)
