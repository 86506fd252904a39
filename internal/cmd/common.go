package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/lightsched/lightsched-go/pkg/lightsched"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag"
	"sigs.k8s.io/yaml"
)

type outputFormat int8

const (
	outputTable outputFormat = iota
	outputJson
	outputYaml
)

var outputFormatIds = map[outputFormat][]string{
	outputTable: {"table"},
	outputJson:  {"json"},
	outputYaml:  {"yaml"},
}

func addOutputFlag(cmd *cobra.Command, format *outputFormat) {
	cmd.Flags().VarP(
		enumflag.New(format, "format", outputFormatIds, enumflag.EnumCaseInsensitive),
		"output", "o",
		"Output format. Can be one of: 'table', 'json', or 'yaml'.")
}

func exactlyOneArg(argName string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf("one %s positional argument is required", argName)
		}
		if len(args) > 1 {
			return fmt.Errorf("unexpected positional arguments after the %s: %v", argName, args[1:])
		}
		return nil
	}
}

func exactlyTwoArgs(first, second string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("the %s and %s positional arguments are required", first, second)
		}
		return nil
	}
}

// writeStructured prints v as indented JSON or as YAML.
func writeStructured(w io.Writer, format outputFormat, v interface{}) error {
	switch format {
	case outputYaml:
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
}

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func jobStateColor(s lightsched.JobState) *color.Color {
	switch s {
	case lightsched.JobExecuting:
		return color.New(color.FgCyan)
	case lightsched.JobHalted:
		return color.New(color.FgYellow)
	case lightsched.JobCompleted:
		return color.New(color.FgGreen)
	case lightsched.JobFailed, lightsched.JobTerminated:
		return color.New(color.FgRed)
	}
	return color.New(color.Reset)
}

func taskStateColor(s lightsched.TaskState) *color.Color {
	switch s {
	case lightsched.TaskExecuting, lightsched.TaskDispatching:
		return color.New(color.FgCyan)
	case lightsched.TaskCompleted:
		return color.New(color.FgGreen)
	case lightsched.TaskFailed, lightsched.TaskAborted, lightsched.TaskTerminated:
		return color.New(color.FgRed)
	}
	return color.New(color.Reset)
}

func nodeStateColor(s lightsched.NodeState) *color.Color {
	switch s {
	case lightsched.NodeOnline:
		return color.New(color.FgGreen)
	case lightsched.NodeOffline:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgRed)
}

var schedulerTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// relativeTime renders a scheduler timestamp as "3 minutes ago". Timestamps
// in an unknown layout are shown as sent.
func relativeTime(s string) string {
	if s == "" {
		return "-"
	}
	for _, layout := range schedulerTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return humanize.Time(t)
		}
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
