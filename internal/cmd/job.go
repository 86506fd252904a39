package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/fatih/color"
	"github.com/lightsched/lightsched-go/pkg/lightsched"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag"
)

func newJobCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "job",
		Aliases:               []string{"jobs"},
		Short:                 "Manage jobs",
		Long:                  `Manage jobs`,
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return errors.New("a command is required")
		},
	}

	cmd.AddCommand(newJobListCommand(rootFlags))
	cmd.AddCommand(newJobShowCommand(rootFlags))
	cmd.AddCommand(newJobActionCommand(rootFlags, "terminate", "Terminate a job", func(ctx context.Context, j *lightsched.Job) error { return j.Terminate(ctx) }))
	cmd.AddCommand(newJobActionCommand(rootFlags, "delete", "Delete a job", func(ctx context.Context, j *lightsched.Job) error { return j.Delete(ctx) }))
	cmd.AddCommand(newJobActionCommand(rootFlags, "halt", "Halt a job", func(ctx context.Context, j *lightsched.Job) error { return j.Halt(ctx) }))
	cmd.AddCommand(newJobActionCommand(rootFlags, "resume", "Resume a halted job", func(ctx context.Context, j *lightsched.Job) error { return j.Resume(ctx) }))
	cmd.AddCommand(newJobWatchCommand(rootFlags))

	return cmd
}

var sortIds = map[lightsched.SortOrder][]string{
	lightsched.SortDefault:  {""},
	lightsched.SortBySubmit: {"submit"},
	lightsched.SortByState:  {"state"},
}

func newJobListCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	var flags struct {
		state  string
		name   string
		offset int
		limit  int
		sort   lightsched.SortOrder
		output outputFormat
	}

	cmd := &cobra.Command{
		Use:                   "list [--state STATE] [--name PATTERN] [--offset N] [--limit N] [--sort submit|state] [-o table|json|yaml]",
		Short:                 "List jobs",
		Long:                  `List jobs. Without --state, jobs in every state are listed. --name filters the page returned by the scheduler by a wildcard pattern.`,
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := lightsched.JobFilter{Offset: flags.offset, Limit: flags.limit, Sort: flags.sort}
			if flags.state != "" {
				state, err := parseJobStateFlag(flags.state)
				if err != nil {
					return err
				}
				filter.State = &state
			}

			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}

			jobs := cluster.QueryJobList(cmd.Context(), filter)
			if flags.name != "" {
				jobs = filterByName(jobs, flags.name)
			}

			if flags.output != outputTable {
				views := make([]jobView, 0, len(jobs))
				for _, j := range jobs {
					views = append(views, newJobView(j))
				}
				return writeStructured(cmd.OutOrStdout(), flags.output, views)
			}

			tw := newTable(cmd.OutOrStdout(), "ID", "NAME", "STATE", "PROGRESS", "TASKS", "SUBMITTED")
			for _, j := range jobs {
				info := j.Info()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%d\t%s\n",
					j.ID(), orDash(j.Spec().JobName), jobStateColor(info.State).Sprint(info.State),
					info.Progress, info.TotalTasks, relativeTime(info.SubmitTime))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if flags.limit > 0 && len(jobs) == flags.limit {
				color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "Warning: the output may be truncated. Specify the --limit and --offset parameters to see more jobs.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.state, "state", "", "Only list jobs in this state: "+strings.Join(jobStateNames(), ", "))
	cmd.Flags().StringVar(&flags.name, "name", "", "Only list jobs whose name matches this pattern, e.g. 'train-*'")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "The number of jobs to skip")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "The maximum number of jobs to list")
	cmd.Flags().Var(
		enumflag.New(&flags.sort, "order", sortIds, enumflag.EnumCaseInsensitive),
		"sort",
		"Sort order. Can be one of: 'submit' or 'state'.")
	addOutputFlag(cmd, &flags.output)

	return cmd
}

func newJobShowCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	var flags struct {
		output outputFormat
	}
	flags.output = outputJson

	cmd := &cobra.Command{
		Use:                   "show ID [-o json|yaml|table]",
		Aliases:               []string{"get"},
		Short:                 "Show the details of a job",
		DisableFlagsInUseLine: true,
		Args:                  exactlyOneArg("job ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}

			job := cluster.OpenJob(args[0])
			if err := job.RefreshInfo(cmd.Context()); err != nil {
				return err
			}

			view := newJobView(job)
			if flags.output == outputTable {
				tasks := job.GetTaskList(cmd.Context())
				return writeJobSummary(cmd, view, tasks)
			}
			return writeStructured(cmd.OutOrStdout(), flags.output, view)
		},
	}
	addOutputFlag(cmd, &flags.output)

	return cmd
}

func newJobActionCommand(rootFlags *rootPersistentFlags, name, short string, action func(context.Context, *lightsched.Job) error) *cobra.Command {
	return &cobra.Command{
		Use:                   name + " ID",
		Short:                 short,
		DisableFlagsInUseLine: true,
		Args:                  exactlyOneArg("job ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}
			return action(cmd.Context(), cluster.OpenJob(args[0]))
		},
	}
}

func newJobWatchCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	return &cobra.Command{
		Use:                   "watch ID",
		Short:                 "Follow a job until it finishes",
		Long:                  `Follow a job until it finishes, printing a line whenever its state or progress changes. Use --interval to change the poll interval.`,
		DisableFlagsInUseLine: true,
		Args:                  exactlyOneArg("job ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}
			return watchJob(cmd, cluster.OpenJob(args[0]), rootFlags.interval)
		},
	}
}

// watchJob polls until the job is terminal and fails unless it completed.
func watchJob(cmd *cobra.Command, job *lightsched.Job, interval time.Duration) error {
	out := cmd.OutOrStdout()
	err := job.Wait(cmd.Context(), interval, func(info lightsched.JobInfo) {
		fmt.Fprintf(out, "%s %s %d%%\n", job.ID(), jobStateColor(info.State).Sprint(info.State), info.Progress)
	})
	if err != nil {
		return err
	}

	if state := job.Info().State; state != lightsched.JobCompleted {
		tasks := job.GetTaskList(cmd.Context())
		summary := lightsched.Summarize(tasks)
		return fmt.Errorf("job %s is %s: %d of %d tasks failed", job.ID(), state, summary.ByState[lightsched.TaskFailed]+summary.ByState[lightsched.TaskAborted], summary.Total)
	}
	return nil
}

func filterByName(jobs []*lightsched.Job, pattern string) []*lightsched.Job {
	var matched []*lightsched.Job
	for _, j := range jobs {
		if wildcard.Match(pattern, j.Spec().JobName) {
			matched = append(matched, j)
		}
	}
	return matched
}

type jobView struct {
	Spec lightsched.JobSpec `json:"spec"`
	Info lightsched.JobInfo `json:"info"`
}

func newJobView(j *lightsched.Job) jobView {
	return jobView{Spec: j.Spec(), Info: j.Info()}
}

func writeJobSummary(cmd *cobra.Command, view jobView, tasks []lightsched.TaskInfo) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", view.Spec.JobID)
	fmt.Fprintf(out, "Name:      %s\n", orDash(view.Spec.JobName))
	fmt.Fprintf(out, "Queue:     %s\n", orDash(view.Spec.Queue))
	fmt.Fprintf(out, "State:     %s\n", jobStateColor(view.Info.State).Sprint(view.Info.State))
	fmt.Fprintf(out, "Progress:  %d%%\n", view.Info.Progress)
	fmt.Fprintf(out, "Resources: %s\n", view.Spec.Resources)
	fmt.Fprintf(out, "Submitted: %s\n", relativeTime(view.Info.SubmitTime))
	fmt.Fprintf(out, "Finished:  %s\n", relativeTime(view.Info.FinishTime))

	summary := lightsched.Summarize(tasks)
	fmt.Fprintf(out, "Tasks:     %d finished of %d\n", summary.Finished, summary.Total)
	for _, s := range lightsched.AllTaskStates() {
		if n := summary.ByState[s]; n > 0 {
			fmt.Fprintf(out, "  %-12s %d\n", s, n)
		}
	}
	return nil
}

func jobStateNames() []string {
	var names []string
	for _, s := range lightsched.AllJobStates() {
		names = append(names, s.String())
	}
	return names
}

// parseJobStateFlag accepts a state name in any case. Unlike the wire
// decoding, an unknown name is an error.
func parseJobStateFlag(s string) (lightsched.JobState, error) {
	for _, state := range lightsched.AllJobStates() {
		if strings.EqualFold(state.String(), s) {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown job state %q, expected one of: %s", s, strings.Join(jobStateNames(), ", "))
}
