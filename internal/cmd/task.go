package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lightsched/lightsched-go/pkg/lightsched"
	"github.com/spf13/cobra"
)

func newTaskCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "task",
		Aliases:               []string{"tasks"},
		Short:                 "Inspect the tasks of a job",
		Long:                  `Inspect the tasks of a job`,
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return errors.New("a command is required")
		},
	}

	cmd.AddCommand(newTaskListCommand(rootFlags))
	cmd.AddCommand(newTaskShowCommand(rootFlags))
	cmd.AddCommand(newTaskLogCommand(rootFlags))
	cmd.AddCommand(newTaskTerminateCommand(rootFlags))

	return cmd
}

func newTaskListCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	var flags struct {
		output outputFormat
	}

	cmd := &cobra.Command{
		Use:                   "list JOBID [-o table|json|yaml]",
		Short:                 "List the tasks of a job",
		DisableFlagsInUseLine: true,
		Args:                  exactlyOneArg("job ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}

			tasks := cluster.OpenJob(args[0]).GetTaskList(cmd.Context())
			if flags.output != outputTable {
				if tasks == nil {
					tasks = []lightsched.TaskInfo{}
				}
				return writeStructured(cmd.OutOrStdout(), flags.output, tasks)
			}

			tw := newTable(cmd.OutOrStdout(), "ID", "NAME", "STATE", "PROGRESS", "NODE", "EXIT", "STARTED")
			for _, t := range tasks {
				exit := "-"
				if t.IsFinished() {
					exit = fmt.Sprint(t.ExitCode)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\t%s\t%s\n",
					t.TaskID, orDash(t.TaskName), taskStateColor(t.State).Sprint(t.State), t.Progress,
					orDash(t.ExecNode), exit, relativeTime(t.StartTime))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			summary := lightsched.Summarize(tasks)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d tasks finished\n", summary.Finished, summary.Total)
			return nil
		},
	}
	addOutputFlag(cmd, &flags.output)

	return cmd
}

func newTaskShowCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	var flags struct {
		output outputFormat
	}
	flags.output = outputJson

	cmd := &cobra.Command{
		Use:                   "show JOBID TASKID [-o json|yaml]",
		Aliases:               []string{"get"},
		Short:                 "Show the status of a task",
		DisableFlagsInUseLine: true,
		Args:                  exactlyTwoArgs("job ID", "task ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}

			task, err := cluster.OpenJob(args[0]).GetTask(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if flags.output == outputTable {
				flags.output = outputYaml
			}
			return writeStructured(cmd.OutOrStdout(), flags.output, task)
		},
	}
	addOutputFlag(cmd, &flags.output)

	return cmd
}

func newTaskLogCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	return &cobra.Command{
		Use:                   "log JOBID TASKID",
		Aliases:               []string{"logs"},
		Short:                 "Print the log of a task",
		DisableFlagsInUseLine: true,
		Args:                  exactlyTwoArgs("job ID", "task ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}

			text := cluster.OpenJob(args[0]).GetTaskLog(cmd.Context(), args[1])
			fmt.Fprint(cmd.OutOrStdout(), text)
			if text != "" && !strings.HasSuffix(text, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func newTaskTerminateCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	return &cobra.Command{
		Use:                   "terminate JOBID TASKID",
		Short:                 "Terminate a single task",
		DisableFlagsInUseLine: true,
		Args:                  exactlyTwoArgs("job ID", "task ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}
			return cluster.OpenJob(args[0]).TerminateTask(cmd.Context(), args[1])
		},
	}
}
