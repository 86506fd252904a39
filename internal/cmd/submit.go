package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/a8m/envsubst"
	"github.com/lightsched/lightsched-go/pkg/lightsched"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/api/resource"
	"sigs.k8s.io/yaml"
)

const (
	mebibyte = 1024 * 1024
	gibibyte = 1024 * mebibyte
)

func newSubmitCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	var flags struct {
		file      string
		command   string
		args      string
		env       string
		workDir   string
		queue     string
		labels    map[string]string
		priority  int
		maxErrors int
		cpus      float64
		cpuFreq   int
		memory    string
		gpus      int
		gpuMemory string
		cuda      int
		tasks     int
		watch     bool
	}

	cmd := &cobra.Command{
		Use: `submit [NAME] [-f FILE] [--cmd COMMAND] [--args ARGS] [--env "K1=V1;K2=V2"] [--workdir DIR] [--queue QUEUE]
		[[--label KEY=VALUE] ...] [--priority N] [--max-errors N] [--tasks N] [resources] [--watch]`,
		Short: "Submit a job",
		Long: `Submit a job. The job is either read from a YAML or JSON file given with -f, or built from the flags.
Environment variable references such as ${VAR} in the file are expanded.
Flags override the corresponding members of the file. Writes the job ID to stdout on success.`,
		DisableFlagsInUseLine: true,
		Args:                  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := lightsched.NewJobSpec("")
			if flags.file != "" {
				content, err := os.ReadFile(flags.file)
				if err != nil {
					return err
				}
				content, err = envsubst.Bytes(content)
				if err != nil {
					return fmt.Errorf("unable to expand environment variables in %s: %w", flags.file, err)
				}
				spec = &lightsched.JobSpec{Priority: lightsched.DefaultPriority}
				if err := yaml.UnmarshalStrict(content, spec); err != nil {
					return fmt.Errorf("unable to parse %s: %w", flags.file, err)
				}
				spec.JobID = ""
			}

			if len(args) > 0 {
				spec.JobName = args[0]
			}
			if spec.JobName == "" {
				return errors.New("a name for the job is required")
			}

			changed := cmd.Flags().Changed
			if changed("cmd") {
				spec.Command = flags.command
			}
			if changed("env") {
				spec.Environments = flags.env
			}
			if changed("workdir") {
				spec.WorkDir = flags.workDir
			}
			if changed("queue") {
				spec.Queue = flags.queue
			}
			if changed("priority") {
				spec.Priority = flags.priority
			}
			if changed("max-errors") {
				spec.MaxErrors = flags.maxErrors
			}
			for k, v := range flags.labels {
				spec.SetLabel(k, v)
			}

			claim, err := resourceClaimFromFlags(cmd, spec.Resources, flags.cpus, flags.cpuFreq, flags.memory, flags.gpus, flags.gpuMemory, flags.cuda)
			if err != nil {
				return err
			}
			spec.Resources = claim

			if len(spec.Tasks) == 0 || changed("tasks") {
				if flags.tasks < 1 {
					return errors.New("--tasks must be at least 1")
				}
				spec.Tasks = nil
				for i := 0; i < flags.tasks; i++ {
					spec.AddTaskCommand(fmt.Sprintf("task-%d", i), "", flags.args)
				}
			} else if changed("args") {
				for i := range spec.Tasks {
					spec.Tasks[i].CommandArgs = flags.args
				}
			}

			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}

			id, err := cluster.SubmitJob(cmd.Context(), spec)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)

			if flags.watch {
				return watchJob(cmd, cluster.OpenJob(id), rootFlags.interval)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "A YAML or JSON job file")
	cmd.Flags().StringVar(&flags.command, "cmd", "", "The command every task runs")
	cmd.Flags().StringVar(&flags.args, "args", "", "The command arguments of every task")
	cmd.Flags().StringVarP(&flags.env, "env", "e", "", `Environment variables, in the form "K1=V1;K2=V2"`)
	cmd.Flags().StringVar(&flags.workDir, "workdir", "", "The working directory of the tasks")
	cmd.Flags().StringVar(&flags.queue, "queue", "", "The queue to submit to. Defaults to '"+lightsched.DefaultQueue+"'.")
	cmd.Flags().StringToStringVarP(&flags.labels, "label", "l", nil, "Job labels in the form KEY=VALUE")
	cmd.Flags().IntVar(&flags.priority, "priority", lightsched.DefaultPriority, "The job priority")
	cmd.Flags().IntVar(&flags.maxErrors, "max-errors", 0, "The number of failed tasks tolerated before the job fails")
	cmd.Flags().IntVar(&flags.tasks, "tasks", 1, "The number of identical tasks to create when the file defines none")
	cmd.Flags().Float64Var(&flags.cpus, "cpus", 0, "CPU cores needed per task, may be fractional")
	cmd.Flags().IntVar(&flags.cpuFreq, "cpu-freq", 0, "Minimum CPU clock in MHz")
	cmd.Flags().StringVarP(&flags.memory, "memory", "m", "", "Memory needed per task, e.g. 512Mi or 4Gi")
	cmd.Flags().IntVar(&flags.gpus, "gpus", 0, "GPU cards needed per task")
	cmd.Flags().StringVar(&flags.gpuMemory, "gpu-memory", "", "Memory needed per GPU card, e.g. 16Gi")
	cmd.Flags().IntVar(&flags.cuda, "cuda", 0, "Minimum CUDA capability, e.g. 1020")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Follow the job until it finishes")

	return cmd
}

// resourceClaimFromFlags overlays the resource flags that were given on base.
func resourceClaimFromFlags(cmd *cobra.Command, base lightsched.ResourceClaim, cpus float64, cpuFreq int, memory string, gpus int, gpuMemory string, cuda int) (lightsched.ResourceClaim, error) {
	claim := base
	changed := cmd.Flags().Changed

	if changed("cpus") {
		if cpus < 0 {
			return claim, errors.New("--cpus must not be negative")
		}
		claim.NumCPUs = cpus
	}
	if changed("cpu-freq") {
		claim.CPUFreq = cpuFreq
	}
	if memory != "" {
		mi, err := quantityIn(memory, mebibyte)
		if err != nil {
			return claim, fmt.Errorf("memory value is invalid: %v", err)
		}
		claim.Memory = mi
	}
	if changed("gpus") {
		claim.NumGPUs = gpus
	}
	if gpuMemory != "" {
		gi, err := quantityIn(gpuMemory, gibibyte)
		if err != nil {
			return claim, fmt.Errorf("gpu memory value is invalid: %v", err)
		}
		claim.GPUMemory = gi
	}
	if changed("cuda") {
		claim.CUDA = cuda
	}
	return claim, nil
}

// quantityIn parses a Kubernetes style quantity and returns it in units of
// unit bytes, rounded up.
func quantityIn(s string, unit int64) (int, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, err
	}
	if q.Sign() < 0 {
		return 0, fmt.Errorf("%s is negative", s)
	}
	bytes := q.Value()
	return int((bytes + unit - 1) / unit), nil
}
