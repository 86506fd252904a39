package cmd

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/lightsched/lightsched-go/pkg/lightsched"
	"github.com/spf13/cobra"
)

func newNodeCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "node",
		Aliases:               []string{"nodes"},
		Short:                 "Manage worker nodes",
		Long:                  `Manage worker nodes`,
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return errors.New("a command is required")
		},
	}

	cmd.AddCommand(newNodeListCommand(rootFlags))
	cmd.AddCommand(newNodeShowCommand(rootFlags))
	cmd.AddCommand(newNodeOnlineCommand(rootFlags))
	cmd.AddCommand(newNodeOfflineCommand(rootFlags))

	return cmd
}

func newNodeListCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	var flags struct {
		output outputFormat
	}

	cmd := &cobra.Command{
		Use:                   "list [-o table|json|yaml]",
		Short:                 "List worker nodes",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}

			nodes := cluster.GetNodeList(cmd.Context())
			if flags.output != outputTable {
				if nodes == nil {
					nodes = []lightsched.NodeInfo{}
				}
				return writeStructured(cmd.OutOrStdout(), flags.output, nodes)
			}

			tw := newTable(cmd.OutOrStdout(), "NAME", "ADDRESS", "STATE", "PLATFORM", "CPUS", "MEMORY", "GPUS")
			for _, n := range nodes {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					n.Name, orDash(n.Address), nodeStateColor(n.State).Sprint(n.State), platformString(n.Platform),
					humanize.Ftoa(n.Resources.NumCPUs), memoryString(n.Resources.Memory), gpuString(n.Resources))
			}
			return tw.Flush()
		},
	}
	addOutputFlag(cmd, &flags.output)

	return cmd
}

func newNodeShowCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	var flags struct {
		output outputFormat
	}
	flags.output = outputJson

	cmd := &cobra.Command{
		Use:                   "show NAME [-o json|yaml]",
		Aliases:               []string{"get"},
		Short:                 "Show the details of a worker node",
		DisableFlagsInUseLine: true,
		Args:                  exactlyOneArg("node name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}

			node, err := cluster.GetNode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flags.output == outputTable {
				flags.output = outputYaml
			}
			return writeStructured(cmd.OutOrStdout(), flags.output, node)
		},
	}
	addOutputFlag(cmd, &flags.output)

	return cmd
}

func newNodeOnlineCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	return &cobra.Command{
		Use:                   "online NAME",
		Short:                 "Make a node available for scheduling",
		DisableFlagsInUseLine: true,
		Args:                  exactlyOneArg("node name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}
			return cluster.OnlineNode(cmd.Context(), args[0])
		},
	}
}

func newNodeOfflineCommand(rootFlags *rootPersistentFlags) *cobra.Command {
	var flags struct {
		kill bool
	}

	cmd := &cobra.Command{
		Use:                   "offline NAME [--kill]",
		Short:                 "Stop scheduling tasks on a node",
		Long:                  `Stop scheduling tasks on a node. Tasks already running there finish unless --kill is given.`,
		DisableFlagsInUseLine: true,
		Args:                  exactlyOneArg("node name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := rootFlags.connect(cmd.Context())
			if err != nil {
				return err
			}

			var opts []lightsched.OfflineOption
			if flags.kill {
				opts = append(opts, lightsched.WithKillTasks())
			}
			return cluster.OfflineNode(cmd.Context(), args[0], opts...)
		},
	}
	cmd.Flags().BoolVar(&flags.kill, "kill", false, "Abort the tasks running on the node")

	return cmd
}

func platformString(p lightsched.PlatformInfo) string {
	switch {
	case p.Name != "" && p.Version != "":
		return p.Name + " " + p.Version
	case p.Name != "":
		return p.Name
	}
	return orDash(p.Kind)
}

func memoryString(mi int) string {
	if mi <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(mi) * mebibyte)
}

func gpuString(r lightsched.ResourceClaim) string {
	if r.NumGPUs <= 0 {
		return "-"
	}
	if r.GPUMemory > 0 {
		return fmt.Sprintf("%d x %s", r.NumGPUs, humanize.IBytes(uint64(r.GPUMemory)*gibibyte))
	}
	return fmt.Sprint(r.NumGPUs)
}
