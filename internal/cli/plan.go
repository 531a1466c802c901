package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/virtplan/internal/plan"
)

// NewPlanCommand creates the `plan` command group.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage the resource plan catalog",
	}

	cmd.AddCommand(newPlanListCommand(rootOpts))
	cmd.AddCommand(newPlanShowCommand(rootOpts))
	cmd.AddCommand(newPlanCreateCommand(rootOpts))
	cmd.AddCommand(newPlanUpdateCommand(rootOpts))
	cmd.AddCommand(newPlanUnsetKeyCommand(rootOpts))
	cmd.AddCommand(newPlanDeleteCommand(rootOpts))

	return cmd
}

func newPlanListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all plan names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.PlanStore()
			if err != nil {
				return err
			}
			names, err := store.List()
			if err != nil {
				return wrapStoreError(err)
			}

			var sb strings.Builder
			for _, name := range names {
				sb.WriteString(name)
				sb.WriteByte('\n')
			}
			return rootOpts.formatter(cmd).Emit(names, sb.String())
		},
	}
}

func newPlanShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a plan's constants as KEY=VALUE lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.PlanStore()
			if err != nil {
				return err
			}
			p, err := store.Get(args[0])
			if err != nil {
				return wrapStoreError(err)
			}

			var sb strings.Builder
			for _, k := range p.Keys() {
				fmt.Fprintf(&sb, "%s=%s\n", k, p[k])
			}
			return rootOpts.formatter(cmd).Emit(p, sb.String())
		},
	}
}

func newPlanCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME [KEY=VALUE ...]",
		Short: "Create a plan, or merge constants into an existing one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			constants, err := parseConstants(args[1:])
			if err != nil {
				return err
			}
			store, err := rootOpts.PlanStore()
			if err != nil {
				return err
			}
			if err := store.Create(args[0], constants); err != nil {
				return wrapStoreError(err)
			}
			return nil
		},
	}
}

func newPlanUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update NAME [KEY=VALUE | KEY ...]",
		Short: "Set or remove constants on a plan",
		Long: `Set or remove constants on a plan, creating the plan if it does
not exist. KEY=VALUE sets a constant; a bare KEY removes it. Removing a
constant that is not present fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseChanges(args[1:])
			if err != nil {
				return err
			}
			store, err := rootOpts.PlanStore()
			if err != nil {
				return err
			}
			if err := store.Update(args[0], changes); err != nil {
				return wrapStoreError(err)
			}
			return nil
		},
	}
}

func newPlanUnsetKeyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unset-key NAME KEY [KEY ...]",
		Short: "Remove constants from a plan",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.PlanStore()
			if err != nil {
				return err
			}
			if err := store.UnsetKeys(args[0], args[1:]); err != nil {
				return wrapStoreError(err)
			}
			return nil
		},
	}
}

func newPlanDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a plan from the catalog",
		Long: `Delete a plan from the catalog. Domains still referencing the
plan keep their (now stale) assignment; resolving it later reports the
plan as no longer defined.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.PlanStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return wrapStoreError(err)
			}
			return nil
		},
	}
}

// parseConstants turns KEY=VALUE arguments into a plan.
func parseConstants(args []string) (plan.Plan, error) {
	constants := plan.Plan{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("expected KEY=VALUE, got %q", arg))
		}
		constants[k] = v
	}
	return constants, nil
}

// parseChanges turns update arguments into a change set: KEY=VALUE sets,
// a bare KEY marks the key for removal.
func parseChanges(args []string) (map[string]*string, error) {
	changes := map[string]*string{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if k == "" {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("expected KEY=VALUE or KEY, got %q", arg))
		}
		if ok {
			val := v
			changes[k] = &val
		} else {
			changes[k] = nil
		}
	}
	return changes, nil
}

// wrapStoreError maps store failures to an operation-failure exit code.
// The sentinel stays in the chain for errors.Is at the call sites.
func wrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	return WrapExitError(ExitFailure, "plan store", err)
}
