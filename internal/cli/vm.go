package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/virtplan/internal/history"
	"github.com/roach88/virtplan/internal/plan"
	"github.com/roach88/virtplan/internal/virt"
)

// NewVMCommand creates the `vm` command group.
func NewVMCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vm",
		Short: "Manage plan assignments on libvirt domains",
	}

	cmd.AddCommand(newVMSetCommand(rootOpts))
	cmd.AddCommand(newVMGetCommand(rootOpts))
	cmd.AddCommand(newVMClearCommand(rootOpts))
	cmd.AddCommand(newVMHistoryCommand(rootOpts))

	return cmd
}

func newVMSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set DOMAIN [PLAN]",
		Short: "Assign a plan to a domain",
		Long: `Assign a plan to a domain by writing the plan fragment into the
domain's metadata. With no PLAN argument the configured default plan is
assigned. Re-assigning overwrites the previous assignment.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.Config()
			if err != nil {
				return err
			}

			domainName := args[0]
			planName := cfg.DefaultPlan
			if len(args) == 2 {
				planName = args[1]
			}
			planName = plan.NormalizeName(planName)

			store, err := rootOpts.PlanStore()
			if err != nil {
				return err
			}
			constants, err := store.Get(planName)
			if err != nil {
				return wrapStoreError(err)
			}

			codec, err := rootOpts.Codec()
			if err != nil {
				return err
			}
			fragment, err := codec.Encode(planName, constants)
			if err != nil {
				return WrapExitError(ExitFailure, "encode plan fragment", err)
			}

			dom, closeConn, err := lookupDomain(rootOpts, domainName)
			if err != nil {
				return err
			}
			defer closeConn()

			if err := dom.SetMetadata(fragment, codec.Key, codec.Namespace); err != nil {
				return WrapExitError(ExitFailure, "assign plan", err)
			}

			recordAssignment(cmd, rootOpts, domainName, planName, history.ActionSet)
			slog.Debug("plan assigned", "domain", domainName, "plan", planName)
			return nil
		},
	}
}

func newVMGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get DOMAIN",
		Short: "Print the plan assigned to a domain",
		Long: `Print the plan assigned to a domain. Exits with status 3 when the
domain has no plan assigned (no metadata, or a fragment without a plan
name).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := rootOpts.Codec()
			if err != nil {
				return err
			}

			dom, closeConn, err := lookupDomain(rootOpts, args[0])
			if err != nil {
				return err
			}
			defer closeConn()

			fragment, err := dom.Metadata(codec.Namespace)
			if err != nil && !errors.Is(err, virt.ErrMetadataAbsent) {
				return WrapExitError(ExitFailure, "read domain metadata", err)
			}

			// Absent and malformed metadata both mean "no plan";
			// never-configured domains are the steady state here.
			planName, ok := codec.Decode(fragment)
			if !ok {
				return NewExitError(ExitNoAssignment,
					fmt.Sprintf("no plan assigned to domain %q", args[0]))
			}

			// A stale reference (plan deleted after assignment) is
			// still reported; the name alone is the assignment.
			if store, serr := rootOpts.PlanStore(); serr == nil {
				if _, gerr := store.Get(planName); errors.Is(gerr, plan.ErrPlanNotFound) {
					slog.Warn("assigned plan no longer defined in store", "plan", planName)
				}
			}

			return rootOpts.formatter(cmd).Emit(planName, planName+"\n")
		},
	}
}

func newVMClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear DOMAIN",
		Short: "Remove the plan assignment from a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := rootOpts.Codec()
			if err != nil {
				return err
			}

			dom, closeConn, err := lookupDomain(rootOpts, args[0])
			if err != nil {
				return err
			}
			defer closeConn()

			if err := dom.SetMetadata(codec.Clear(), codec.Key, codec.Namespace); err != nil {
				return WrapExitError(ExitFailure, "clear plan assignment", err)
			}

			recordAssignment(cmd, rootOpts, args[0], "", history.ActionClear)
			slog.Debug("plan assignment cleared", "domain", args[0])
			return nil
		},
	}
}

func newVMHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history DOMAIN",
		Short: "Print the assignment journal for a domain, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.Config()
			if err != nil {
				return err
			}

			journal, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return WrapExitError(ExitFailure, "open assignment journal", err)
			}
			defer journal.Close()

			events, err := journal.ByDomain(cmd.Context(), args[0], limit)
			if err != nil {
				return WrapExitError(ExitFailure, "read assignment journal", err)
			}

			var sb strings.Builder
			for _, ev := range events {
				if ev.Action == history.ActionSet {
					fmt.Fprintf(&sb, "%s  set    %s\n", ev.RecordedAt.Format("2006-01-02 15:04:05"), ev.Plan)
				} else {
					fmt.Fprintf(&sb, "%s  clear\n", ev.RecordedAt.Format("2006-01-02 15:04:05"))
				}
			}
			return rootOpts.formatter(cmd).Emit(events, sb.String())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries (0 = all)")
	return cmd
}

// lookupDomain connects to the hypervisor and resolves the domain. The
// returned func closes the connection.
func lookupDomain(rootOpts *RootOptions, name string) (virt.Domain, func(), error) {
	conn, err := rootOpts.Connect()
	if err != nil {
		return nil, nil, err
	}

	dom, err := conn.LookupDomainByName(name)
	if err != nil {
		conn.Close()
		return nil, nil, WrapExitError(ExitFailure, "look up domain", err)
	}

	closeConn := func() {
		if err := conn.Close(); err != nil {
			slog.Warn("closing hypervisor connection", "error", err)
		}
	}
	return dom, closeConn, nil
}

// recordAssignment appends to the journal. Journal failures are logged,
// not fatal: the domain metadata already holds the authoritative state.
func recordAssignment(cmd *cobra.Command, rootOpts *RootOptions, domain, planName, action string) {
	cfg, err := rootOpts.Config()
	if err != nil {
		return
	}

	journal, err := history.Open(cfg.HistoryDB)
	if err != nil {
		slog.Warn("assignment journal unavailable", "error", err)
		return
	}
	defer journal.Close()

	if err := journal.Record(cmd.Context(), domain, planName, action); err != nil {
		slog.Warn("recording assignment failed", "error", err)
	}
}
