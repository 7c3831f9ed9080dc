package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var checkpointsPurgeOlderThan time.Duration

var checkpointsCmd = &cobra.Command{
	Use:     "checkpoints",
	Aliases: []string{"cp"},
	Short:   "Manage saved export runs",
	Long: `List, inspect and clean up the checkpoints written by export.

Run ids may be abbreviated to any unique prefix.`,
	RunE: runCheckpointsList,
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointsList,
}

var checkpointsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run's checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointsShow,
}

var checkpointsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete runs older than the retention window",
	Long: `Deletes runs not updated within --older-than (default: checkpoint.retention
from the config, 7 days unless changed). Runs locked by a live export are kept.`,
	Args: cobra.NoArgs,
	RunE: runCheckpointsPurge,
}

var checkpointsUnlockCmd = &cobra.Command{
	Use:   "unlock <run-id>",
	Short: "Release the lock left by a crashed export",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointsUnlock,
}

var checkpointsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a single run",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointsDelete,
}

func init() {
	checkpointsPurgeCmd.Flags().DurationVar(&checkpointsPurgeOlderThan, "older-than", 0,
		"age threshold, e.g. 72h")
	checkpointsCmd.AddCommand(checkpointsListCmd)
	checkpointsCmd.AddCommand(checkpointsShowCmd)
	checkpointsCmd.AddCommand(checkpointsPurgeCmd)
	checkpointsCmd.AddCommand(checkpointsUnlockCmd)
	checkpointsCmd.AddCommand(checkpointsDeleteCmd)
	rootCmd.AddCommand(checkpointsCmd)
}

func runCheckpointsList(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	runs, err := rt.checkpoints.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("No saved runs.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "LABEL", "PHASE", "DONE", "FAILED", "PENDING", "LOCKED", "UPDATED")
	for _, r := range runs {
		locked := ""
		if r.Locked {
			locked = "yes"
		}
		t.Row(
			r.RunID,
			r.Label,
			string(r.Phase),
			fmt.Sprint(r.Succeeded+r.Skipped),
			fmt.Sprint(r.Failed),
			fmt.Sprint(r.Pending),
			locked,
			r.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	cmd.Println(t.Render())
	return nil
}

func runCheckpointsShow(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	cp, err := rt.checkpoints.Show(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func runCheckpointsPurge(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	olderThan := rt.cfg.Checkpoint.Retention
	if cmd.Flags().Changed("older-than") {
		olderThan = checkpointsPurgeOlderThan
	}
	n, err := rt.checkpoints.Purge(cmd.Context(), olderThan)
	if err != nil {
		return err
	}
	cmd.Printf("Purged %d runs older than %s.\n", n, olderThan)
	return nil
}

func runCheckpointsUnlock(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.checkpoints.Unlock(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Unlocked %s.\n", args[0])
	return nil
}

func runCheckpointsDelete(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.checkpoints.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Deleted %s.\n", args[0])
	return nil
}
