package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Show the predefined settings profiles",
	Long: `Lists the fast, balanced and conservative profiles. Select one with
export --profile, EXPORTER_PROFILE or "profile" in the config file; any
individual setting can still be overridden.`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PROFILE", "RETRIES", "DELAY", "REQ/S", "TIMEOUTS", "PAGE SIZES", "WORKERS")
	for _, p := range settings.Profiles() {
		c := p.Config
		t.Row(
			string(p.Profile),
			fmt.Sprint(c.Retry.MaxRetries),
			fmt.Sprintf("%s-%s", c.Retry.InitialDelay, c.Retry.MaxDelay),
			fmt.Sprintf("%g", c.RateLimit.RequestsPerSecond),
			fmt.Sprintf("%s/%s", c.Timeout.Connect, c.Timeout.Read),
			fmt.Sprintf("%d/%d", c.Batch.ConfluencePageSize, c.Batch.JiraPageSize),
			fmt.Sprint(c.Batch.Workers),
		)
	}
	cmd.Println(t.Render())

	for _, p := range settings.Profiles() {
		cmd.Printf("%-13s %s\n", p.Profile, p.Description)
	}
	return nil
}
