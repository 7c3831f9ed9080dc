package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check connectivity and credentials for each upstream",
	Long: `Makes one authenticated call to every configured upstream and reports
whether it is reachable and accepts the credentials.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	statuses := rt.exporter.Validate(cmd.Context())
	if len(statuses) == 0 {
		return fmt.Errorf("%w: set CONFLUENCE_URL and/or JIRA_URL", domain.ErrInvalidInput)
	}

	failed := 0
	for _, s := range statuses {
		if s.OK() {
			cmd.Printf("%-10s ok     %s\n", s.Kind.Title(), s.URL)
			continue
		}
		failed++
		cmd.Printf("%-10s error  %s: %v\n", s.Kind.Title(), s.URL, s.Err)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d upstreams failed", domain.ErrConnectorValidation, failed, len(statuses))
	}
	return nil
}
