package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/accessbot/internal/approval"
	"github.com/dwizi/accessbot/internal/config"
	"github.com/dwizi/accessbot/internal/store"
)

func newAuditCommand() *cobra.Command {
	var (
		input   store.ListAuditRecordsInput
		asJSON  bool
		dbPath  string
		timeout int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List archived approval decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.Decision != "" {
				decision, err := approval.ParseDecision(input.Decision)
				if err != nil {
					return err
				}
				input.Decision = string(decision)
			}
			path := dbPath
			if path == "" {
				path = config.FromEnv().DBPath
			}
			sqlStore, err := store.New(path)
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeout))
			defer cancel()
			if err := sqlStore.AutoMigrate(ctx); err != nil {
				return err
			}
			records, err := sqlStore.ListAuditRecords(ctx, input)
			if err != nil {
				return err
			}
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(records)
			}
			printAuditRecords(cmd.OutOrStdout(), newTheme(), records)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.SessionID, "session", "", "only decisions from this session")
	cmd.Flags().StringVar(&input.RequestID, "request", "", "only decisions for this request id")
	cmd.Flags().StringVar(&input.Decision, "decision", "", "approve or reject")
	cmd.Flags().IntVar(&input.Limit, "limit", 50, "max records to print")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	cmd.Flags().StringVar(&dbPath, "db", "", "audit database path (defaults to ACCESSBOT_DB_PATH)")
	cmd.Flags().IntVar(&timeout, "timeout-sec", 10, "query timeout in seconds")
	return cmd
}

func printAuditRecords(out io.Writer, t theme, records []store.AuditRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, t.subtle.Render("No audit records."))
		return
	}
	for _, record := range records {
		decision := t.success.Render(record.Decision)
		if record.Decision == "reject" {
			decision = t.danger.Render(record.Decision)
		}
		fmt.Fprintf(out, "%s  %s  %s %s for %s by %s  %s\n",
			t.cardValue.Render(record.AuditID),
			t.subtle.Render(record.DecidedAt.UTC().Format(time.RFC3339)),
			decision,
			record.RequestID,
			record.Username,
			orUnknown(record.Actor),
			t.subtle.Render(record.SessionID),
		)
	}
}
