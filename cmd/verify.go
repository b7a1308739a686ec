package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/lead"
	"github.com/sells-group/leadforge/internal/pipeline"
	"github.com/sells-group/leadforge/internal/smtpprobe"
	"github.com/sells-group/leadforge/pkg/anthropic"
	"github.com/sells-group/leadforge/pkg/google"
)

var verifyLimit int

// verifyCmd re-drives the verifier over addresses a previous run left
// pending (crash mid-flight, or a bulk import).
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-verify pending email addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("verify"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pending, err := st.PendingEmails(ctx, verifyLimit)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			zap.L().Info("no pending emails")
			return nil
		}

		p := pipeline.New(st, google.NewClient(), smtpprobe.New(),
			anthropic.NewClient(cfg.Anthropic.Key),
			pipeline.Options{Model: cfg.Anthropic.Model})
		p.Start(ctx)

		candidates := make([]lead.Candidate, 0, len(pending))
		for _, e := range pending {
			candidates = append(candidates, lead.Candidate{
				FounderName: e.FounderName,
				Domain:      e.Domain,
				Email:       e.Address,
			})
		}
		p.SeedCandidates(candidates)

		quiesceCtx, cancel := context.WithTimeout(ctx, 2*time.Hour)
		defer cancel()
		if err := p.Quiesce(quiesceCtx); err != nil {
			return err
		}
		zap.L().Info("re-verification complete", zap.Int("emails", len(pending)))
		return nil
	},
}

func init() {
	verifyCmd.Flags().IntVar(&verifyLimit, "limit", 14000, "maximum pending addresses to verify")
	rootCmd.AddCommand(verifyCmd)
}
