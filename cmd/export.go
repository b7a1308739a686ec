package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write verified leads to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.VerifiedLeads(ctx)
		if err != nil {
			return err
		}

		file := xlsx.NewFile()
		sheet, err := file.AddSheet("Verified Leads")
		if err != nil {
			return eris.Wrap(err, "export: add sheet")
		}

		header := sheet.AddRow()
		for _, col := range []string{"Email", "Founder", "Domain", "Product", "Niche"} {
			header.AddCell().Value = col
		}
		for _, l := range leads {
			row := sheet.AddRow()
			row.AddCell().Value = l.Email
			row.AddCell().Value = l.FounderName
			row.AddCell().Value = l.Domain
			row.AddCell().Value = l.Product
			row.AddCell().Value = l.Niche
		}

		if err := file.Save(exportOut); err != nil {
			return eris.Wrapf(err, "export: save %s", exportOut)
		}
		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("leads", len(leads)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "leads.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
