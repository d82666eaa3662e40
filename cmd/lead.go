package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/export"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Look up stored leads",
}

// -- lead find --

var leadFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Print the lead stored for a company and province",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		key := leadKeyFromFlags(cmd)
		lead, err := st.Find(ctx, key)
		if err != nil {
			return eris.Wrap(err, "lead find")
		}
		if lead == nil {
			fmt.Fprintf(os.Stderr, "No lead found for %s.\n", key)
			return nil
		}
		return printJSON(lead)
	},
}

// -- lead exists --

var leadExistsCmd = &cobra.Command{
	Use:   "exists",
	Short: "Report whether a lead is stored",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ok, err := st.Exists(ctx, leadKeyFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "lead exists")
		}
		fmt.Fprintln(os.Stdout, ok)
		return nil
	},
}

// -- lead list --

var leadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		province, _ := cmd.Flags().GetString("province")
		industry, _ := cmd.Flags().GetString("industry")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		leads, err := st.List(ctx, store.LeadFilter{
			Province: province,
			Industry: industry,
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			return eris.Wrap(err, "lead list")
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			return export.WriteLeads(path, leads)
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}
		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

func leadKeyFromFlags(cmd *cobra.Command) model.LeadKey {
	company, _ := cmd.Flags().GetString("company")
	province, _ := cmd.Flags().GetString("province")
	return model.LeadKey{CompanyName: company, Province: province}
}

// formatLeadsList writes a tabular list of leads to out.
func formatLeadsList(out io.Writer, leads []model.CompanyData) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY\tPROVINCE\tINDUSTRY\tEMAIL\tWEBSITE")
	_, _ = fmt.Fprintln(w, "-------\t--------\t--------\t-----\t-------")
	for _, c := range leads {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncate(c.CompanyName, 30),
			c.Province,
			truncate(c.Industry, 20),
			model.StringOr(c.Email, "-"),
			model.StringOr(c.Website, "-"),
		)
	}
	_ = w.Flush()
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	for _, c := range []*cobra.Command{leadFindCmd, leadExistsCmd} {
		c.Flags().String("company", "", "company name")
		c.Flags().String("province", "", "province")
		_ = c.MarkFlagRequired("company")
		_ = c.MarkFlagRequired("province")
	}

	leadListCmd.Flags().String("province", "", "filter by province")
	leadListCmd.Flags().String("industry", "", "filter by industry")
	leadListCmd.Flags().Int("limit", 100, "max number of leads to list")
	leadListCmd.Flags().Int("offset", 0, "number of leads to skip")
	leadListCmd.Flags().String("xlsx", "", "write the leads to this xlsx workbook instead of printing")

	leadCmd.AddCommand(leadFindCmd)
	leadCmd.AddCommand(leadExistsCmd)
	leadCmd.AddCommand(leadListCmd)
	rootCmd.AddCommand(leadCmd)
}
