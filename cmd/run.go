package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen-cli/internal/export"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/profile"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Research companies and draft an email for each",
	Long: "Searches for companies matching the criteria, extracts their contact data, " +
		"writes a personalized email per company and stores every valid lead. " +
		"Requires a saved profile (see `leadgen profile set`).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		criteria, err := criteriaFromFlags(cmd)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		skip, _ := cmd.Flags().GetBool("skip-existing")
		result, runErr := env.Run(ctx, criteria, skip)
		if errors.Is(runErr, profile.ErrNoProfile) {
			return eris.Wrap(runErr, "run: save a profile first with `leadgen profile set`")
		}
		if result == nil {
			return eris.Wrap(runErr, "run")
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := export.WriteRun(path, result); err != nil {
				return err
			}
			zap.L().Info("run: workbook written", zap.String("path", path))
		}

		if err := printJSON(result); err != nil {
			return err
		}

		zap.L().Info("run complete",
			zap.String("run_id", result.RunID),
			zap.Int("researched", result.Researched),
			zap.Int("succeeded", result.Succeeded()),
			zap.Int("skipped", result.Skipped),
		)
		return runErr
	},
}

// loadCriteria reads search criteria from a YAML (or JSON) file.
func loadCriteria(path string) (model.SearchCriteria, error) {
	var c model.SearchCriteria
	data, err := os.ReadFile(path)
	if err != nil {
		return c, eris.Wrapf(err, "read criteria %s", path)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, eris.Wrapf(err, "parse criteria %s", path)
	}
	return c, nil
}

// validateCriteria requires an industry and province unless company URLs
// are given.
func validateCriteria(c model.SearchCriteria) error {
	if len(c.CompanyURLs) > 0 {
		if len(c.CompanyURLs) > model.MaxCompanyURLs {
			return eris.Errorf("at most %d company URLs are accepted, got %d", model.MaxCompanyURLs, len(c.CompanyURLs))
		}
		return nil
	}
	var missing []string
	if strings.TrimSpace(c.Industry) == "" {
		missing = append(missing, "industry")
	}
	if strings.TrimSpace(c.Province) == "" {
		missing = append(missing, "province")
	}
	if len(missing) > 0 {
		return eris.Errorf("criteria: %s required", strings.Join(missing, " and "))
	}
	return nil
}

// criteriaFromFlags merges the --criteria file with the individual flags;
// flags win.
func criteriaFromFlags(cmd *cobra.Command) (model.SearchCriteria, error) {
	var c model.SearchCriteria
	if path, _ := cmd.Flags().GetString("criteria"); path != "" {
		loaded, err := loadCriteria(path)
		if err != nil {
			return c, err
		}
		c = loaded
	}

	set := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	set("industry", &c.Industry)
	set("province", &c.Province)
	set("company-name", &c.CompanyName)
	set("company-size", &c.CompanySize)
	set("needs", &c.Needs)
	if cmd.Flags().Changed("keywords") {
		kw, _ := cmd.Flags().GetString("keywords")
		c.Keywords = model.SplitList(kw)
	}
	if cmd.Flags().Changed("technologies") {
		tech, _ := cmd.Flags().GetString("technologies")
		c.Technologies = model.SplitList(tech)
	}

	if urls, _ := cmd.Flags().GetStringSlice("urls"); len(urls) > 0 {
		c.CompanyURLs = urls
	}
	if path, _ := cmd.Flags().GetString("urls-file"); path != "" {
		urls, err := export.ReadColumn(path, "", 0)
		if err != nil {
			return c, err
		}
		c.CompanyURLs = append(c.CompanyURLs, urls...)
	}

	if err := validateCriteria(c); err != nil {
		return c, err
	}
	return c, nil
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("criteria", "", "YAML file with search criteria")
	f.String("industry", "", "target industry")
	f.String("province", "", "target province")
	f.String("keywords", "", "comma separated search keywords")
	f.String("company-name", "", "look for a specific company")
	f.String("company-size", "", "company size filter")
	f.String("technologies", "", "comma separated technologies used by the target")
	f.String("needs", "", "needs the target company has")
	f.StringSlice("urls", nil, fmt.Sprintf("company pages to research directly instead of searching (max %d)", model.MaxCompanyURLs))
	f.String("urls-file", "", "xlsx workbook whose first column lists company pages")
	f.Bool("skip-existing", false, "skip companies already stored as leads")
	f.String("xlsx", "", "also write the run to this xlsx workbook")
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
