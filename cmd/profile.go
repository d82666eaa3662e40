package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the salesperson profile used in emails",
}

// -- profile set --

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Validate and save the profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("profile"); err != nil {
			return err
		}
		repo, err := initProfiles()
		if err != nil {
			return err
		}

		saved, err := repo.Save(profileFromFlags(cmd))
		if err != nil {
			return err
		}
		return printJSON(saved)
	},
}

// -- profile show --

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("profile"); err != nil {
			return err
		}
		repo, err := initProfiles()
		if err != nil {
			return err
		}

		p, err := repo.Load()
		if errors.Is(err, profile.ErrNoProfile) {
			fmt.Fprintf(os.Stderr, "No profile saved at %s.\n", repo.Path())
			return nil
		}
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

func initProfiles() (*profile.Repository, error) {
	v, err := initValidator()
	if err != nil {
		return nil, err
	}
	return profile.NewRepository(cfg.Output.Dir, v), nil
}

// profileFromFlags builds a profile from the set flags. Blank optional
// values stay nil.
func profileFromFlags(cmd *cobra.Command) model.UserProfile {
	str := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}
	opt := func(name string) *string {
		if v := str(name); v != "" {
			return &v
		}
		return nil
	}
	return model.UserProfile{
		Name:           str("name"),
		Role:           str("role"),
		CompanyName:    opt("company"),
		Website:        opt("website"),
		Phone:          opt("phone"),
		Email:          str("email"),
		Keywords:       model.SplitList(str("keywords")),
		Summary:        opt("summary"),
		Interests:      model.SplitList(str("interests")),
		ParsingSuccess: true,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(v), "encode output")
}

func init() {
	f := profileSetCmd.Flags()
	f.String("name", "", "your name")
	f.String("role", "", "your role")
	f.String("company", "", "your company")
	f.String("website", "", "your company website")
	f.String("phone", "", "contact phone")
	f.String("email", "", "contact email")
	f.String("keywords", "", "comma separated keywords describing your offer")
	f.String("summary", "", "short description of what you sell")
	f.String("interests", "", "comma separated interests")
	_ = profileSetCmd.MarkFlagRequired("name")
	_ = profileSetCmd.MarkFlagRequired("role")
	_ = profileSetCmd.MarkFlagRequired("email")

	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}
