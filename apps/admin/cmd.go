package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/heroesdelapatria/portal/core"
	"github.com/heroesdelapatria/portal/core/recommend"
)

var (
	nowFunc = time.Now // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	svc        recommend.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
	client     *http.Client
	apiURL     string // running API, for live stats
	out        io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	var (
		categoryFlag  string
		limitFlag     int
		algorithmFlag string
		apiFlag       string
	)

	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "portal-ml: recommendation service administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the learning resources catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.catalog(categoryFlag)
		},
	}
	catalogCmd.Flags().StringVarP(&categoryFlag, "category", "c", "", "Only list items of this category")

	recommendCmd := &cobra.Command{
		Use:   "recommend USER_ID",
		Short: "Compute recommendations for a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.recommend(recommend.RecommendRequest{
				UserID: args[0],
				Options: recommend.Options{
					Limit:     limitFlag,
					Algorithm: algorithmFlag,
					Category:  categoryFlag,
				},
			})
		},
	}
	recommendCmd.Flags().IntVarP(&limitFlag, "limit", "l", 0, "Maximum number of recommendations")
	recommendCmd.Flags().StringVarP(&algorithmFlag, "algorithm", "a", "", "hybrid, collaborative or content-based")
	recommendCmd.Flags().StringVarP(&categoryFlag, "category", "c", "", "Only recommend items of this category")

	profileCmd := &cobra.Command{
		Use:   "profile USER_ID",
		Short: "Show a student's profile (synthesized when not stored)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.profile(args[0])
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the statistics of a running API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := cli.apiURL
			if apiFlag != "" {
				url = apiFlag
			}
			return cli.stats(url)
		},
	}
	statsCmd.Flags().StringVar(&apiFlag, "api", "", "Base URL of the API (default from config)")

	rootCmd.AddCommand(catalogCmd, recommendCmd, profileCmd, statsCmd)
	rootCmd.SetOut(cli.out)
	rootCmd.SetErr(cli.out)
	return rootCmd
}

// run executes the command line; args include the program name.
func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		_ = cli.rootCmd().Help()
		return errHelp
	}
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	return root.Execute()
}

func (cli *commandLine) catalog(category string) error {
	items := recommend.Catalog
	if category = strings.TrimSpace(category); category != "" {
		items = recommend.CatalogByCategory(category)
		if len(items) == 0 {
			return fmt.Errorf("unknown category %q (want one of: %s)", category, strings.Join(recommend.Categories(), ", "))
		}
	}
	return cli.print(items)
}

func (cli *commandLine) recommend(req recommend.RecommendRequest) error {
	if err := req.Validate(cli.validate); err != nil {
		return cli.invalid("invalid recommendation request", err)
	}
	res, err := cli.svc.Recommend(req)
	if err != nil {
		return err
	}
	return cli.print(res)
}

func (cli *commandLine) profile(userID string) error {
	prof, err := cli.svc.GetProfile(userID)
	if errors.Cause(err) == recommend.ErrProfileNotFound {
		prof, err = recommend.SynthesizeProfile(core.CleanString(userID), nowFunc().UTC())
	}
	if err != nil {
		return err
	}
	return cli.print(prof)
}

func (cli *commandLine) stats(apiURL string) error {
	if apiURL == "" {
		return errors.New("no API url: set --api")
	}
	resp, err := cli.client.Get(strings.TrimRight(apiURL, "/") + "/stats")
	if err != nil {
		return errors.Wrap(err, "requesting stats")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("requesting stats: unexpected status %d", resp.StatusCode)
	}
	var stats recommend.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return errors.Wrap(err, "decoding stats")
	}
	return cli.print(stats)
}

// invalid formats validation errors one field per line.
func (cli *commandLine) invalid(msg string, err error) error {
	flds := core.FieldErrors(err, cli.translator)
	if len(flds) == 0 {
		return errors.Wrap(err, msg)
	}
	lines := make([]string, 0, len(flds))
	for _, fld := range flds {
		lines = append(lines, fmt.Sprintf("  %s: %s", fld.Field, fld.Error))
	}
	return core.NewValidationError("", errors.Errorf("%s:\n%s", msg, strings.Join(lines, "\n")), flds...)
}

func (cli *commandLine) print(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cli.out, string(data))
	return err
}
