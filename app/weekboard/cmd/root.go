package cmd

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app is the state shared by every command of one invocation
type app struct {
	getenv func(string) string
	logger *log.Logger

	timeout   time.Duration
	pageDelay time.Duration
	delay     time.Duration // Pacing of the running job's API calls
	debug     bool
}

// NewRootCommand builds the command tree. getenv is usually os.Getenv
func NewRootCommand(getenv func(string) string, logger *log.Logger) *cobra.Command {
	a := &app{getenv: getenv, logger: logger}

	rootCmd := &cobra.Command{
		Use:   "weekboard",
		Short: "Maintain the weekly planning issues of a GitHub repository",
		Long: `Weekboard keeps a repository's 52 weekly planning issues in shape. It creates the
issues, finds the ID of a Projects (v2) board, links every issue to that board and
rewrites existing weekly issues to the current template.

Configuration is read from the environment, or from a .env file in the working directory.`,
		PersistentPreRun: a.loadDotEnv,
		SilenceUsage:     true,
		SilenceErrors:    true,
	}

	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "Per-request timeout (overrides REQUEST_TIMEOUT)")
	rootCmd.PersistentFlags().DurationVar(&a.pageDelay, "page-delay", 0, "Pause between page fetches (overrides PAGE_DELAY)")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log GraphQL traffic (overrides DEBUG)")

	rootCmd.AddCommand(
		a.newCreateIssuesCmd(),
		a.newDiscoverProjectCmd(),
		a.newLinkIssuesCmd(),
		a.newRetitleIssuesCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func Execute() error {
	return NewRootCommand(os.Getenv, log.Default()).Execute()
}

func (a *app) loadDotEnv(_ *cobra.Command, _ []string) {
	// Variables already set in the environment take precedence over .env
	err := godotenv.Load()
	if err != nil {
		a.logger.Println("No .env file found, using environment variables")
	}
}
