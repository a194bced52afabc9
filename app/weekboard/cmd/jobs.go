package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ktaey129/weekboard/internal/config"
	"github.com/ktaey129/weekboard/internal/github"
	"github.com/ktaey129/weekboard/internal/jobs"
	"github.com/ktaey129/weekboard/internal/weekly"
)

func (a *app) newCreateIssuesCmd() *cobra.Command {
	var roadmap string

	cmd := &cobra.Command{
		Use:   "create-issues",
		Short: "Create the 52 weekly planning issues",
		Long: `Creates "Week 01" through "Week 52" in OWNER/REPO, each with the weekly checklist body.
Existing issues are not checked: running this twice creates every week twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runJob(cmd, config.JobCreateIssues, func(cfg config.Config, client *github.Client, rt jobs.Runtime) jobs.Job {
				return &jobs.CreateWeeklyIssues{
					Issues:  client,
					Roadmap: roadmap,
					Delay:   cfg.CreateDelay,
					Runtime: rt,
				}
			})
		},
	}

	cmd.Flags().DurationVar(&a.delay, "delay", 0, "Pause between issue creations (overrides CREATE_DELAY)")
	cmd.Flags().StringVar(&roadmap, "roadmap", weekly.CreateRoadmap, "Roadmap name shown in each issue body")
	return cmd
}

func (a *app) newDiscoverProjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover-project",
		Short: "List the Projects (v2) boards of OWNER",
		Long: `Lists the title, ID and number of every Projects (v2) board owned by OWNER, first as a user
and then as an organization. Copy the ID into PROJECT_ID for link-issues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runJob(cmd, config.JobDiscoverProject, func(cfg config.Config, client *github.Client, rt jobs.Runtime) jobs.Job {
				return &jobs.DiscoverProjectID{
					Projects: client,
					Owner:    cfg.Owner,
					Runtime:  rt,
				}
			})
		},
	}
}

func (a *app) newLinkIssuesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link-issues",
		Short: "Add every issue of OWNER/REPO to the PROJECT_ID board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runJob(cmd, config.JobLinkIssues, func(cfg config.Config, client *github.Client, rt jobs.Runtime) jobs.Job {
				return &jobs.LinkIssuesToProject{
					Issues:     client,
					Projects:   client,
					ProjectID:  cfg.ProjectID,
					Repository: cfg.Owner + "/" + cfg.Repo,
					Delay:      cfg.LinkDelay,
					Runtime:    rt,
				}
			})
		},
	}

	cmd.Flags().DurationVar(&a.delay, "delay", 0, "Pause between project additions (overrides LINK_DELAY)")
	return cmd
}

func (a *app) newRetitleIssuesCmd() *cobra.Command {
	var roadmap string

	cmd := &cobra.Command{
		Use:   "retitle-issues",
		Short: "Rewrite existing weekly issues to the current title and body",
		Long: `Rewrites every issue titled exactly "Week NN" with the current title format and a fresh
checklist body. Other issues are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runJob(cmd, config.JobRetitleIssues, func(cfg config.Config, client *github.Client, rt jobs.Runtime) jobs.Job {
				return &jobs.RetitleWeeklyIssues{
					Issues:     client,
					Roadmap:    roadmap,
					Repository: cfg.Owner + "/" + cfg.Repo,
					Delay:      cfg.UpdateDelay,
					Runtime:    rt,
				}
			})
		},
	}

	cmd.Flags().DurationVar(&a.delay, "delay", 0, "Pause between issue updates (overrides UPDATE_DELAY)")
	cmd.Flags().StringVar(&roadmap, "roadmap", weekly.RetitleRoadmap, "Roadmap name shown in each issue body")
	return cmd
}
