package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nine3/versions/internal/config"
	"github.com/nine3/versions/internal/database"
	"github.com/nine3/versions/internal/modules/versions"
	"github.com/nine3/versions/internal/modules/versions/actions"
	"github.com/nine3/versions/internal/pkg/jwt"
	"github.com/spf13/cobra"
)

func parsePageID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid page id %q", raw)
	}
	return id, nil
}

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database and bring the page tables up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := database.EnsureSchema(cfg, opts.logger()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newTreeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [page-id]",
		Short: "Print a page tree, or the whole site without an id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			var roots []*versions.Node
			if len(args) == 0 {
				roots, err = s.services.Tree.Site(ctx)
				if err != nil {
					return err
				}
			} else {
				id, err := parsePageID(args[0])
				if err != nil {
					return err
				}
				root, err := s.services.Tree.Hierarchy(ctx, id)
				if err != nil {
					return err
				}
				if root == nil {
					return fmt.Errorf("page %d not found", id)
				}
				roots = []*versions.Node{root}
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Title", "Status", "Link"})
			var walk func(n *versions.Node, depth int)
			walk = func(n *versions.Node, depth int) {
				link, err := s.services.Linker.Permalink(ctx, n.ID)
				if err != nil {
					link = "-"
				}
				t.AppendRow(table.Row{n.ID, strings.Repeat("  ", depth) + n.Title, n.Status, link})
				for _, child := range n.Children {
					walk(child, depth+1)
				}
			}
			for _, root := range roots {
				walk(root, 0)
			}
			t.Render()
			return nil
		},
	}
}

func newCloneCmd(opts *globalOptions) *cobra.Command {
	var (
		title  string
		parent int64
	)
	cmd := &cobra.Command{
		Use:   "clone <page-id>",
		Short: "Copy a page and its whole subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			progress := actions.CloneProgress{}
			if title != "" {
				progress.Title = &title
			}
			if cmd.Flags().Changed("parent") {
				progress.Parent = &parent
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Source", "Copy"})
			for {
				step, affected, err := s.services.Engine.CloneTreeStep(ctx, id, progress)
				if err != nil {
					return err
				}
				s.settle(ctx, affected)
				if step.Complete {
					t.AppendFooter(table.Row{"", step.Message()})
					break
				}
				progress = step.Progress
			}
			for source, copied := range progress.Added {
				t.AppendRow(table.Row{source, copied})
			}
			t.SortBy([]table.SortBy{{Name: "Source", Mode: table.AscNumeric}})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title of the copied root page")
	cmd.Flags().Int64Var(&parent, "parent", 0, "Parent of the copied root page (defaults to the original parent)")
	return cmd
}

func newPublishCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <page-id>",
		Short: "Publish every draft in a page tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			n, affected, err := s.services.Engine.Publish(cmd.Context(), id)
			if err != nil {
				return err
			}
			s.settle(cmd.Context(), affected)
			fmt.Fprintf(cmd.OutOrStdout(), "published %d page(s)\n", n)
			return nil
		},
	}
}

func newReplaceCmd(opts *globalOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "replace <page-id>",
		Short: "Replace text in the bodies and metadata of a page tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			counts, affected, err := s.services.Engine.SearchReplace(cmd.Context(), id, &from, &to)
			if err != nil {
				return err
			}
			s.settle(cmd.Context(), affected)

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Target", "Rows"})
			t.AppendRow(table.Row{"page text", counts.Content})
			t.AppendRow(table.Row{"page meta", counts.Meta})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Text to search for")
	cmd.Flags().StringVar(&to, "to", "", "Replacement text")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newResolveCmd(opts *globalOptions) *cobra.Command {
	var preview int64
	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Show which page a public path is served by",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			d, err := s.services.Resolver.Resolve(ctx, args[0], preview)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendRow(table.Row{"Decision", d.Kind})
			if d.ID != 0 {
				t.AppendRow(table.Row{"Page", d.ID})
			}
			if d.Path != "" {
				t.AppendRow(table.Row{"Path", d.Path})
			}
			if d.ID == 0 && d.Path != "" {
				target, err := s.services.Resolver.Recover404(ctx, args[0])
				if err != nil {
					return err
				}
				if target != "" {
					t.AppendRow(table.Row{"Redirect", target})
				}
			}
			if d.ID != 0 {
				list, err := s.services.Resolver.ListVersions(ctx, d.ID)
				if err != nil {
					return err
				}
				for _, v := range list {
					t.AppendRow(table.Row{"Version " + v.Version, v.URL})
				}
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().Int64Var(&preview, "preview", 0, "Serve this page id as a preview")
	return cmd
}

func newTokenCmd(opts *globalOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <editor-id>",
		Short: "Issue an editor token for previews and tree actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: jwt_secret is empty, token uses the built-in key")
			}
			jwt.SetSecret(cfg.JWTSecret)
			token, err := jwt.Sign(strings.TrimSpace(args[0]), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
