package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/forge-e2e/internal/artifacts"
	"github.com/kuitang/forge-e2e/internal/errs"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect or remove captured failure artifacts",
	Long: `Reads the artifact store named by ARTIFACTS_BUCKET or ARTIFACTS_DIR (or
--artifacts-dir). Keys look like <run id>/<check>/page.html.`,
}

var artifactsListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List artifact keys, optionally under a prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, where, err := openArchive(cmd)
		if err != nil {
			return err
		}
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		keys, err := archive.List(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d artifacts in %s\n", len(keys), where)
		for _, k := range keys {
			fmt.Fprintln(out, k)
		}
		return nil
	},
}

var artifactsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Write one artifact to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, _, err := openArchive(cmd)
		if err != nil {
			return err
		}
		data, err := archive.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var artifactsPruneCmd = &cobra.Command{
	Use:   "prune <prefix>",
	Short: "Delete every artifact under a prefix, such as a run id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := strings.TrimSpace(args[0])
		if prefix == "" {
			return errs.New(errs.Configuration, "prune needs a non-empty prefix")
		}
		archive, where, err := openArchive(cmd)
		if err != nil {
			return err
		}
		keys, err := archive.List(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := archive.Delete(cmd.Context(), k); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d artifacts from %s\n", len(keys), where)
		return nil
	},
}

func init() {
	artifactsCmd.AddCommand(artifactsListCmd, artifactsShowCmd, artifactsPruneCmd)
	rootCmd.AddCommand(artifactsCmd)
}

// openArchive returns the configured store and a name for it.
func openArchive(cmd *cobra.Command) (artifacts.Archive, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	archive, err := artifacts.FromConfig(cmd.Context(), cfg)
	if err != nil {
		return nil, "", errs.Wrap(errs.Configuration, "artifact store", err)
	}
	switch a := archive.(type) {
	case nil:
		return nil, "", errs.New(errs.Configuration, "no artifact store configured (set ARTIFACTS_BUCKET or ARTIFACTS_DIR)")
	case *artifacts.S3Store:
		return a, "s3://" + a.BucketName(), nil
	case artifacts.DirStore:
		return a, a.Root, nil
	default:
		return a, "artifact store", nil
	}
}
