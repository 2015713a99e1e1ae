package cli

import (
	"fmt"
	"strings"
	"time"

	"screenlist/pkg/cache"
	"screenlist/pkg/domain"
	"screenlist/pkg/identity"
	"screenlist/pkg/logger"
	"screenlist/pkg/sites"

	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspects and prunes the per-preset record caches.",
	}
	cmd.AddCommand(newCacheListCmd(a))
	cmd.AddCommand(newCachePruneCmd(a))
	return cmd
}

func newCacheListCmd(a *app) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:       "list <preset>",
		Short:     "Lists the cached records of a preset.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: sites.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := cache.NewFileStore(a.cfg.CachePath(args[0]))
			records, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			list := records.Records()
			if query != "" {
				q := strings.ToLower(query)
				filtered := list[:0]
				for _, r := range list {
					if strings.Contains(strings.ToLower(r.DisplayName), q) || strings.Contains(string(r.Key), q) {
						filtered = append(filtered, r)
					}
				}
				list = filtered
			}

			printRecords(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "only list records whose name or key contains this text")
	return cmd
}

func newCachePruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	var titles []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:       "prune <preset>",
		Short:     "Removes cached records by title or age so the next run resolves them again.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: sites.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 && len(titles) == 0 {
				return fmt.Errorf("nothing to prune: pass --older-than or --title")
			}

			store := cache.NewFileStore(a.cfg.CachePath(args[0]))
			records, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			removed := pruneRecords(records, titles, olderThan, time.Now())
			for _, key := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %s\n", key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pruned, %d kept\n", len(removed), len(records))

			if dryRun || len(removed) == 0 {
				return nil
			}
			if err := store.Save(cmd.Context(), records); err != nil {
				return err
			}
			logger.Info("CLI: cache pruned", "preset", args[0], "removed", len(removed), "path", store.Path())
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "remove records resolved longer ago than this (e.g. 720h)")
	cmd.Flags().StringSliceVar(&titles, "title", nil, "remove the record for this title (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be pruned without writing the cache")
	return cmd
}

// pruneRecords deletes matching records in place and returns the removed keys
func pruneRecords(records domain.RecordSet, titles []string, olderThan time.Duration, now time.Time) []domain.CanonicalKey {
	drop := map[domain.CanonicalKey]bool{}
	for _, title := range titles {
		drop[identity.Normalize(title)] = true
	}

	var removed []domain.CanonicalKey
	for _, rec := range records.Records() {
		stale := olderThan > 0 && now.Sub(rec.ResolvedAt) > olderThan
		if drop[rec.Key] || stale {
			delete(records, rec.Key)
			removed = append(removed, rec.Key)
		}
	}
	return removed
}
