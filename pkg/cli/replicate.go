package cli

import (
	"fmt"

	"screenlist/pkg/cache"
	"screenlist/pkg/db"
	"screenlist/pkg/replication"

	"github.com/spf13/cobra"
)

// Replication sources
const (
	fromCache  = "cache"
	fromMongo  = "mongo"
	fromSQLite = "sqlite"
)

func newReplicateCmd(a *app) *cobra.Command {
	var from, preset, toSQLite string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Copies cached records into Postgres (or a SQLite file with --to-sqlite).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mirrors := a.cfg.Mirrors

			var source db.RecordSource
			switch from {
			case fromCache:
				source = replication.CacheSource{Store: cache.NewFileStore(a.cfg.CachePath(preset))}
			case fromMongo:
				mongo := db.NewMongoClient(db.MongoConfig{
					URI:        mirrors.MongoURI,
					Database:   mirrors.MongoDB,
					Collection: mirrors.MongoCollection,
				})
				if err := mongo.Connect(ctx); err != nil {
					return err
				}
				defer mongo.Close(ctx)
				source = mongo
			case fromSQLite:
				lite := db.NewSQLiteClient(mirrors.SQLitePath)
				if err := lite.Connect(ctx); err != nil {
					return err
				}
				defer lite.Close()
				source = lite
			default:
				return fmt.Errorf("unknown source %q: want cache, mongo or sqlite", from)
			}

			var target db.SQLStore
			if toSQLite != "" {
				lite := db.NewSQLiteClient(toSQLite)
				if err := lite.Connect(ctx); err != nil {
					return err
				}
				defer lite.Close()
				target = lite
			} else {
				pg := db.NewPostgresClient(db.PostgresConfig{DSN: mirrors.PostgresDSN})
				if err := pg.Connect(ctx); err != nil {
					return err
				}
				defer pg.Close()
				target = pg
			}

			r, err := replication.NewReplicator(replication.Config{Source: source, Target: target, Overwrite: overwrite})
			if err != nil {
				return err
			}
			stats, err := r.Replicate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replicated %d records (%d written) into %s\n", stats.Processed, stats.Inserted, target.Dialect())
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", fromCache, "source: cache, mongo or sqlite")
	cmd.Flags().StringVar(&preset, "preset", "tvshows", "preset whose cache file is read with --from cache")
	cmd.Flags().StringVar(&toSQLite, "to-sqlite", "", "write into this SQLite file instead of Postgres")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace records that already exist in the target")
	return cmd
}
