package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contentgraph/backend/internal/app"
	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/graph"
	"contentgraph/backend/internal/query"
	"contentgraph/backend/internal/relations"
	"contentgraph/backend/internal/store"
	"contentgraph/backend/pkg/logger"
)

var (
	graphIndirect bool
	graphDepth    int
	graphNodes    bool

	relationTypes []string
	relatedAll    bool

	queryWhere     []string
	queryJQ        []string
	querySort      []string
	queryLimit     int
	queryOffset    int
	queryRelations int

	seedReset bool
)

var graphCmd = &cobra.Command{
	Use:   "graph [collection...]",
	Short: "Build the relationship graph and print its statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			opts := a.Options
			opts.Collections = args
			if cmd.Flags().Changed("indirect") {
				opts.IncludeIndirect = graphIndirect
			}
			if graphDepth > 0 {
				opts.MaxIndirectDepth = graphDepth
			}
			g, err := a.Graphs.Build(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if graphNodes {
				return printResult(cmd.OutOrStdout(), g.Nodes())
			}
			return printResult(cmd.OutOrStdout(), g.Stats())
		})
	},
}

var relationsCmd = &cobra.Command{
	Use:   "relations COLLECTION ID",
	Short: "Print the relation map of one entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			if relatedAll {
				rels := a.Services.Resolver.AllRelatedEntries(cmd.Context(), args[0], args[1], relations.AllRelatedOptions{
					IncludeIndirect: graphIndirect,
					MaxDepth:        graphDepth,
					Resolve:         true,
				})
				return printResult(cmd.OutOrStdout(), rels)
			}
			types := make([]graph.RelationType, len(relationTypes))
			for i, t := range relationTypes {
				types[i] = graph.RelationType(t)
			}
			rm := a.Services.Resolver.Relations(cmd.Context(), args[0], args[1], types...)
			if relations.IsPlaceholder(rm.Entry) {
				a.Logger.Warn("Entry not found", zap.String("collection", args[0]), zap.String("id", args[1]))
			}
			return printResult(cmd.OutOrStdout(), rm)
		})
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree COLLECTION [ID]",
	Short: "Print a collection hierarchy, or the breadcrumbs of one entry",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			nav := a.Services.Navigator
			if len(args) == 2 {
				crumbs, err := nav.Breadcrumbs(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), crumbs)
			}
			tree, err := nav.Tree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), tree)
		})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query COLLECTION [COLLECTION...]",
	Short: "Filter, sort and paginate collection entries",
	Long: `Conditions (--where, repeatable):
  field=value  field!=value  field~text  field<date  field>date
  field@collection:id  field?

Sorts (--sort, repeatable, applied in order):
  field[:asc|desc]  date:field[:asc|desc]  order  title[:desc]`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := buildQuery(args)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := b(a).Get(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res)
		})
	},
}

// buildQuery parses the flags before any store is opened
func buildQuery(collections []string) (func(*app.App) *query.Builder, error) {
	var filters []query.Filter
	for _, expr := range queryWhere {
		f, err := query.ParseWhere(expr)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	for _, expr := range queryJQ {
		f, err := query.WhereJQ(expr)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	var sorts []query.Sort
	for _, expr := range querySort {
		s, err := query.ParseSort(expr)
		if err != nil {
			return nil, err
		}
		sorts = append(sorts, s)
	}

	return func(a *app.App) *query.Builder {
		b := a.Services.Engine.Query(collections...).
			Where(filters...).
			OrderBy(sorts...).
			Limit(queryLimit).
			Offset(queryOffset)
		if queryRelations >= 0 {
			b.IncludeRelations(queryRelations)
		}
		return b
	}, nil
}

var menuCmd = &cobra.Command{
	Use:   "menu [MENU]",
	Short: "Load menus and print one menu tree, or the load summary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.LoadMenus(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return printResult(cmd.OutOrStdout(), map[string]any{
					"load":  res,
					"menus": a.Menus.Store().Menus(),
				})
			}
			tree := a.Menus.Store().Tree(args[0])
			if len(tree) == 0 {
				return fmt.Errorf("menu %q has no items", args[0])
			}
			return printResult(cmd.OutOrStdout(), tree)
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed-neo4j",
	Short: "Copy the content directory into Neo4j with its relationships",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()
		log := logger.Get()
		if cfg.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required")
		}

		src, err := store.Snapshot(ctx, store.NewFileStore(cfg.ContentDir, log))
		if err != nil {
			return err
		}
		dst, err := store.ConnectNeo4j(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, log)
		if err != nil {
			return err
		}
		defer dst.Close()

		log.Info("Creating constraints...")
		if err := dst.EnsureSchema(ctx); err != nil {
			log.Warn("Failed to create some constraints (may already exist)", zap.Error(err))
		}

		collections, err := src.Collections(ctx)
		if err != nil {
			return err
		}
		for _, c := range collections {
			if seedReset {
				if err := dst.DeleteCollection(ctx, c); err != nil {
					return err
				}
			}
			entries, err := src.Entries(ctx, c)
			if err != nil {
				return err
			}
			if err := dst.Upsert(ctx, entries...); err != nil {
				return err
			}
			log.Info("Seeded collection", zap.String("collection", c), zap.Int("entries", len(entries)))
		}

		var schema *content.Schema
		if cfg.SchemaFile != "" {
			if schema, err = content.LoadSchema(cfg.SchemaFile); err != nil {
				return err
			}
		}
		g, err := graph.NewBuilder(src, schema, log).Build(ctx, graph.BuildOptions{Collections: collections})
		if err != nil {
			return err
		}
		if err := dst.SyncRelations(ctx, g); err != nil {
			return err
		}

		log.Info("Seeding complete", zap.Int("collections", len(collections)), zap.Int("entries", g.TotalEntries()))
		return nil
	},
}

func init() {
	graphCmd.Flags().BoolVar(&graphIndirect, "indirect", false, "compute indirect references")
	graphCmd.Flags().IntVar(&graphDepth, "depth", 0, "maximum indirect depth")
	graphCmd.Flags().BoolVar(&graphNodes, "nodes", false, "print every relation map instead of statistics")

	relationsCmd.Flags().StringSliceVar(&relationTypes, "types", nil, "relation types to keep (reference, parent, child, ...)")
	relationsCmd.Flags().BoolVar(&relatedAll, "all", false, "print the merged related entries instead of the relation map")
	relationsCmd.Flags().BoolVar(&graphIndirect, "indirect", false, "include indirect relations with --all")
	relationsCmd.Flags().IntVar(&graphDepth, "depth", 0, "maximum indirect depth with --all")

	queryCmd.Flags().StringArrayVar(&queryWhere, "where", nil, "filter condition (repeatable)")
	queryCmd.Flags().StringArrayVar(&queryJQ, "jq", nil, "jq predicate over {collection, id, data} (repeatable)")
	queryCmd.Flags().StringArrayVar(&querySort, "sort", nil, "sort key (repeatable)")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "page size, 0 for all")
	queryCmd.Flags().IntVar(&queryOffset, "offset", 0, "matches to skip")
	queryCmd.Flags().IntVar(&queryRelations, "relations", -1, "attach relations; the value is the indirect depth (0 for direct only)")

	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "delete existing entries of each collection first")
}
