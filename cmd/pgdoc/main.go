// Command pgdoc exposes the query compiler as a CLI: feed it a MongoDB-shaped
// filter (and, for updates, a $set/$inc document) on stdin and it prints the
// parameterized SQL plus its parameter vector.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/lucasmira/pgdoc/compiler"
	"github.com/lucasmira/pgdoc/config"
	"github.com/lucasmira/pgdoc/core"
	"github.com/lucasmira/pgdoc/driver/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var log *zap.SugaredLogger

type compiledStatement struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	log = logger.Sugar()

	if err := rootCmd().Execute(); err != nil {
		log.Errorw("command failed", "error", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	root := &cobra.Command{
		Use:   "pgdoc",
		Short: "Compile and run MongoDB-shaped queries against a JSONB Postgres table",
	}
	root.AddCommand(compileCmd())
	root.AddCommand(bootstrapCmd())
	return root
}

func compileCmd() *cobra.Command {
	var jsonField string
	var updatePath string

	cmd := &cobra.Command{
		Use:   "compile [select|count|delete|update] TABLE",
		Short: "Compile a filter document (read from stdin) into SQL and parameters",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, table := args[0], args[1]

			filter, err := decodeDoc(os.Stdin)
			if err != nil {
				return fmt.Errorf("decoding filter: %w", err)
			}

			opts := compiler.SelectOptions{JSONField: jsonField}

			var sqlText string
			var params []any
			switch op {
			case "select":
				sqlText, params, err = compiler.BuildSelect(table, filter, opts)
			case "count":
				sqlText, params, err = compiler.BuildCount(table, filter, opts)
			case "delete":
				sqlText, params, err = compiler.BuildDelete(table, filter, opts)
			case "update":
				if updatePath == "" {
					return fmt.Errorf("update requires --update <file.json>")
				}
				updateFile, err := os.Open(updatePath)
				if err != nil {
					return err
				}
				defer updateFile.Close()
				updateOps, err := decodeDoc(updateFile)
				if err != nil {
					return fmt.Errorf("decoding update document: %w", err)
				}
				expr, err := compiler.BuildUpdate(updateOps, opts.JSONField)
				if err != nil {
					return err
				}
				if expr == nil {
					return fmt.Errorf("update document had no effect")
				}
				sqlText, params, err = compiler.SpliceUpdate(table, filter, expr, opts)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown operation %q (want select, count, delete or update)", op)
			}
			if err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(compiledStatement{SQL: sqlText, Params: params})
		},
	}

	cmd.Flags().StringVar(&jsonField, "json-field", "data", "JSONB column holding the document")
	cmd.Flags().StringVar(&updatePath, "update", "", "path to a $set/$inc JSON document (required for the update operation)")
	return cmd
}

func bootstrapCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create a collection's backing table and index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if collection == "" {
				return fmt.Errorf("--collection is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			driver, err := postgres.NewPostgresDriver(ctx, cfg.DSN())
			if err != nil {
				return err
			}
			defer driver.Close(ctx)

			schema := &core.SchemaCore{Collection: collection, JSONField: "data"}
			if err := driver.Bootstrap(ctx, schema); err != nil {
				return err
			}
			log.Infow("collection bootstrapped", "collection", collection)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection/table name to bootstrap")
	return cmd
}
