package main

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/querypilot/agent"
	"github.com/querypilot/agent/pkg/config"
	"github.com/querypilot/agent/pkg/tools"
)

const demoFixture = `
CREATE TABLE IF NOT EXISTS customers (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT
);
CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY,
  customer_id INTEGER REFERENCES customers(id),
  product TEXT NOT NULL,
  amount REAL NOT NULL
);
INSERT INTO customers (id, name, email) VALUES
  (1, 'John Doe', 'john@example.com'),
  (2, 'Jane Smith', 'jane@example.com');
INSERT INTO orders (id, customer_id, product, amount) VALUES
  (1, 1, 'Laptop', 999.99),
  (2, 1, 'Mouse', 19.99),
  (3, 2, 'Keyboard', 49.99);`

func sqlCmd() *cobra.Command {
	var flags runFlags
	var dsn string
	var seedDemo bool

	cmd := &cobra.Command{
		Use:   "sql [question]",
		Short: "Answer a question about a SQL database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			if dsn == "" {
				dsn = cfg.DatabaseURL
			}
			if dsn == "" {
				dsn = ":memory:"
				seedDemo = true
			}

			model, cfg, err := buildModel(ctx, cfg, flags)
			if err != nil {
				return err
			}

			db, err := sqlx.ConnectContext(ctx, sqlDriver(dsn), dsn)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()
			if dsn == ":memory:" {
				// the pool must not open a second, empty in-memory database
				db.SetMaxOpenConns(1)
			}
			if seedDemo {
				if _, err := db.ExecContext(ctx, demoFixture); err != nil {
					return fmt.Errorf("seed demo data: %w", err)
				}
			}

			schema, err := describeSchema(ctx, db)
			if err != nil {
				return fmt.Errorf("read schema: %w", err)
			}

			logger := newLogger()
			a, err := agent.New(agent.Options{
				Model:    model,
				Tools:    []agent.Tool{tools.NewSQLTool(db, model, schema, logger)},
				MaxSteps: cfg.MaxSteps,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			return runQuestion(ctx, a, cfg, flags, strings.Join(args, " "))
		},
	}
	addRunFlags(cmd, &flags)
	cmd.Flags().StringVar(&dsn, "db", "", "database DSN; a seeded in-memory demo when empty")
	cmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "seed the demo customers/orders fixture")
	return cmd
}

func sqlDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx"
	}
	return "sqlite"
}

// describeSchema builds the table/column summary the translator prompt
// needs, from the catalog of whichever engine is connected.
func describeSchema(ctx context.Context, db *sqlx.DB) (string, error) {
	var query string
	switch db.DriverName() {
	case "pgx":
		query = `SELECT table_name, column_name FROM information_schema.columns
		         WHERE table_schema = 'public' ORDER BY table_name, ordinal_position`
	default:
		query = `SELECT m.name AS table_name, p.name AS column_name
		         FROM sqlite_master m JOIN pragma_table_info(m.name) p
		         WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
		         ORDER BY m.name, p.cid`
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns := make(map[string][]string)
	var order []string
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return "", err
		}
		if _, seen := columns[table]; !seen {
			order = append(order, table)
		}
		columns[table] = append(columns[table], column)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, table := range order {
		fmt.Fprintf(&b, "%s(%s)\n", table, strings.Join(columns[table], ", "))
	}
	return strings.TrimSpace(b.String()), nil
}
