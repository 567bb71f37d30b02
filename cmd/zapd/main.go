// Command zapd is a thin front end over the embedded database engine. It
// holds no state of its own: every subcommand loads the snapshot named in
// the config file, performs one facade operation, and (for mutations)
// saves a fresh snapshot. All behavior lives in the zapd package; this
// binary only parses flags, opens inputs, and formats output.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"zapd"
)

// config is the TOML file every subcommand reads via --config: where the
// 32-byte key lives, where the WAL goes, and where snapshots are written.
type config struct {
	KeyFile      string `toml:"key_file"`
	WALPath      string `toml:"wal_path"`
	SnapshotPath string `toml:"snapshot_path"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if cfg.KeyFile == "" || cfg.WALPath == "" || cfg.SnapshotPath == "" {
		return config{}, fmt.Errorf("config %s must set key_file, wal_path and snapshot_path", path)
	}
	return cfg, nil
}

func loadKey(path string) ([32]byte, error) {
	var key [32]byte
	data, err := os.ReadFile(path)
	if err != nil {
		return key, fmt.Errorf("failed to read key file: %w", err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return key, fmt.Errorf("key file is not hex: %w", err)
	}
	if len(decoded) != 32 {
		return key, fmt.Errorf("key must be 32 bytes, got %d", len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

// openDB builds a handle from cfg and restores the snapshot if one exists.
func openDB(cfg config) (*zapd.Database, error) {
	key, err := loadKey(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	db, err := zapd.New(key, cfg.WALPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := os.Stat(cfg.SnapshotPath); err == nil {
		if err := db.Load(context.Background(), cfg.SnapshotPath); err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
	}
	return db, nil
}

// parseColumnSpec parses name:type[:notnull][:unique] into a Column.
func parseColumnSpec(spec string) (zapd.Column, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		return zapd.Column{}, fmt.Errorf("column spec %q must be name:type[:notnull][:unique]", spec)
	}
	dt, err := zapd.ParseDataType(parts[1])
	if err != nil {
		return zapd.Column{}, err
	}
	col := zapd.Column{Name: parts[0], Type: dt}
	for _, mod := range parts[2:] {
		switch strings.ToLower(mod) {
		case "notnull":
			col.Constraints = append(col.Constraints, zapd.NotNull())
		case "unique":
			col.Constraints = append(col.Constraints, zapd.Unique())
		default:
			return zapd.Column{}, fmt.Errorf("unknown column modifier %q", mod)
		}
	}
	return col, nil
}

// parseValue guesses the variant of a flag-supplied literal: integer, then
// float, then boolean, else string. Anything typed more precisely (UUID,
// DateTime, Json) goes in as a string column in this front end.
func parseValue(raw string) zapd.Value {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return zapd.NewInteger(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return zapd.NewFloat(f)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return zapd.NewBoolean(b)
	}
	return zapd.NewString(raw)
}

func parseAssignments(args []string) (zapd.Row, error) {
	row := make(zapd.Row, len(args))
	for _, a := range args {
		name, raw, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("assignment %q must be column=value", a)
		}
		row[name] = parseValue(raw)
	}
	return row, nil
}

func formatRow(row zapd.Row) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, col := range row.SortedColumns() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%#v", col, row[col])
	}
	sb.WriteByte('}')
	return sb.String()
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "zapd",
		Short: "Embedded encrypted in-memory database",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "zapd.toml", "Path to the TOML config file")

	createTableCmd := &cobra.Command{
		Use:   "create-table <table> <name:type[:notnull][:unique]>...",
		Short: "Declare a new table",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			columns := make([]zapd.Column, 0, len(args)-1)
			for _, spec := range args[1:] {
				col, err := parseColumnSpec(spec)
				if err != nil {
					return err
				}
				columns = append(columns, col)
			}
			if err := db.CreateTable(args[0], columns); err != nil {
				return fmt.Errorf("create table failed: %w", err)
			}
			if err := db.Save(context.Background(), cfg.SnapshotPath); err != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}
			fmt.Printf("Created table %s\n", args[0])
			return nil
		},
	}

	createIndexCmd := &cobra.Command{
		Use:   "create-index <table> <column>",
		Short: "Build a secondary index on a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.CreateIndex(args[0], args[1]); err != nil {
				return fmt.Errorf("create index failed: %w", err)
			}
			if err := db.Save(context.Background(), cfg.SnapshotPath); err != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}
			fmt.Printf("Indexed %s.%s\n", args[0], args[1])
			return nil
		},
	}

	insertCmd := &cobra.Command{
		Use:   "insert <table> <column=value>...",
		Short: "Insert one row",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			row, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			if err := db.Insert(args[0], row); err != nil {
				return fmt.Errorf("insert failed: %w", err)
			}
			if err := db.Save(context.Background(), cfg.SnapshotPath); err != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}
			fmt.Println("Inserted 1 row")
			return nil
		},
	}

	var whereCol string
	var whereVal string
	selectCmd := &cobra.Command{
		Use:   "select <table>",
		Short: "Print rows matching the filter (all rows by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var q zapd.Query = zapd.MatchAll{}
			if whereCol != "" {
				q = zapd.Condition{Column: whereCol, Op: zapd.Eq, Value: parseValue(whereVal)}
			}
			rows, root, err := db.Select(args[0], q)
			if err != nil {
				return fmt.Errorf("select failed: %w", err)
			}
			for _, row := range rows {
				fmt.Println(formatRow(row))
			}
			fmt.Printf("%d row(s), merkle root %x\n", len(rows), root[:8])
			return nil
		},
	}
	selectCmd.Flags().StringVar(&whereCol, "where", "", "Column for an equality filter")
	selectCmd.Flags().StringVar(&whereVal, "equals", "", "Value for the equality filter")

	deleteCmd := &cobra.Command{
		Use:   "delete <table> <column=value>",
		Short: "Delete rows matching an equality filter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			name, raw, ok := strings.Cut(args[1], "=")
			if !ok {
				return fmt.Errorf("filter %q must be column=value", args[1])
			}
			n, err := db.Delete(args[0], zapd.Condition{Column: name, Op: zapd.Eq, Value: parseValue(raw)})
			if err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			if err := db.Save(context.Background(), cfg.SnapshotPath); err != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}
			fmt.Printf("Deleted %d row(s)\n", n)
			return nil
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Write a fresh snapshot and truncate the WAL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Save(context.Background(), cfg.SnapshotPath); err != nil {
				return fmt.Errorf("save failed: %w", err)
			}
			fmt.Printf("Snapshot saved to %s\n", cfg.SnapshotPath)
			return nil
		},
	}

	loadCmd := &cobra.Command{
		Use:   "load [snapshot]",
		Short: "Restore a snapshot, replay the WAL and report the table count",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.SnapshotPath = args[0]
			}
			key, err := loadKey(cfg.KeyFile)
			if err != nil {
				return err
			}
			db, err := zapd.New(key, cfg.WALPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if err := db.Load(context.Background(), cfg.SnapshotPath); err != nil {
				return fmt.Errorf("load failed: %w", err)
			}
			if !db.VerifyIntegrity() {
				return fmt.Errorf("integrity check failed after load")
			}
			fmt.Printf("Loaded %s, integrity OK\n", cfg.SnapshotPath)
			return nil
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify-integrity",
		Short: "Recompute every table's merkle root and compare to the stored roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if !db.VerifyIntegrity() {
				return fmt.Errorf("integrity check failed")
			}
			fmt.Println("Integrity OK")
			return nil
		},
	}

	rootCmd.AddCommand(createTableCmd, createIndexCmd, insertCmd, selectCmd, deleteCmd, saveCmd, loadCmd, verifyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
