// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// main.go — eavctl: migrates attribute bag tables, manages registered keys
// and inspects an owner's attributes from the command line.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/AndrewDonelson/eav"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type app struct {
	v          *viper.Viper
	out        io.Writer
	logOut     io.Writer
	configFile string
	bagFlags   []string
	db         *eav.DB
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a := &app{v: viper.New(), out: os.Stdout, logOut: os.Stderr}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eavctl",
		Short: "Administration tool for eav attribute bags",
		Long: `Administration tool for eav attribute bags.
Storage is chosen from EAV_POSTGRES_DSN, then EAV_BOLT_PATH, else memory.
Bags are listed in EAV_BAGS or --bag as owner.name (e.g. product.tech_specs).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "optional .env file")
	root.PersistentFlags().StringSliceVarP(&a.bagFlags, "bag", "b", nil, "bag to define, owner.name (repeatable)")

	keys := &cobra.Command{Use: "keys", Short: "Manage registered attribute keys"}
	keys.AddCommand(a.keysAddCmd(), a.keysListCmd())

	attrs := &cobra.Command{Use: "attrs", Short: "Inspect and edit an owner's attributes"}
	attrs.AddCommand(a.attrsShowCmd(), a.attrsSetCmd(), a.attrsUnsetCmd())

	root.AddCommand(a.migrateCmd(), a.statusCmd(), keys, attrs, a.versionCmd())
	return root
}

// open loads settings, connects and defines every configured bag.
func (a *app) open(ctx context.Context) error {
	if err := initViper(a.v, a.configFile); err != nil {
		return err
	}
	s, err := loadSettings(a.v)
	if err != nil {
		return err
	}
	for _, flag := range a.bagFlags {
		b, err := parseBag(flag)
		if err != nil {
			return err
		}
		s.Bags = append(s.Bags, b)
	}
	s.DB.Logger = eav.NewSlogLogger(newLogger(a.logOut, parseLevel(s.LogLevel)))

	db, err := eav.Open(ctx, s.DB)
	if err != nil {
		return err
	}
	for _, b := range s.Bags {
		if _, err := db.Define(b); err != nil {
			_ = db.Close()
			return err
		}
	}
	a.db = db
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
}

// withDB wraps run so it executes against an open DB.
func (a *app) withDB(run func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := a.open(ctx); err != nil {
			return err
		}
		defer a.close()
		return run(ctx, args)
	}
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create key and entry tables for every bag",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(ctx context.Context, _ []string) error {
			if err := a.db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "migrated %d bag(s)\n", len(a.db.Bags()))
			return nil
		}),
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied migration steps",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(ctx context.Context, _ []string) error {
			recs, err := a.db.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Fprintf(a.out, "%d\t%s\t%s\t%s\n", r.ID, r.Bag, r.Step, r.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		}),
	}
}

func (a *app) keysAddCmd() *cobra.Command {
	var symbol bool
	cmd := &cobra.Command{
		Use:   "add <bag> <name>",
		Short: "Register an attribute key",
		Args:  cobra.ExactArgs(2),
		RunE: a.withDB(func(ctx context.Context, args []string) error {
			bag, err := a.db.Bag(args[0])
			if err != nil {
				return err
			}
			k, err := bag.RegisterKey(ctx, args[1], symbol)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d\t%s\n", k.ID, k.Name)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&symbol, "symbol", true, "store the key as a symbolic key")
	return cmd
}

func (a *app) keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <bag>",
		Short: "List registered attribute keys",
		Args:  cobra.ExactArgs(1),
		RunE: a.withDB(func(ctx context.Context, args []string) error {
			bag, err := a.db.Bag(args[0])
			if err != nil {
				return err
			}
			keys, err := bag.Keys(ctx)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintf(a.out, "%d\t%s\t%t\n", k.ID, k.Name, k.Symbolic)
			}
			return nil
		}),
	}
}

func (a *app) attrsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <bag> <owner-id>",
		Short: "Print an owner's attributes as YAML",
		Args:  cobra.ExactArgs(2),
		RunE: a.withDB(func(ctx context.Context, args []string) error {
			s, err := a.store(args[0], args[1])
			if err != nil {
				return err
			}
			m, err := s.AsMap(ctx)
			if err != nil {
				return err
			}
			return yaml.NewEncoder(a.out).Encode(m)
		}),
	}
}

func (a *app) attrsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <bag> <owner-id> <key> <value>",
		Short: "Set one attribute; value is parsed as a YAML scalar or document",
		Args:  cobra.ExactArgs(4),
		RunE: a.withDB(func(ctx context.Context, args []string) error {
			s, err := a.store(args[0], args[1])
			if err != nil {
				return err
			}
			var value any
			if err := yaml.Unmarshal([]byte(args[3]), &value); err != nil {
				return fmt.Errorf("parse value: %w", err)
			}
			if err := s.Set(ctx, args[2], value); err != nil {
				return err
			}
			return s.Flush(ctx)
		}),
	}
}

func (a *app) attrsUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <bag> <owner-id> <key>",
		Short: "Delete one attribute",
		Args:  cobra.ExactArgs(3),
		RunE: a.withDB(func(ctx context.Context, args []string) error {
			s, err := a.store(args[0], args[1])
			if err != nil {
				return err
			}
			if v, err := s.Get(ctx, args[2]); err != nil || v == nil {
				return err
			}
			if err := s.Set(ctx, args[2], nil); err != nil {
				return err
			}
			return s.Flush(ctx)
		}),
	}
}

func (a *app) store(bagName, ownerID string) (*eav.AttributeStore, error) {
	bag, err := a.db.Bag(bagName)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(ownerID, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("owner id must be a positive integer, got %q", ownerID)
	}
	return bag.For(&eav.Record{ID: id}), nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(a.out, eav.Version())
		},
	}
}
