// Package main provides the BeliefDB CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/buildonomy/beliefdb/pkg/belief"
	"github.com/buildonomy/beliefdb/pkg/beliefbase"
	"github.com/buildonomy/beliefdb/pkg/config"
	"github.com/buildonomy/beliefdb/pkg/graph"
	"github.com/buildonomy/beliefdb/pkg/paths"
	"github.com/buildonomy/beliefdb/pkg/query"
	"github.com/buildonomy/beliefdb/pkg/store"
)

var (
	version = belief.Version
	commit  = "dev"
)

var (
	cfgPath string
	cfg     config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "beliefdb",
		Short: "BeliefDB - Incrementally Maintained Belief Graph Store",
		Long: `BeliefDB is an in-memory belief graph store written in Go.

Features:
  • Typed nodes with multi-kind weighted edges and stable identifiers
  • Event-driven mutation with derivative event streams
  • Hierarchical path index with subnet mounting
  • Query expressions with set algebra and trace semantics
  • Snapshot diff/reconciliation into minimal event streams`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded
			if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
				logrus.SetLevel(level)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "beliefdb.yaml", "config file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("BeliefDB v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load the stored snapshot and verify the balance invariants",
		RunE:  runCheck,
	})

	importCmd := &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Import a JSON snapshot into the store",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	rootCmd.AddCommand(importCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Export the stored snapshot as JSON to stdout",
		RunE:  runExport,
	})

	queryCmd := &cobra.Command{
		Use:   "query <nodekey>",
		Short: "Resolve a node key against the stored snapshot",
		Long: `Resolve a node key (bid://…, bref://…, id://net/…, path://net/… or a
bare reference) and print the matching node plus its incident relations.`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}
	rootCmd.AddCommand(queryCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "paths [network]",
		Short: "Print a network's path table",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPaths,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadBase() (*beliefbase.BeliefBase, error) {
	st, err := store.Open(store.Options{DataDir: cfg.DataDir})
	if err != nil {
		return nil, err
	}
	defer st.Close()
	snapshot, err := st.Load()
	if err != nil {
		return nil, err
	}
	return beliefbase.FromGraph(snapshot), nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	base, err := loadBase()
	if err != nil {
		return err
	}
	if _, err := base.ProcessEvent(belief.BuiltInTest{}); err != nil {
		return err
	}
	errors := base.Errors()
	if !cfg.FullCheck {
		errors = base.BuiltInTestErrors(false)
	}
	if len(errors) == 0 {
		fmt.Println("balanced")
		return nil
	}
	for _, e := range errors {
		fmt.Println("-", e)
	}
	return fmt.Errorf("%d invariant violations", len(errors))
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var snapshot graph.BeliefGraph
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("parsing snapshot: %w", err)
	}
	st, err := store.Open(store.Options{DataDir: cfg.DataDir})
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Save(snapshot); err != nil {
		return err
	}
	fmt.Printf("imported %d nodes, %d edges\n", len(snapshot.States), snapshot.Relations.EdgeCount())
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := store.Open(store.Options{DataDir: cfg.DataDir})
	if err != nil {
		return err
	}
	defer st.Close()
	snapshot, err := st.Load()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	base, err := loadBase()
	if err != nil {
		return err
	}
	key, err := base.ParseKeyWithCache(args[0])
	if err != nil {
		return err
	}
	result := base.EvaluateExpression(query.FromNodeKey(key))
	if result.IsEmpty() {
		fmt.Println("no match")
		return nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runPaths(cmd *cobra.Command, args []string) error {
	base, err := loadBase()
	if err != nil {
		return err
	}
	net := belief.NilBid()
	if len(args) == 1 {
		key, err := base.ParseKeyWithCache(args[0])
		if err != nil {
			return err
		}
		node, ok := base.Get(key)
		if !ok {
			return fmt.Errorf("network %q not found", args[0])
		}
		net = node.Bid
	}
	base.WithPaths(func(pmm *paths.PathMapMap) {
		pm, ok := pmm.GetMap(net)
		if !ok {
			fmt.Println("network has no path map")
			return
		}
		for _, row := range pm.Map() {
			fmt.Printf("%v\t%s\t%s\n", row.Order, row.Bid, row.Path)
		}
	})
	return nil
}
