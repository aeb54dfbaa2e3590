package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/dialogue-tree/internal/dialogue"
	"github.com/capitalize-ai/dialogue-tree/internal/layout"
)

var errInvalidTree = errors.New("tree has invariant violations")

type outputOptions struct {
	format string
}

// NewRootCommand builds the dialoguectl command tree.
func NewRootCommand() *cobra.Command {
	opts := &outputOptions{}

	cmd := &cobra.Command{
		Use:           "dialoguectl",
		Short:         "Inspect dialogue tree snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "json", "output format (json|yaml)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPathCommand(opts))
	cmd.AddCommand(NewLayoutCommand(opts))

	return cmd
}

type validateReport struct {
	TreeID   string   `json:"tree_id" yaml:"tree_id"`
	Nodes    int      `json:"nodes" yaml:"nodes"`
	Valid    bool     `json:"valid" yaml:"valid"`
	Problems []string `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// NewValidateCommand checks a snapshot against the tree invariants.
func NewValidateCommand(opts *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <snapshot.json|->",
		Short: "Check a snapshot for dangling parents, cycles and a missing root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(cmd, args[0])
			if err != nil {
				return err
			}

			report := validateReport{TreeID: tree.ID, Nodes: tree.Len(), Valid: true}
			if err := tree.Validate(); err != nil {
				report.Valid = false
				report.Problems = strings.Split(err.Error(), "\n")
			}
			if err := write(cmd.OutOrStdout(), opts.format, report); err != nil {
				return err
			}
			if !report.Valid {
				return errInvalidTree
			}
			return nil
		},
	}
}

type pathReport struct {
	CurrentNodeID string   `json:"current_node_id" yaml:"current_node_id"`
	Path          []string `json:"path" yaml:"path"`
	ReachedRoot   bool     `json:"reached_root" yaml:"reached_root"`
	Error         string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewPathCommand prints the current path of a snapshot.
func NewPathCommand(opts *outputOptions) *cobra.Command {
	var rootFirst bool

	cmd := &cobra.Command{
		Use:   "path <snapshot.json|->",
		Short: "Print the path from the current node up to root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(cmd, args[0])
			if err != nil {
				return err
			}

			path, err := tree.CurrentPath()
			report := pathReport{
				CurrentNodeID: tree.CurrentNodeID(),
				Path:          path.IDs,
				ReachedRoot:   path.ReachedRoot,
			}
			if rootFirst {
				report.Path = path.RootFirst()
			}
			if err != nil {
				report.Error = err.Error()
			}
			return write(cmd.OutOrStdout(), opts.format, report)
		},
	}
	cmd.Flags().BoolVar(&rootFirst, "root-first", false, "print the path in conversation order")

	return cmd
}

// NewLayoutCommand prints the graph layout of a snapshot.
func NewLayoutCommand(opts *outputOptions) *cobra.Command {
	layoutOpts := layout.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "layout <snapshot.json|->",
		Short: "Compute node positions, labels and styles for a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(cmd, args[0])
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), opts.format, layout.Build(tree.Snapshot(), layoutOpts))
		},
	}
	cmd.Flags().IntVar(&layoutOpts.MaxLabelRunes, "max-label-runes", layoutOpts.MaxLabelRunes, "truncate node labels to this many characters")
	cmd.Flags().Float64Var(&layoutOpts.BaseHorizontalGap, "h-gap", layoutOpts.BaseHorizontalGap, "base horizontal gap")
	cmd.Flags().Float64Var(&layoutOpts.BaseVerticalGap, "v-gap", layoutOpts.BaseVerticalGap, "base vertical gap")

	return cmd
}

func loadTree(cmd *cobra.Command, name string) (*dialogue.Tree, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	var snap dialogue.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("error parsing snapshot: %w", err)
	}
	return dialogue.FromSnapshot(snap), nil
}

func write(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
