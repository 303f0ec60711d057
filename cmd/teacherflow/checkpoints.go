package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shroroh/teacherflow/pkg/flowgraph/checkpoint"
)

func newCheckpointsCmd(d deps) *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "checkpoints [run-id]",
		Short: "Inspect recorded stage outputs",
		Long: `Without arguments, list the runs recorded in the checkpoint database.
With a run ID, print what the caller seeded and what each stage published.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := checkpoint.NewSQLiteStore(db)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				return listRuns(d.stdout, store)
			}
			return showRun(d.stdout, store, args[0])
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "checkpoint database written with --checkpoint-db")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func listRuns(w io.Writer, store checkpoint.Store) error {
	runs, err := store.Runs()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tPIPELINE\tSTARTED\tSTAGES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.RunID, r.Pipeline, r.Started.Format(time.DateTime), r.Stages)
	}
	return tw.Flush()
}

func showRun(w io.Writer, store checkpoint.Store, runID string) error {
	infos, err := store.List(runID)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return fmt.Errorf("run %s: %w", runID, checkpoint.ErrNotFound)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, info := range infos {
		cp, err := store.Load(runID, info.NodeID)
		if errors.Is(err, checkpoint.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(cp); err != nil {
			return fmt.Errorf("print checkpoint %s: %w", info.NodeID, err)
		}
	}
	return enc.Close()
}
