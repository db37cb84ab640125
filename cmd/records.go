package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehdgml1/vehicle-sim/core/model"
	"github.com/ehdgml1/vehicle-sim/infra/recorder"
)

var recordsOpts struct {
	path     string
	from     string
	to       string
	scenario string
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Print recorded cycles as JSON lines",
	Args:  cobra.NoArgs,
	RunE:  runRecords,
}

func init() {
	f := recordsCmd.Flags()
	f.StringVar(&recordsOpts.path, "path", "", "recording file, defaults to recorder.path")
	f.StringVar(&recordsOpts.from, "from", "", "only records at or after this RFC3339 time")
	f.StringVar(&recordsOpts.to, "to", "", "only records at or before this RFC3339 time")
	f.StringVar(&recordsOpts.scenario, "scenario", "", "only records of this scenario")
	rootCmd.AddCommand(recordsCmd)
}

func recordsQuery() (recorder.Query, error) {
	var q recorder.Query
	var err error
	if recordsOpts.from != "" {
		if q.Start, err = time.Parse(time.RFC3339, recordsOpts.from); err != nil {
			return q, fmt.Errorf("--from: %w", err)
		}
	}
	if recordsOpts.to != "" {
		if q.End, err = time.Parse(time.RFC3339, recordsOpts.to); err != nil {
			return q, fmt.Errorf("--to: %w", err)
		}
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return q, fmt.Errorf("--to %s is before --from %s", recordsOpts.to, recordsOpts.from)
	}
	if recordsOpts.scenario != "" {
		mode, err := model.ParseScenarioMode(recordsOpts.scenario)
		if err != nil {
			return q, err
		}
		q.Scenario = &mode
	}
	return q, nil
}

func runRecords(cmd *cobra.Command, args []string) error {
	q, err := recordsQuery()
	if err != nil {
		return err
	}
	path := recordsOpts.path
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Recorder.Path
	}
	rec, err := recorder.NewJSONLRecorder(path, 0, 0, 0)
	if err != nil {
		return err
	}
	defer func() { _ = rec.Close() }()

	records, err := rec.Query(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
