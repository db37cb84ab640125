package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehdgml1/vehicle-sim/candump"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
)

var candumpOpts struct {
	dbc      string
	output   string
	duration float64
	iface    string
	seed     uint64
}

var candumpCmd = &cobra.Command{
	Use:   "candump",
	Short: "Generate a candump log from a DBC file",
	RunE:  runCandump,
}

func init() {
	f := candumpCmd.Flags()
	f.StringVar(&candumpOpts.dbc, "dbc", "", "DBC file describing the messages")
	f.StringVarP(&candumpOpts.output, "output", "o", "-", "output log file, - for stdout")
	f.Float64VarP(&candumpOpts.duration, "duration", "d", 60, "log duration in seconds")
	f.StringVar(&candumpOpts.iface, "interface", candump.DefaultInterface, "interface name written on each line")
	f.Uint64Var(&candumpOpts.seed, "seed", 0, "noise seed, 0 for random")
	_ = candumpCmd.MarkFlagRequired("dbc")
	rootCmd.AddCommand(candumpCmd)
}

func runCandump(cmd *cobra.Command, args []string) (err error) {
	log := logger.New("candump")
	cat, err := candump.LoadCatalog(candumpOpts.dbc)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if candumpOpts.output != "-" {
		file, err := os.Create(candumpOpts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		out = file
	}

	w := candump.NewWriter(out, candumpOpts.iface)
	n, err := candump.Generate(cmd.Context(), cat, w, candump.Options{
		Duration: candumpOpts.duration,
		Seed:     candumpOpts.seed,
		Log:      log,
	})
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if candumpOpts.output != "-" {
		log.Infof("wrote %d frames to %s", n, candumpOpts.output)
	}
	return nil
}
