// Command flowsample builds a normalizing flow from a YAML description
// and prints samples drawn from it along with their log densities.
package main

import (
	goflag "flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"

	"github.com/samuelfneumann/goflow"
	"github.com/samuelfneumann/goflow/distribution"
)

// checkTolerance bounds the disagreement between the log densities
// returned alongside samples and those recomputed from the samples.
const checkTolerance = 1e-6

type options struct {
	config  string
	seed    uint64
	n       int
	workers int
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "flowsample",
		Short: "Sample from a normalizing flow described in YAML",
		Long: "flowsample builds a flow from a standard base distribution " +
			"and a list of bijection layers, draws samples from it and " +
			"prints each sample with its log density.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.config, "config", "", "Path to the YAML flow description")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Seed of the random key")
	cmd.Flags().IntVar(&opts.n, "n", 5, "Number of samples to draw")
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "Number of goroutines evaluating samples")
	_ = cmd.MarkFlagRequired("config")

	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	return cmd
}

func run(w io.Writer, opts *options) error {
	if opts.n < 0 {
		return errors.Errorf("run: number of samples must be non-negative, "+
			"got %d", opts.n)
	}

	cfg, err := loadConfig(opts.config)
	if err != nil {
		return errors.Wrap(err, "run")
	}
	flow, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "run")
	}
	klog.V(1).Infof("run: built flow with shape %v from %s", flow.Shape(),
		opts.config)

	workers := goflow.WithWorkers(opts.workers)
	key := goflow.NewKey(opts.seed)

	x, lp, err := distribution.SampleAndLogProb(flow, key, tensor.Shape{opts.n},
		nil, workers)
	if err != nil {
		return errors.Wrap(err, "run")
	}

	check, err := distribution.LogProb(flow, x, nil, workers)
	if err != nil {
		return errors.Wrap(err, "run")
	}

	for i := 0; i < opts.n; i++ {
		xi, err := x.Index(i)
		if err != nil {
			return errors.Wrap(err, "run")
		}
		got, want := lp.Data()[i], check.Data()[i]
		if math.Abs(got-want) > checkTolerance {
			klog.Warningf("run: sample %d has log density %v but %v when "+
				"recomputed", i, got, want)
		}
		fmt.Fprintf(w, "%s\t%.6f\n", formatValues(xi.Data()), got)
	}
	return nil
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return strings.Join(parts, " ")
}

func main() {
	defer klog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		klog.ErrorS(err, "flowsample failed")
		os.Exit(1)
	}
}
