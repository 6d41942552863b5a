package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/drawer"
	"github.com/askiada/go-labflow/pkg/pipeline/measure"
	"github.com/askiada/go-labflow/pkg/pipeline/runner"
)

var runFlags struct {
	volumes          []string
	simulateWorkflow bool
	dotFile          string
}

var runCmd = &cobra.Command{
	Use:   "run <pipeline>",
	Short: "Execute a pipeline until it completes, fails or is interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringArrayVar(&runFlags.volumes, "volume", nil, "Channel volume served by voxel_storage, as channel=path (repeatable)")
	f.BoolVar(&runFlags.simulateWorkflow, "simulate-workflow", false, "Serve workflow_facade with a simulated instrument")
	f.StringVar(&runFlags.dotFile, "dot", "", "Write the graph coloured by node status and timings to this DOT file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p, err := pipeline.Load(args[0])
	if err != nil {
		return err
	}

	services := map[string]any{}
	if len(runFlags.volumes) > 0 {
		storage, err := newFileStorage(runFlags.volumes)
		if err != nil {
			return err
		}
		services[runner.ServiceVoxelStorage] = storage
	}
	if runFlags.simulateWorkflow {
		services[runner.ServiceWorkflowFacade] = &simulatedWorkflow{}
	}

	var msr measure.Measure = measure.NewDefaultMeasure()
	if cfg.Metrics.Address != "" {
		registry := prometheus.NewRegistry()
		msr = measure.NewPrometheusMeasure(registry)

		srv := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	opts := []pipeline.ExecutorOption{
		pipeline.WithLogger(logger),
		pipeline.WithMeasure(msr),
	}

	var dot *drawer.DOTDrawer
	if runFlags.dotFile != "" {
		dot, err = drawer.FromPipeline(p)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithListener(dot.Listen))
	}

	exec := pipeline.NewExecutor(opts...)
	runner.RegisterDefaults(exec, cfg.RunnerOptions())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ec := pipeline.NewExecutionContext(services)

	handle, err := exec.Start(ctx, p, ec)
	if err != nil {
		return err
	}
	runErr := handle.Wait()

	if dot != nil {
		if err := dot.AddMeasure(msr); err != nil {
			return err
		}
		if err := dot.DrawFile(runFlags.dotFile); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()

	switch {
	case pipeline.IsCancellation(runErr):
		fmt.Fprintf(out, "%s: stopped by user\n", p.Name)

		return nil
	case runErr != nil:
		return runErr
	}

	fmt.Fprintf(out, "%s: %s\n", p.Name, exec.State())
	metrics := msr.AllMetrics()
	for _, id := range p.NodeIDs() {
		if mt, ok := metrics[id]; ok {
			fmt.Fprintf(out, "  %-24s runs=%d avg=%s done_at=%s\n",
				id, mt.Count(), mt.AVGDuration(), mt.GetTotalDuration().Round(time.Millisecond))
		}
	}

	return nil
}
