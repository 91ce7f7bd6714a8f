package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aeromap/odm-orchestrator/internal/api"
	"github.com/aeromap/odm-orchestrator/internal/orchestrator"
)

// newProcessCmd builds the command that runs one submission end to end.
func newProcessCmd(configPath *string) *cobra.Command {
	var (
		requestPath string
		dryRun      bool
		noNotify    bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Submit a processing request and wait for its jobs to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath, noNotify)
			if err != nil {
				return err
			}
			code := runProcess(cmd.Context(), app, requestPath, dryRun)
			app.close()
			os.Exit(code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&requestPath, "request", "r", "", "path to the request directory")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "validate the request without creating jobs")
	cmd.Flags().BoolVar(&noNotify, "no-notify", false, "suppress status notifications to the broker")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

// runProcess drives one submission and returns the process exit code.
func runProcess(ctx context.Context, app *app, requestPath string, dryRun bool) int {
	req, err := app.loader.Load(requestPath)
	if err != nil {
		app.logger.Error("request validation failed", "error", err)
		return exitFailure
	}
	groups, err := app.loader.DiscoverGroups(req)
	if err != nil {
		app.logger.Error("request validation failed", "error", err)
		return exitFailure
	}
	if dryRun {
		app.logger.Info("dry run completed - request structure is valid",
			"request_id", req.RequestID,
			"group_count", len(groups))
		return exitOK
	}

	app.installSignalHandler()
	result, err := app.orch.SubmitAndWait(ctx, req, groups)
	if err != nil {
		app.logger.Error("processing failed", "error", err)
		return exitFailure
	}
	return exitCode(result)
}

// exitCode maps a submission result onto the CLI exit code.
func exitCode(result *orchestrator.Result) int {
	switch result.Outcome {
	case orchestrator.OutcomeCompleted:
		return exitOK
	case orchestrator.OutcomeCancelled:
		return exitCancelled
	case orchestrator.OutcomeIncomplete:
		return exitIncomplete
	}
	return exitFailure
}

// newListCmd builds the command listing jobs known to the node.
func newListCmd(configPath *string) *cobra.Command {
	var (
		requestPath  string
		statusValues []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs on the compute node",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath, true)
			if err != nil {
				return err
			}
			defer app.close()

			statuses, err := parseStatuses(statusValues)
			if err != nil {
				return err
			}
			requestID, err := resolveRequestID(app, requestPath)
			if err != nil {
				return err
			}

			if err := app.orch.CheckNode(cmd.Context()); err != nil {
				return err
			}
			jobs, err := app.orch.List(cmd.Context(), requestID, statuses)
			if err != nil {
				return err
			}
			for _, job := range jobs {
				app.logger.Info("job",
					"job_id", job.ID,
					"name", job.Name,
					"status", string(job.Status),
					"progress", job.Progress)
			}
			app.logger.Info("listing completed", "job_count", len(jobs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&requestPath, "request", "r", "", "limit to jobs of the request in this directory")
	cmd.Flags().StringSliceVarP(&statusValues, "status", "s", nil, "limit to jobs in the given statuses (queued, running, completed, failed, canceled)")
	return cmd
}

// newCleanupCmd builds the command removing jobs from the node.
func newCleanupCmd(configPath *string) *cobra.Command {
	var (
		requestPath  string
		statusValues []string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove jobs and their artifacts from the compute node",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath, true)
			if err != nil {
				return err
			}
			defer app.close()

			statuses, err := parseStatuses(statusValues)
			if err != nil {
				return err
			}
			requestID, err := resolveRequestID(app, requestPath)
			if err != nil {
				return err
			}

			if err := app.orch.CheckNode(cmd.Context()); err != nil {
				return err
			}
			removed, err := app.orch.RemoveJobs(cmd.Context(), requestID, statuses, dryRun)
			if err != nil {
				return err
			}
			app.logger.Info("cleanup completed", "removed_count", len(removed), "dry_run", dryRun)
			return nil
		},
	}
	cmd.Flags().StringVarP(&requestPath, "request", "r", "", "limit to jobs of the request in this directory")
	cmd.Flags().StringSliceVarP(&statusValues, "status", "s", nil, "limit to jobs in the given statuses (queued, running, completed, failed, canceled)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "log intended removals without removing anything")
	return cmd
}

// newServeCmd builds the command exposing the admin HTTP surface.
func newServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the administrative HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath, true)
			if err != nil {
				return err
			}
			defer app.close()

			handler := api.NewHandler(app.orch, app.logger)
			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
				Handler:           handler.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				app.logger.Info("admin API listening", "addr", server.Addr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				app.logger.Info("shutting down admin API")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}

// resolveRequestID loads the request descriptor when a request path filter
// was given and returns its request id.
func resolveRequestID(app *app, requestPath string) (string, error) {
	if requestPath == "" {
		return "", nil
	}
	req, err := app.loader.Load(requestPath)
	if err != nil {
		return "", err
	}
	return req.RequestID, nil
}
