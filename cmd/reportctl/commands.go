package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/urfave/cli/v3"
)

// Immediate runs block until the report is mailed
const submitTimeout = 30 * time.Minute

var stdout io.Writer = os.Stdout

func jobsAction(ctx context.Context, cmd *cli.Command) error {
	client := NewClient(cmd.String("url"), 30*time.Second)

	jobs, err := client.ListJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(stdout, "No pending jobs")
		return nil
	}

	for _, job := range jobs {
		next := "-"
		if job.NextRunTime != nil {
			next = job.NextRunTime.Format(time.RFC3339)
		}
		fmt.Fprintf(stdout, "%s  %s  %s  %s\n", job.ID, job.Name, next, job.Trigger)
	}
	return nil
}

func scheduleAction(ctx context.Context, cmd *cli.Command) error {
	client := NewClient(cmd.String("url"), 30*time.Second)

	resp, err := client.Schedule(ctx, requestFromFlags(cmd))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func submitAction(ctx context.Context, cmd *cli.Command) error {
	client := NewClient(cmd.String("url"), submitTimeout)

	resp, err := client.Submit(ctx, requestFromFlags(cmd))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func requestFromFlags(cmd *cli.Command) domain.JobRequest {
	return domain.JobRequest{
		ScriptPath:  cmd.String("script"),
		InitialDate: cmd.String("initial"),
		FinalDate:   cmd.String("final"),
		Email:       cmd.String("email"),
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
