package main

import (
	"context"
	"fmt"
	"os"

	"github.com/infracollect/s3zip/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var allowedEnvFlag = &cli.StringSliceFlag{
	Name:  "allowed-env",
	Usage: "Environment variables allowed in job configuration (can be repeated)",
}

var zipCommand = &cli.Command{
	Name:  "zip",
	Usage: "Archive the objects selected by a job file",
	Flags: []cli.Flag{
		allowedEnvFlag,
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Write the archive to stdout even when it is a terminal",
		},
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "job",
			UsageText: "The job file to run, or - to read it from stdin",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		jobFilename := command.StringArg("job")
		if jobFilename == "" {
			return fmt.Errorf("no job file provided")
		}

		job, err := loadJob(jobFilename, command.StringSlice("allowed-env"))
		if err != nil {
			return err
		}
		logger = logger.With(zap.String("job_name", job.Metadata.Name))

		if writesToStdout(job) && stdoutIsTerminal() && !command.Bool("force") {
			return fmt.Errorf("refusing to write a zip archive to a terminal, redirect stdout or configure an output sink")
		}

		r, err := runner.New(ctx, logger.Named("runner"), job)
		if err != nil {
			return fmt.Errorf("failed to create runner: %w", err)
		}

		summary, err := r.Run(ctx)
		if err != nil {
			return fmt.Errorf("failed to run job: %w", err)
		}

		if isInteractive(ctx) {
			fmt.Fprintf(os.Stderr, "✓ Archived %d of %d object(s) (%d bytes) into %s -> %s\n",
				summary.Archived, summary.Listed, summary.Bytes, summary.ArchiveName, summary.Sink)
		}

		return nil
	},
}
