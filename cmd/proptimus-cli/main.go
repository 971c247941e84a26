// Command proptimus-cli submits optimisation jobs and fetches their
// results from the terminal, using the same configuration as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sb-ncbr/proptimus-web/internal/archive"
	"github.com/sb-ncbr/proptimus-web/internal/core"
	"github.com/sb-ncbr/proptimus-web/internal/jobs"
	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/results"
	"github.com/sb-ncbr/proptimus-web/internal/util"
	"github.com/spf13/pflag"
)

const usage = `Usage: proptimus-cli <command> [flags]

Commands:
  submit    --code ID | --file PATH  [--ph 7.0] [--wait] [--out DIR]
  status    <job key>
  download  <job key> [--out DIR]
  hints     <text>
  version
`

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	app, err := core.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error during application setup: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, app, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *core.App, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "submit":
		return runSubmit(ctx, app, rest, stdout, stderr)
	case "status":
		return runStatus(ctx, app, rest, stdout)
	case "download":
		return runDownload(ctx, app, rest, stdout, stderr)
	case "hints":
		return runHints(ctx, app, rest, stdout)
	case "version":
		fmt.Fprintf(stdout, "%s %s\n", app.Config.App.Name, app.Version)
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func runSubmit(ctx context.Context, app *core.App, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("submit", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	code := fs.StringP("code", "c", "", "UniProt or PDB identifier")
	file := fs.StringP("file", "f", "", "structure file to upload (.pdb or .cif)")
	ph := fs.String("ph", "7.0", "pH of the optimisation, sent as typed")
	wait := fs.BoolP("wait", "w", false, "follow progress until the job finishes")
	out := fs.StringP("out", "o", "", "extract the result bundle into this directory (implies --wait)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var (
		name string
		data []byte
	)
	if *file != "" {
		var err error
		if data, err = os.ReadFile(*file); err != nil {
			return err
		}
		if limit := app.Config.UploadLimitBytes(); int64(len(data)) > limit {
			return fmt.Errorf("%s is larger than %d KB", *file, app.Config.Upload.FileSizeLimitKB)
		}
		name = filepath.Base(*file)
	}
	req := models.NewJobRequest(*code, name, data, *ph)

	key, err := app.Submitter.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, key)

	if !*wait && *out == "" {
		return nil
	}
	snap, err := follow(ctx, app, key, stderr)
	if err != nil {
		return err
	}
	if snap.Status == models.StatusError {
		return fmt.Errorf("optimization failed: %s", snap.Message)
	}
	if *out != "" {
		return downloadInto(ctx, app, key, *out, stdout)
	}
	return nil
}

// follow polls progress until the job is terminal, printing every snapshot.
func follow(ctx context.Context, app *core.App, key models.JobKey, stderr io.Writer) (models.ProgressSnapshot, error) {
	poller := jobs.NewPoller(app.API, app.Query, app.Config.Polling.Interval)
	return poller.Poll(ctx, key, func(s models.ProgressSnapshot) {
		fmt.Fprintf(stderr, "%3.0f%%  %s\n", s.Percent, results.StatusMessage(s.Percent, s.Status, s.Message))
	})
}

func runStatus(ctx context.Context, app *core.App, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	snap, err := app.API.RunningProgress(ctx, models.JobKey(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\t%.0f%%\t%s\n", snap.Status, snap.Percent, results.StatusMessage(snap.Percent, snap.Status, snap.Message))
	return nil
}

func runDownload(ctx context.Context, app *core.App, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("download", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.StringP("out", "o", "", "extract into this directory instead of saving the zip")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	key := models.JobKey(fs.Arg(0))

	if *out != "" {
		return downloadInto(ctx, app, key, *out, stdout)
	}
	data, err := app.API.DownloadFiles(ctx, key)
	if err != nil {
		return err
	}
	name := util.SafeFileName(results.DownloadName(key))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(stdout, name)
	return nil
}

func downloadInto(ctx context.Context, app *core.App, key models.JobKey, dir string, stdout io.Writer) error {
	data, err := app.API.DownloadFiles(ctx, key)
	if err != nil {
		return err
	}
	if err := util.EnsureWritableDir(dir); err != nil {
		return err
	}
	files, err := archive.Extract(ctx, results.DownloadName(key), data, dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(stdout, f)
	}
	return nil
}

func runHints(ctx context.Context, app *core.App, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	hints, err := app.Hinter.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	for _, h := range hints {
		fmt.Fprintln(stdout, h)
	}
	return nil
}
