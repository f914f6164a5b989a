package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/buildtrigger/internal/config"
	"git.home.luguber.info/inful/buildtrigger/internal/events"
	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
	"git.home.luguber.info/inful/buildtrigger/internal/pipeline"
	"git.home.luguber.info/inful/buildtrigger/internal/runlog"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	ShowLog bool `help:"Print this run's log entries when it finishes"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := RunOnce(ctx, cfg, os.Stdout, r.ShowLog)
	if err != nil {
		return err
	}
	return res.AsError()
}

// RunOnce executes a single pipeline run for cfg and reports it on out.
func RunOnce(ctx context.Context, cfg *config.Config, out io.Writer, showLog bool) (pipeline.Result, error) {
	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return pipeline.Result{}, err
	}
	log := runlog.New(store, slog.Default())
	defer func() {
		if cerr := log.Close(); cerr != nil {
			slog.Warn("Failed to close run log", logfields.Error(cerr))
		}
	}()

	var opts []pipeline.Option
	if sq, ok := store.(*runlog.SQLiteStore); ok {
		if last, lerr := sq.LastRunID(ctx); lerr == nil {
			opts = append(opts, pipeline.WithLastRunID(last))
		}
	}
	if cfg.Events.NATSURL != "" {
		if pub, perr := events.NewNATSPublisher(cfg.Events); perr != nil {
			slog.Warn("Run events disabled", logfields.Error(perr))
		} else {
			defer func() { _ = pub.Close() }()
			opts = append(opts, pipeline.WithPublisher(pub))
		}
	}

	components, err := pipeline.ComponentsFromConfig(cfg)
	if err != nil {
		return pipeline.Result{}, err
	}
	res, err := pipeline.New(components, log, opts...).TriggerRun(ctx, "cli")
	if err != nil {
		return res, err
	}

	if res.Succeeded() {
		_, _ = fmt.Fprintf(out, "run %d succeeded: %s\n", res.RunID, res.ArtifactPath)
	} else {
		_, _ = fmt.Fprintf(out, "run %d failed during %s: %s\n", res.RunID, res.FailedStage, res.Message)
	}

	if showLog {
		entries, rerr := log.ReadAll(ctx)
		if rerr != nil {
			return res, rerr
		}
		var mine []runlog.Entry
		for _, e := range entries {
			if e.RunID == res.RunID {
				mine = append(mine, e)
			}
		}
		_, _ = io.WriteString(out, runlog.Text(mine))
	}
	return res, nil
}
