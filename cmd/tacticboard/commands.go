package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/lineupkit/tacticboard/internal/dispatcher"
	"github.com/lineupkit/tacticboard/internal/storage/tacticfile"
	"github.com/lineupkit/tacticboard/internal/timeline"
	"github.com/lineupkit/tacticboard/pkg/core"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func (a *app) commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "info",
			Usage:     "Summarise a tactic file",
			ArgsUsage: "<file>",
			Action:    a.info,
		},
		{
			Name:  "convert",
			Usage: "Convert a tactic file between JSON, gzip JSON and YAML",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: inFlag, Aliases: []string{"i"}, Required: true, Usage: "Input tactic file"},
				&cli.StringFlag{Name: outFlag, Aliases: []string{"o"}, Required: true, Usage: "Output file; the format follows the extension"},
			},
			Action: a.convert,
		},
		{
			Name:      "validate",
			Usage:     "Check tactic files against the timeline invariants",
			ArgsUsage: "<file>...",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: limitFlag, Value: 4, Usage: "Files checked concurrently"},
			},
			Action: a.validate,
		},
		{
			Name:      "play",
			Usage:     "Play a tactic file back and print each frame transition",
			ArgsUsage: "<file>",
			Flags: []cli.Flag{
				&cli.Float64Flag{Name: speedFlag, Usage: "Playback speed multiplier (0.5, 1 or 2)"},
			},
			Action: a.play,
		},
		{
			Name:      "run",
			Usage:     "Run a board command script against a fresh session",
			ArgsUsage: "<script>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: saveFlag, Usage: "Save the resulting tactic to the configured storage"},
				&cli.BoolFlag{Name: keepFlag, Usage: "Continue after a failing command"},
			},
			Action: a.run,
		},
		{
			Name:      "save",
			Usage:     "Store a tactic file in the configured storage",
			ArgsUsage: "<file>",
			Action:    a.save,
		},
		{
			Name:   "list",
			Usage:  "List stored tactics",
			Action: a.list,
		},
		{
			Name:      "export",
			Usage:     "Write a stored tactic to a file",
			ArgsUsage: "<id> <file>",
			Action:    a.export,
		},
		{
			Name:      "delete",
			Usage:     "Delete a stored tactic",
			ArgsUsage: "<id>",
			Action:    a.delete,
		},
	}
}

func requireArgs(cCtx *cli.Context, n int) error {
	if cCtx.NArg() < n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", cCtx.Command.Name, n, cCtx.NArg())
	}
	return nil
}

func (a *app) info(cCtx *cli.Context) error {
	if err := requireArgs(cCtx, 1); err != nil {
		return err
	}
	t, err := tacticfile.ReadFile(cCtx.Args().First())
	if err != nil {
		return err
	}
	writeInfo(a.stdout, t)
	return nil
}

func writeInfo(w io.Writer, t core.Tactic) {
	fmt.Fprintf(w, "id:       %s\n", t.ID)
	fmt.Fprintf(w, "name:     %s\n", t.Name)
	fmt.Fprintf(w, "frames:   %d\n", len(t.Frames))
	fmt.Fprintf(w, "duration: %s\n", t.TotalDuration())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tDURATION\tPLAYERS\tBALL\tSTROKES")
	for i, f := range t.Frames {
		ball := "-"
		if f.Ball != nil {
			ball = fmt.Sprintf("%.2f,%.2f", f.Ball.X, f.Ball.Y)
			if !f.Ball.Visible {
				ball += " (hidden)"
			}
		}
		fmt.Fprintf(tw, "%d\t%dms\t%d\t%s\t%d\n", i, f.DurationMs, len(f.PlayerPositions), ball, len(f.Strokes))
	}
	tw.Flush()
}

func (a *app) convert(cCtx *cli.Context) error {
	in, out := cCtx.String(inFlag), cCtx.String(outFlag)
	t, err := tacticfile.ReadFile(in)
	if err != nil {
		return err
	}
	if err := tacticfile.WriteFile(out, t); err != nil {
		return err
	}
	a.rt.logger.Info("Converted tactic file", "in", in, "out", out, "tacticId", t.ID)
	fmt.Fprintf(a.stdout, "wrote %s\n", out)
	return nil
}

// validation is the outcome of checking one file.
type validation struct {
	path string
	err  error
}

func (a *app) validate(cCtx *cli.Context) error {
	if err := requireArgs(cCtx, 1); err != nil {
		return err
	}
	paths := cCtx.Args().Slice()
	results := make([]validation, len(paths))

	g, ctx := errgroup.WithContext(cCtx.Context)
	g.SetLimit(max(1, cCtx.Int(limitFlag)))
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = validation{path: p, err: validateFile(p)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(a.stdout, "FAIL %s\n", r.path)
			for _, line := range strings.Split(r.err.Error(), "\n") {
				fmt.Fprintf(a.stdout, "  %s\n", line)
			}
			continue
		}
		fmt.Fprintf(a.stdout, "ok   %s\n", r.path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(paths))
	}
	return nil
}

// validateFile checks the stored values and that an editing session
// accepts the tactic unchanged.
func validateFile(path string) error {
	t, err := tacticfile.ReadFile(path)
	if err != nil {
		return err
	}
	if err := t.Check(); err != nil {
		return err
	}
	store := timeline.New(timeline.Options{})
	if !store.Load(t) {
		return errors.New("session rejected the tactic")
	}
	if got := store.Export(); len(got.Frames) != len(t.Frames) {
		return fmt.Errorf("session holds %d frames, file has %d", len(got.Frames), len(t.Frames))
	}
	return nil
}

func (a *app) play(cCtx *cli.Context) error {
	if err := requireArgs(cCtx, 1); err != nil {
		return err
	}
	t, err := tacticfile.ReadFile(cCtx.Args().First())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt)
	defer stop()

	s, err := a.rt.newSession(ctx, nil)
	if err != nil {
		return err
	}
	defer s.close()

	s.store.Load(t)
	if cCtx.IsSet(speedFlag) {
		s.store.SetSpeed(cCtx.Float64(speedFlag))
	}

	last := -1
	unwatch := s.store.Watch(func(st timeline.State) {
		if !st.Playback.IsPlaying || st.Playback.CurrentFrameIndex == last {
			return
		}
		last = st.Playback.CurrentFrameIndex
		fmt.Fprintf(a.stdout, "frame %d/%d\n", last+1, st.FrameCount())
	})
	defer unwatch()

	if !s.scheduler.Start(ctx) {
		return fmt.Errorf("tactic %q needs at least two frames to play", t.Name)
	}
	s.scheduler.Wait()

	st := s.store.State()
	fmt.Fprintf(a.stdout, "stopped at frame %d/%d\n", st.Playback.CurrentFrameIndex+1, st.FrameCount())
	return nil
}

func (a *app) run(cCtx *cli.Context) error {
	if err := requireArgs(cCtx, 1); err != nil {
		return err
	}
	f, err := os.Open(cCtx.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	backend, err := a.rt.openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	s, err := a.rt.newSession(cCtx.Context, backend)
	if err != nil {
		return err
	}

	runErr := runScript(f, s.dispatcher, a.stdout, cCtx.Bool(keepFlag))
	if runErr == nil && cCtx.Bool(saveFlag) {
		_, runErr = s.dispatcher.Dispatch(dispatcher.Event{Command: ":TACTIC:SAVE:"})
	}
	// drains the save queue
	s.close()
	if runErr != nil {
		return runErr
	}

	summary, err := json.Marshal(s.service.Summary())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\n", summary)
	return nil
}

// runScript dispatches one command per line. Fields are separated by
// spaces; quote a field that contains spaces. Lines starting with # are
// comments.
func runScript(r io.Reader, d *dispatcher.Dispatcher, out io.Writer, keepGoing bool) error {
	cr := csv.NewReader(r)
	cr.Comma = ' '
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var failures []error
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("script: %w", err)
		}
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		line, _ := cr.FieldPos(0)

		res, err := d.Dispatch(dispatcher.Event{Command: rec[0], Args: rec[1:]})
		if err != nil {
			err = fmt.Errorf("line %d: %s: %w", line, rec[0], err)
			fmt.Fprintf(out, "%s error: %v\n", rec[0], err)
			if !keepGoing {
				return err
			}
			failures = append(failures, err)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", rec[0], formatResult(res))
	}
	return errors.Join(failures...)
}

func formatResult(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case bool, string:
		return fmt.Sprint(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func (a *app) save(cCtx *cli.Context) error {
	if err := requireArgs(cCtx, 1); err != nil {
		return err
	}
	t, err := tacticfile.ReadFile(cCtx.Args().First())
	if err != nil {
		return err
	}
	if err := t.Check(); err != nil {
		return fmt.Errorf("refusing to store invalid tactic: %w", err)
	}
	backend, err := a.rt.openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.SaveTactic(&t); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\n", t.ID)
	return nil
}

func (a *app) list(cCtx *cli.Context) error {
	backend, err := a.rt.openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	list, err := backend.ListTactics()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFRAMES\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Name, s.FrameCount, s.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func (a *app) export(cCtx *cli.Context) error {
	if err := requireArgs(cCtx, 2); err != nil {
		return err
	}
	backend, err := a.rt.openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	t, err := backend.LoadTactic(cCtx.Args().Get(0))
	if err != nil {
		return err
	}
	out := cCtx.Args().Get(1)
	if err := tacticfile.WriteFile(out, *t); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "wrote %s\n", out)
	return nil
}

func (a *app) delete(cCtx *cli.Context) error {
	if err := requireArgs(cCtx, 1); err != nil {
		return err
	}
	backend, err := a.rt.openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	return backend.DeleteTactic(cCtx.Args().First())
}
