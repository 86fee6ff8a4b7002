package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/calsync/internal/convert"
	"github.com/and161185/calsync/internal/ics"
	"github.com/and161185/calsync/internal/model"
)

func newEventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List and edit calendar events",
	}
	cmd.AddCommand(
		newEventsListCmd(a),
		newEventsCreateCmd(a),
		newEventsUpdateCmd(a),
		newEventsDeleteCmd(a),
		newEventsExportCmd(a),
		newEventsImportCmd(a),
	)
	return cmd
}

// load resumes the session and loads the events.
func (a *app) load(cmd *cobra.Command) error {
	if _, err := a.resume(cmd.Context()); err != nil {
		return err
	}
	return a.events.Load(cmd.Context())
}

// selectEvent makes the loaded event with id the active one.
func (a *app) selectEvent(id string) (model.CalendarEvent, error) {
	for _, ev := range a.events.Events() {
		if ev.ID == id {
			a.events.SetActive(&ev)
			return ev, nil
		}
	}
	return model.CalendarEvent{}, fmt.Errorf("event %q not found", id)
}

func newEventsListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			if asJSON {
				wire := make([]convert.Event, 0, len(a.events.Events()))
				for _, ev := range a.events.Events() {
					e := convert.FromModelEvent(ev)
					if ev.User != nil {
						e.User = &convert.EventUser{UID: ev.User.UID, Name: ev.User.Name}
					}
					wire = append(wire, e)
				}
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(wire)
			}
			return printEvents(a.out, a.events.Events())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printEvents(w io.Writer, events []model.CalendarEvent) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tTITLE\tOWNER")
	for _, ev := range events {
		owner := ""
		if ev.User != nil {
			owner = ev.User.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ev.ID,
			ev.Start.Local().Format(time.DateTime), ev.End.Local().Format(time.DateTime), ev.Title, owner)
	}
	return tw.Flush()
}

type eventFlags struct {
	title, notes, start, end string
	duration                 time.Duration
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "event title")
	cmd.Flags().StringVar(&f.notes, "notes", "", "event notes")
	cmd.Flags().StringVar(&f.start, "start", "", "start, RFC3339 or 2006-01-02 15:04:05")
	cmd.Flags().StringVar(&f.end, "end", "", "end, same formats as --start")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "length of the event, instead of --end")
}

// apply overwrites the fields of ev that were set on the command line.
func (f *eventFlags) apply(cmd *cobra.Command, ev *model.CalendarEvent) error {
	if cmd.Flags().Changed("title") {
		ev.Title = f.title
	}
	if cmd.Flags().Changed("notes") {
		ev.Notes = f.notes
	}
	if cmd.Flags().Changed("start") {
		t, err := convert.ParseTime(f.start)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		ev.Start = t
	}
	switch {
	case cmd.Flags().Changed("end"):
		t, err := convert.ParseTime(f.end)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		ev.End = t
	case f.duration > 0:
		ev.End = ev.Start.Add(f.duration)
	}
	return nil
}

func newEventsCreateCmd(a *app) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.duration == 0 && !cmd.Flags().Changed("end") {
				f.duration = time.Hour
			}
			var draft model.CalendarEvent
			if err := f.apply(cmd, &draft); err != nil {
				return err
			}
			if err := a.load(cmd); err != nil {
				return err
			}
			if err := a.events.Save(cmd.Context(), draft); err != nil {
				return err
			}
			all := a.events.Events()
			fmt.Fprintln(a.out, all[len(all)-1].ID)
			return nil
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newEventsUpdateCmd(a *app) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of an event you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			ev, err := a.selectEvent(args[0])
			if err != nil {
				return err
			}
			if err := f.apply(cmd, &ev); err != nil {
				return err
			}
			return a.events.Save(cmd.Context(), ev)
		},
	}
	f.register(cmd)
	return cmd
}

func newEventsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an event you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			if _, err := a.selectEvent(args[0]); err != nil {
				return err
			}
			return a.events.Delete(cmd.Context())
		},
	}
}

func newEventsExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all events as an iCalendar (.ics) document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err := a.load(cmd); err != nil {
				return err
			}
			w := a.out
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}
			return ics.Encode(w, a.events.Events(), time.Now())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

func newEventsImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create one event per VEVENT of an iCalendar file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			drafts, err := ics.Decode(r)
			if err != nil {
				return err
			}
			if err := a.load(cmd); err != nil {
				return err
			}
			var failed []error
			for _, d := range drafts {
				if err := a.events.Save(cmd.Context(), d); err != nil {
					failed = append(failed, fmt.Errorf("%q: %w", d.Title, err))
				}
			}
			fmt.Fprintf(a.out, "imported %d of %d events\n", len(drafts)-len(failed), len(drafts))
			return errors.Join(failed...)
		},
	}
}
