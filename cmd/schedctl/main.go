// Command schedctl runs the slot pipeline offline against JSON fixtures.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jdavido74/medical-pro/internal/scheduling"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schedctl",
		Short:         "Inspect slot plans and booking chains without a database",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(slotsCmd(), validateCmd(), templatesCmd())
	return root
}

type planFlags struct {
	fixture      string
	practitioner string
	date         string
	duration     int
	exclude      string
}

func (f *planFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.fixture, "fixture", "f", "", "fixture JSON file")
	cmd.Flags().StringVarP(&f.practitioner, "practitioner", "p", "", "practitioner id")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "day as YYYY-MM-DD")
	cmd.Flags().IntVar(&f.duration, "duration", 0, "slot length in minutes (fixture granularity when 0)")
	cmd.Flags().StringVar(&f.exclude, "exclude", "", "appointment id to ignore when checking conflicts")
	_ = cmd.MarkFlagRequired("fixture")
	_ = cmd.MarkFlagRequired("practitioner")
	_ = cmd.MarkFlagRequired("date")
}

func (f *planFlags) parse() (uuid.UUID, scheduling.Date, uuid.UUID, error) {
	id, err := uuid.Parse(f.practitioner)
	if err != nil {
		return uuid.Nil, scheduling.Date{}, uuid.Nil, fmt.Errorf("invalid practitioner id: %w", err)
	}
	d, err := scheduling.ParseDate(f.date)
	if err != nil {
		return uuid.Nil, scheduling.Date{}, uuid.Nil, err
	}
	exclude := uuid.Nil
	if f.exclude != "" {
		if exclude, err = uuid.Parse(f.exclude); err != nil {
			return uuid.Nil, scheduling.Date{}, uuid.Nil, fmt.Errorf("invalid exclude id: %w", err)
		}
	}
	return id, d, exclude, nil
}

func slotsCmd() *cobra.Command {
	var flags planFlags
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the annotated slot grid for one practitioner day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, d, exclude, err := flags.parse()
			if err != nil {
				return err
			}
			fx, err := loadFixture(flags.fixture)
			if err != nil {
				return err
			}
			planner, err := fx.planner()
			if err != nil {
				return err
			}
			plan, err := planner.DaySlots(cmd.Context(), scheduling.Query{
				PractitionerID:       id,
				Date:                 d,
				DurationMinutes:      flags.duration,
				ExcludeAppointmentID: exclude,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), plan)
		},
	}
	flags.bind(cmd)
	return cmd
}

func validateCmd() *cobra.Command {
	var (
		flags      planFlags
		start      string
		additional []string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a primary slot plus additional slots against the day plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, d, exclude, err := flags.parse()
			if err != nil {
				return err
			}
			fx, err := loadFixture(flags.fixture)
			if err != nil {
				return err
			}
			planner, err := fx.planner()
			if err != nil {
				return err
			}
			req := scheduling.BookingRequest{
				PractitionerID:       id,
				Date:                 d,
				DurationMinutes:      flags.duration,
				Primary:              scheduling.TimeWindow{Start: start},
				ExcludeAppointmentID: exclude,
			}
			for _, s := range additional {
				req.Additional = append(req.Additional, scheduling.TimeWindow{Start: s})
			}
			v, _, err := planner.ValidateBooking(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), v); err != nil {
				return err
			}
			if !v.Valid {
				return v.Err()
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&start, "start", "s", "", "primary slot start (HH:MM)")
	cmd.Flags().StringSliceVarP(&additional, "additional", "a", nil, "additional slot starts (HH:MM)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates [name]",
		Short: "List availability templates, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range scheduling.TemplateNames() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			week, err := scheduling.Template(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), week)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
