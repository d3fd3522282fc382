package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/bookingclient"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/period"
	"github.com/codr1/venuecal/internal/viewstate"
)

// maxParallelSlotQueries bounds concurrent slot requests for the slots command.
const maxParallelSlotQueries = 4

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current calendar view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.restore(cmd.Context())
			return render(cmd.OutOrStdout(), a.session)
		},
	}
}

func navigateCmd(a *app, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := period.ParseDirection(name)
			if err != nil {
				return err
			}
			a.restore(cmd.Context())
			if err := a.session.Navigate(cmd.Context(), dir); err != nil {
				a.logger.Debug().Err(err).Msg("Fetch after navigation failed")
			}
			return render(cmd.OutOrStdout(), a.session)
		},
	}
}

func todayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Move the view to today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.restore(cmd.Context())
			if err := a.session.GoToToday(cmd.Context()); err != nil {
				a.logger.Debug().Err(err).Msg("Fetch after navigation failed")
			}
			return render(cmd.OutOrStdout(), a.session)
		},
	}
}

func gotoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "goto YYYY-MM-DD",
		Short: "Move the view to a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := datetime.ParseDate(args[0])
			if err != nil {
				return err
			}
			a.restore(cmd.Context())
			if err := a.session.GoToDate(cmd.Context(), d); err != nil {
				a.logger.Debug().Err(err).Msg("Fetch after navigation failed")
			}
			return render(cmd.OutOrStdout(), a.session)
		},
	}
}

func viewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "view month|week|day|list",
		Short:     "Switch the view type",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(period.Month), string(period.Week), string(period.Day), string(period.List)},
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := period.ParseViewType(args[0])
			if err != nil {
				return err
			}
			a.restore(cmd.Context())
			if err := a.session.SetViewType(cmd.Context(), view); err != nil {
				a.logger.Debug().Err(err).Msg("Fetch after view change failed")
			}
			return render(cmd.OutOrStdout(), a.session)
		},
	}
}

func venuesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "venues",
		Short: "List venues, the current selection and bookings in view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.restore(cmd.Context())
			snap := a.session.Snapshot()
			return renderVenues(cmd.OutOrStdout(), snap.Venues, snap.State.SelectedVenues, snap.EventCountByVenue)
		},
	}
}

func toggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle VENUE_ID",
		Short: "Add or remove a venue from the selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.restore(cmd.Context())
			if err := a.session.ToggleVenue(cmd.Context(), args[0]); err != nil {
				a.logger.Debug().Err(err).Msg("Fetch after selection change failed")
			}
			return render(cmd.OutOrStdout(), a.session)
		},
	}
}

func selectCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "select [VENUE_ID...]",
		Short: "Replace the venue selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("name at least one venue or pass --all")
			}
			a.restore(cmd.Context())
			var err error
			if all {
				err = a.session.SelectAllVenues(cmd.Context())
			} else {
				err = a.session.SetSelectedVenues(cmd.Context(), viewstate.Venues(args...))
			}
			if err != nil {
				a.logger.Debug().Err(err).Msg("Fetch after selection change failed")
			}
			return render(cmd.OutOrStdout(), a.session)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Select every venue")
	return cmd
}

func sidebarCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sidebar",
		Short: "Toggle the persisted sidebar flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.restore(cmd.Context())
			if err := a.session.ToggleSidebar(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sidebar expanded: %v\n", a.session.State().SidebarExpanded)
			return nil
		},
	}
}

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Re-fetch the bookings of the current view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.restore(cmd.Context())
			syncErr := a.session.ForceSync(cmd.Context())
			if err := render(cmd.OutOrStdout(), a.session); err != nil {
				return err
			}
			return syncErr
		},
	}
}

func slotsCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "slots VENUE_ID...",
		Short: "Show slot availability for venues on a day",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := datetime.Today(datetime.SystemClock(), a.session.Location())
			if date != "" {
				d, err := datetime.ParseDate(date)
				if err != nil {
					return err
				}
				day = d
			}

			results := make([]bookingclient.SlotsResponse, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(maxParallelSlotQueries)
			for i, id := range args {
				g.Go(func() error {
					resp, err := a.client.VenueSlots(ctx, id, day)
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					results[i] = resp
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return renderSlots(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to inspect (YYYY-MM-DD, default today)")
	return cmd
}

type draftFlags struct {
	minutes  int
	label    string
	status   string
	clientID string
	notes    string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.minutes, "minutes", 0, "Duration in minutes (default one slot)")
	cmd.Flags().StringVar(&f.label, "label", "", "Booking label")
	cmd.Flags().StringVar(&f.status, "status", "", "Booking status (pending, confirmed, cancelled)")
	cmd.Flags().StringVar(&f.clientID, "client", "", "Client id")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Free-form notes")
}

func (f *draftFlags) apply(cmd *cobra.Command, draft *booking.Draft) error {
	if f.minutes < 0 {
		return errors.New("--minutes must be positive")
	}
	if f.minutes > 0 {
		draft.EndAt = draft.StartAt.Add(time.Duration(f.minutes) * time.Minute)
	}
	if cmd.Flags().Changed("status") {
		status, err := booking.ParseStatus(f.status)
		if err != nil {
			return err
		}
		draft.Status = status
	}
	if cmd.Flags().Changed("label") {
		draft.Label = f.label
	}
	if cmd.Flags().Changed("client") {
		draft.ClientID = f.clientID
	}
	if cmd.Flags().Changed("notes") {
		draft.Notes = f.notes
	}
	return nil
}

func bookCmd(a *app) *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "book VENUE_ID YYYY-MM-DD HH:MM",
		Short: "Book a free slot",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := datetime.ParseDate(args[1])
			if err != nil {
				return err
			}
			at, err := datetime.ParseTimeOfDay(args[2])
			if err != nil {
				return err
			}

			a.restore(cmd.Context())
			// Move to the booked day so the local check sees its bookings.
			if err := a.session.GoToDate(cmd.Context(), day); err != nil {
				a.logger.Debug().Err(err).Msg("Fetch before booking failed")
			}
			draft, err := a.session.OnSlotClick(args[0], day, at)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &draft); err != nil {
				return err
			}

			created, err := a.session.CreateBooking(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created booking %s\n", created.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func moveCmd(a *app) *cobra.Command {
	var (
		flags draftFlags
		date  string
		at    string
		venue string
	)
	cmd := &cobra.Command{
		Use:   "move BOOKING_ID",
		Short: "Change a booking's time, venue or details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			a.restore(ctx)

			current, err := a.session.OnBookingSelect(id)
			if errors.Is(err, booking.ErrNotFound) {
				// Not in the current view; ask the server directly.
				current, err = a.client.GetBooking(ctx, id)
			}
			if err != nil {
				return err
			}
			defer a.session.OnCancelEdit()

			loc := a.session.Location()
			draft := booking.DraftFrom(current)
			day := datetime.DateOf(current.StartAt, loc)
			start := datetime.TimeOfDayOf(current.StartAt, loc)
			if date != "" {
				if day, err = datetime.ParseDate(date); err != nil {
					return err
				}
			}
			if at != "" {
				if start, err = datetime.ParseTimeOfDay(at); err != nil {
					return err
				}
			}
			if venue != "" {
				draft.VenueID = venue
			}
			draft.StartAt = start.On(day, loc)
			draft.EndAt = draft.StartAt.Add(current.Duration())
			if err := flags.apply(cmd, &draft); err != nil {
				return err
			}

			if err := a.session.GoToDate(ctx, day); err != nil {
				a.logger.Debug().Err(err).Msg("Fetch before update failed")
			}
			updated, err := a.session.UpdateBooking(ctx, id, draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated booking %s\n", updated.ID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&date, "date", "", "New day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&at, "at", "", "New start time (HH:MM)")
	cmd.Flags().StringVar(&venue, "venue", "", "New venue id")
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete BOOKING_ID",
		Short: "Delete a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.restore(cmd.Context())
			if err := a.session.OnBookingDelete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted booking %s\n", args[0])
			return nil
		},
	}
}
