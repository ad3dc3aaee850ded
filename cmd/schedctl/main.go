// schedctl drives the scheduling workflow from the command line against a
// running scheduling service (usually the stub server). Every invocation
// logs in with the given email, so the stub registers users on first use.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lorenzolpandolfo/agenda/internal/apiclient"
	"github.com/lorenzolpandolfo/agenda/internal/availability"
	appconfig "github.com/lorenzolpandolfo/agenda/internal/config"
	"github.com/lorenzolpandolfo/agenda/internal/scheduling"
	"github.com/lorenzolpandolfo/agenda/internal/session"
	"github.com/lorenzolpandolfo/agenda/internal/timewindow"
	"github.com/lorenzolpandolfo/agenda/pkg/logging"
)

var (
	flagAPI    string
	flagEmail  string
	flagRole   string
	flagStatus string

	cfg *appconfig.Config
)

func main() {
	_ = godotenv.Load()
	cfg = appconfig.Load()

	root := &cobra.Command{
		Use:           "schedctl",
		Short:         "Interact with the appointment scheduling service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagAPI, "api", cfg.APIBaseURL, "scheduling service base URL")
	root.PersistentFlags().StringVar(&flagEmail, "email", "", "account email (required)")
	root.PersistentFlags().StringVar(&flagRole, "role", string(availability.RolePatient), "account role: PATIENT or PROFESSIONAL")
	root.PersistentFlags().StringVar(&flagStatus, "status", "", "account status: READY or WAITING_VALIDATION")

	root.AddCommand(availabilityCmd(), scheduleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", friendly(err))
		os.Exit(1)
	}
}

func availabilityCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "availability", Short: "Manage open time slots"}

	var dateStr, startStr, endStr string
	create := &cobra.Command{
		Use:   "create",
		Short: "Publish a new open slot (times in Brasília wall-clock)",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			date, start, end, err := parseParts(dateStr, startStr, endStr)
			if err != nil {
				return err
			}
			known, err := env.workflow.KnownWindows(cmd.Context(), env.actor.ID)
			if err != nil {
				return err
			}
			id, w, err := env.workflow.CreateAvailability(cmd.Context(), env.actor, date, start, end, known)
			if err != nil {
				return err
			}
			parts := w.DisplayParts(timewindow.ReferenceZone)
			fmt.Printf("created availability %s: %s %s-%s (%s)\n", id, parts.Date, parts.Start, parts.End, parts.Weekday)
			return nil
		},
	}
	create.Flags().StringVar(&dateStr, "date", "", "date as YYYY-MM-DD")
	create.Flags().StringVar(&startStr, "start", "", "start time as HH:MM")
	create.Flags().StringVar(&endStr, "end", "", "end time as HH:MM")

	var professional, filter, status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			params := apiclient.ListAvailabilitiesParams{TimeFilter: timewindow.TimeFilter(filter), Limit: cfg.PageLimit}
			if professional == "me" {
				params.ProfessionalID = env.actor.ID
			} else if professional != "" {
				id, err := uuid.Parse(professional)
				if err != nil {
					return fmt.Errorf("invalid --professional: %w", err)
				}
				params.ProfessionalID = id
			}
			if status != "" {
				parsed, err := availability.ParseStatus(status)
				if err != nil {
					return err
				}
				params.Status = parsed
			}
			items, err := env.workflow.ListAvailabilities(cmd.Context(), params)
			if err != nil {
				return err
			}
			for _, a := range items {
				parts := a.Window.DisplayParts(timewindow.ReferenceZone)
				owner := a.OwnerID.String()
				if a.Owner != nil {
					owner = a.Owner.Name
				}
				fmt.Printf("%s  %s %s-%s  %-9s  %s\n", a.ID, parts.Date, parts.Start, parts.End, a.Status, owner)
			}
			return nil
		},
	}
	list.Flags().StringVar(&professional, "professional", "", "professional id, or 'me'")
	list.Flags().StringVar(&filter, "filter", string(timewindow.FilterAll), "DAY, WEEK, MONTH or ALL")
	list.Flags().StringVar(&status, "status", "", "filter by status")

	var slotID, to string
	change := &cobra.Command{
		Use:   "change-status",
		Short: "Cancel, complete or re-publish one of your slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(slotID)
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}
			target, err := availability.ParseStatus(to)
			if err != nil {
				return err
			}
			items, err := env.workflow.ListAvailabilities(cmd.Context(), apiclient.ListAvailabilitiesParams{
				ProfessionalID: env.actor.ID,
				TimeFilter:     timewindow.FilterAll,
				Limit:          cfg.PageLimit,
			})
			if err != nil {
				return err
			}
			for _, a := range items {
				if a.ID == id {
					updated, err := env.workflow.ChangeStatus(cmd.Context(), env.actor, a, target)
					if err != nil {
						return err
					}
					fmt.Printf("availability %s is now %s\n", updated.ID, updated.Status)
					return nil
				}
			}
			return fmt.Errorf("availability %s not found among your slots", id)
		},
	}
	change.Flags().StringVar(&slotID, "id", "", "availability id")
	change.Flags().StringVar(&to, "to", "", "target status")

	cmd.AddCommand(create, list, change)
	return cmd
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "schedule", Short: "Manage reservations"}

	var availabilityID string
	create := &cobra.Command{
		Use:   "create",
		Short: "Reserve an open slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(availabilityID)
			if err != nil {
				return fmt.Errorf("invalid --availability: %w", err)
			}
			scheduleID, err := env.workflow.Reserve(cmd.Context(), env.actor, id)
			if err != nil {
				return err
			}
			fmt.Printf("created schedule %s\n", scheduleID)
			return nil
		},
	}
	create.Flags().StringVar(&availabilityID, "availability", "", "availability id to reserve")

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List your reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			items, err := env.workflow.ListSchedules(cmd.Context(), timewindow.TimeFilter(filter))
			if err != nil {
				return err
			}
			for _, s := range items {
				start := s.StartTime.In(timewindow.ReferenceZone)
				other := ""
				if s.Other != nil {
					other = s.Other.Name
				}
				fmt.Printf("%s  %s  %-9s  %s\n", s.ID, start.Format("02/01/2006 15:04"), s.Status, other)
			}
			return nil
		},
	}
	list.Flags().StringVar(&filter, "filter", string(timewindow.FilterAll), "DAY, WEEK, MONTH or ALL")

	cmd.AddCommand(create, list)
	return cmd
}

// env bundles the per-invocation wiring: an authenticated session, the API
// client, the workflow and the actor derived from the login response.
type env struct {
	workflow *scheduling.Workflow
	actor    scheduling.Actor
}

func connect(ctx context.Context) (*env, error) {
	if flagEmail == "" {
		return nil, errors.New("--email is required")
	}

	payload, _ := json.Marshal(map[string]string{
		"email":  flagEmail,
		"role":   flagRole,
		"status": flagStatus,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, flagAPI+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var auth struct {
		AccessToken  string             `json:"access_token"`
		RefreshToken string             `json:"refresh_token"`
		UserData     *availability.User `json:"user_data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("login: decode response: %w", err)
	}
	if auth.UserData == nil {
		return nil, errors.New("login: response missing user data")
	}

	store := session.NewStore()
	store.SetAuthData(auth.AccessToken, auth.RefreshToken, auth.UserData.ID)
	store.SetUser(auth.UserData)

	logger := logging.New("warn")
	client, err := apiclient.New(flagAPI, store, logger)
	if err != nil {
		return nil, err
	}
	client.SetHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout})
	wf := scheduling.New(client, timewindow.ReferenceZone, logger)
	wf.SetPageLimit(cfg.PageLimit)

	return &env{
		workflow: wf,
		actor: scheduling.Actor{
			ID:     auth.UserData.ID,
			Role:   auth.UserData.Role,
			Status: auth.UserData.Status,
		},
	}, nil
}

// friendly translates workflow errors into actionable CLI messages.
func friendly(err error) string {
	switch {
	case errors.Is(err, timewindow.ErrInvalidRange):
		return "the end time must be after the start time"
	case errors.Is(err, scheduling.ErrLocalConflict):
		return "this window conflicts with one of your existing slots"
	case errors.Is(err, scheduling.ErrRemoteConflict):
		return "the service rejected this window: it conflicts with an existing slot"
	case errors.Is(err, scheduling.ErrNotEligible):
		return "your account is not allowed to do this (check role and validation status)"
	case errors.Is(err, scheduling.ErrAlreadyTaken):
		return "this slot was already reserved by someone else"
	case errors.Is(err, scheduling.ErrNoLongerAvailable):
		return "this slot is no longer open for reservation"
	case errors.Is(err, scheduling.ErrSessionExpired):
		return "session expired, please log in again"
	}
	var transition *availability.InvalidTransitionError
	if errors.As(err, &transition) {
		return fmt.Sprintf("cannot move a slot from %s to %s", transition.From, transition.To)
	}
	var remote *scheduling.RemoteError
	if errors.As(err, &remote) {
		return remote.Message
	}
	return err.Error()
}

func parseParts(dateStr, startStr, endStr string) (timewindow.Date, timewindow.TimeOfDay, timewindow.TimeOfDay, error) {
	var zero timewindow.Date
	var zeroT timewindow.TimeOfDay

	d, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return zero, zeroT, zeroT, fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", err)
	}
	s, err := time.Parse("15:04", startStr)
	if err != nil {
		return zero, zeroT, zeroT, fmt.Errorf("invalid --start (want HH:MM): %w", err)
	}
	e, err := time.Parse("15:04", endStr)
	if err != nil {
		return zero, zeroT, zeroT, fmt.Errorf("invalid --end (want HH:MM): %w", err)
	}
	return timewindow.Date{Year: d.Year(), Month: d.Month(), Day: d.Day()},
		timewindow.TimeOfDay{Hour: s.Hour(), Minute: s.Minute()},
		timewindow.TimeOfDay{Hour: e.Hour(), Minute: e.Minute()},
		nil
}
