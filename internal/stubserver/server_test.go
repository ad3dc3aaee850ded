package stubserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzolpandolfo/agenda/internal/apiclient"
	"github.com/lorenzolpandolfo/agenda/internal/availability"
	"github.com/lorenzolpandolfo/agenda/internal/scheduling"
	"github.com/lorenzolpandolfo/agenda/internal/session"
	"github.com/lorenzolpandolfo/agenda/internal/timewindow"
)

type testEnv struct {
	ts *httptest.Server
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := New(NewStore(), "test-secret", time.Hour, nil, NewMetrics(prometheus.NewRegistry()))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts}
}

// login registers the account on first use and returns a wired workflow plus
// the actor it authenticates as.
func (e *testEnv) login(t *testing.T, email string, role availability.Role, status availability.UserStatus) (*scheduling.Workflow, scheduling.Actor) {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"email":  email,
		"role":   string(role),
		"status": string(status),
	})
	resp, err := http.Post(e.ts.URL+"/auth/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var auth struct {
		AccessToken string             `json:"access_token"`
		UserData    *availability.User `json:"user_data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
	require.NotNil(t, auth.UserData)

	store := session.NewStore()
	store.SetAuthData(auth.AccessToken, auth.AccessToken, auth.UserData.ID)
	store.SetUser(auth.UserData)

	client, err := apiclient.New(e.ts.URL, store, nil)
	require.NoError(t, err)

	wf := scheduling.New(client, timewindow.ReferenceZone, nil)
	actor := scheduling.Actor{ID: auth.UserData.ID, Role: auth.UserData.Role, Status: auth.UserData.Status}
	return wf, actor
}

var (
	testDate = timewindow.Date{Year: 2024, Month: time.June, Day: 1}
	nine     = timewindow.TimeOfDay{Hour: 9}
	ten      = timewindow.TimeOfDay{Hour: 10}
	eleven   = timewindow.TimeOfDay{Hour: 11}
	halfNine = timewindow.TimeOfDay{Hour: 9, Minute: 30}
	halfTen  = timewindow.TimeOfDay{Hour: 10, Minute: 30}
)

func TestHealth(t *testing.T) {
	env := newEnv(t)
	resp, err := http.Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPublishAndConflictFlow(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	wf, pro := env.login(t, "helena@example.com", availability.RoleProfessional, availability.UserStatusReady)

	// First slot goes through.
	_, _, err := wf.CreateAvailability(ctx, pro, testDate, nine, ten, nil)
	require.NoError(t, err)

	// Same window again, submitted without local knowledge: the server is
	// the authority and rejects it.
	_, _, err = wf.CreateAvailability(ctx, pro, testDate, halfNine, halfTen, nil)
	assert.ErrorIs(t, err, scheduling.ErrRemoteConflict)

	// With the known windows loaded, the same attempt fails locally.
	known, err := wf.KnownWindows(ctx, pro.ID)
	require.NoError(t, err)
	require.Len(t, known, 1)
	_, _, err = wf.CreateAvailability(ctx, pro, testDate, halfNine, halfTen, known)
	assert.ErrorIs(t, err, scheduling.ErrLocalConflict)

	// Adjacency is not a conflict, locally or remotely.
	_, _, err = wf.CreateAvailability(ctx, pro, testDate, ten, eleven, known)
	require.NoError(t, err)
}

func TestReservationFlow(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	proWF, pro := env.login(t, "helena@example.com", availability.RoleProfessional, availability.UserStatusReady)
	patientWF, patient := env.login(t, "ana@example.com", availability.RolePatient, availability.UserStatusReady)
	rivalWF, rival := env.login(t, "bruno@example.com", availability.RolePatient, availability.UserStatusReady)

	availID, _, err := proWF.CreateAvailability(ctx, pro, testDate, nine, ten, nil)
	require.NoError(t, err)

	// First patient wins the slot.
	schedID, err := patientWF.Reserve(ctx, patient, availID)
	require.NoError(t, err)

	// Second patient is told someone got there first.
	_, err = rivalWF.Reserve(ctx, rival, availID)
	assert.ErrorIs(t, err, scheduling.ErrAlreadyTaken)

	// The slot now shows as TAKEN to everyone.
	items, err := proWF.ListAvailabilities(ctx, apiclient.ListAvailabilitiesParams{ProfessionalID: pro.ID, TimeFilter: timewindow.FilterAll, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, availability.StatusTaken, items[0].Status)

	// Both sides see the schedule, each with the counterparty embedded.
	patientSchedules, err := patientWF.ListSchedules(ctx, timewindow.FilterAll)
	require.NoError(t, err)
	require.Len(t, patientSchedules, 1)
	assert.Equal(t, schedID, patientSchedules[0].ID)
	require.NotNil(t, patientSchedules[0].Other)
	assert.Equal(t, "helena", patientSchedules[0].Other.Name)

	proSchedules, err := proWF.ListSchedules(ctx, timewindow.FilterAll)
	require.NoError(t, err)
	require.Len(t, proSchedules, 1)
	require.NotNil(t, proSchedules[0].Other)
	assert.Equal(t, "ana", proSchedules[0].Other.Name)
}

func TestRepublishConflictOverTheWire(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	wf, pro := env.login(t, "helena@example.com", availability.RoleProfessional, availability.UserStatusReady)

	_, _, err := wf.CreateAvailability(ctx, pro, testDate, nine, ten, nil)
	require.NoError(t, err)

	canceled, err := wf.ListAvailabilities(ctx, apiclient.ListAvailabilitiesParams{ProfessionalID: pro.ID, TimeFilter: timewindow.FilterAll, Limit: 10})
	require.NoError(t, err)
	require.Len(t, canceled, 1)
	updated, err := wf.ChangeStatus(ctx, pro, canceled[0], availability.StatusCanceled)
	require.NoError(t, err)

	// A new slot covers the canceled window, so re-publishing it must fail.
	_, _, err = wf.CreateAvailability(ctx, pro, testDate, halfNine, halfTen, nil)
	require.NoError(t, err)

	_, err = wf.ChangeStatus(ctx, pro, updated, availability.StatusAvailable)
	assert.ErrorIs(t, err, scheduling.ErrRemoteConflict)
}

func TestReserveCanceledSlot(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	proWF, pro := env.login(t, "helena@example.com", availability.RoleProfessional, availability.UserStatusReady)
	patientWF, patient := env.login(t, "ana@example.com", availability.RolePatient, availability.UserStatusReady)

	availID, _, err := proWF.CreateAvailability(ctx, pro, testDate, nine, ten, nil)
	require.NoError(t, err)

	items, err := proWF.ListAvailabilities(ctx, apiclient.ListAvailabilitiesParams{ProfessionalID: pro.ID, TimeFilter: timewindow.FilterAll, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = proWF.ChangeStatus(ctx, pro, items[0], availability.StatusCanceled)
	require.NoError(t, err)

	_, err = patientWF.Reserve(ctx, patient, availID)
	assert.ErrorIs(t, err, scheduling.ErrNoLongerAvailable)
}

func TestLifecycleOverTheWire(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	proWF, pro := env.login(t, "helena@example.com", availability.RoleProfessional, availability.UserStatusReady)
	patientWF, patient := env.login(t, "ana@example.com", availability.RolePatient, availability.UserStatusReady)

	availID, _, err := proWF.CreateAvailability(ctx, pro, testDate, nine, ten, nil)
	require.NoError(t, err)

	fetch := func() availability.Availability {
		items, err := proWF.ListAvailabilities(ctx, apiclient.ListAvailabilitiesParams{ProfessionalID: pro.ID, TimeFilter: timewindow.FilterAll, Limit: 10})
		require.NoError(t, err)
		require.Len(t, items, 1)
		return items[0]
	}

	// Cancel, then re-publish.
	updated, err := proWF.ChangeStatus(ctx, pro, fetch(), availability.StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, availability.StatusCanceled, updated.Status)

	updated, err = proWF.ChangeStatus(ctx, pro, fetch(), availability.StatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, availability.StatusAvailable, updated.Status)

	// Reserve, then complete.
	_, err = patientWF.Reserve(ctx, patient, availID)
	require.NoError(t, err)

	updated, err = proWF.ChangeStatus(ctx, pro, fetch(), availability.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, availability.StatusCompleted, updated.Status)

	// COMPLETED is terminal; the workflow refuses before the wire.
	_, err = proWF.ChangeStatus(ctx, pro, fetch(), availability.StatusAvailable)
	var invalid *availability.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestPatientCannotPublishOverTheWire(t *testing.T) {
	env := newEnv(t)

	// Talk to the API directly, bypassing the workflow's local eligibility
	// gate, to prove the server enforces the same rule.
	store := session.NewStore()
	payload, _ := json.Marshal(map[string]string{"email": "ana@example.com"})
	resp, err := http.Post(env.ts.URL+"/auth/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	var auth struct {
		AccessToken string             `json:"access_token"`
		UserData    *availability.User `json:"user_data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
	store.SetAuthData(auth.AccessToken, auth.AccessToken, auth.UserData.ID)

	client, err := apiclient.New(env.ts.URL, store, nil)
	require.NoError(t, err)

	w, err := timewindow.FromLocalParts(testDate, nine, ten, timewindow.ReferenceZone)
	require.NoError(t, err)
	_, err = client.CreateAvailability(context.Background(), w)

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "You are not authorized to perform this action.", apiErr.Detail)
}

func TestBadTokenIsSessionExpired(t *testing.T) {
	env := newEnv(t)

	store := session.NewStore()
	store.SetAuthData("garbage-token", "garbage-token", uuid.New())

	client, err := apiclient.New(env.ts.URL, store, nil)
	require.NoError(t, err)
	wf := scheduling.New(client, timewindow.ReferenceZone, nil)

	_, err = wf.ListSchedules(context.Background(), timewindow.FilterAll)
	assert.ErrorIs(t, err, scheduling.ErrSessionExpired)
}

func TestEmptyListingIsNotAnError(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	wf, _ := env.login(t, "helena@example.com", availability.RoleProfessional, availability.UserStatusReady)

	items, err := wf.ListAvailabilities(ctx, apiclient.ListAvailabilitiesParams{TimeFilter: timewindow.FilterAll})
	require.NoError(t, err)
	assert.Empty(t, items)
}
