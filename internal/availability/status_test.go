package availability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{StatusAvailable, StatusTaken, StatusCompleted, StatusCanceled}

func TestTransitionTableIsExhaustive(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusAvailable, StatusTaken}:    true,
		{StatusAvailable, StatusCanceled}: true,
		{StatusTaken, StatusCompleted}:    true,
		{StatusCanceled, StatusAvailable}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			got, err := Transition(from, to)
			if legal[[2]Status{from, to}] {
				require.NoError(t, err, "%s -> %s should be legal", from, to)
				assert.Equal(t, to, got)
				continue
			}

			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid, "%s -> %s should be rejected", from, to)
			assert.Equal(t, from, invalid.From)
			assert.Equal(t, to, invalid.To)
		}
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	for _, to := range allStatuses {
		assert.False(t, CanTransition(StatusCompleted, to), "COMPLETED -> %s must be illegal", to)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range allStatuses {
		parsed, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseStatus("BOOKED")
	assert.Error(t, err)
	_, err = ParseStatus("available")
	assert.Error(t, err, "statuses are case sensitive on the wire")
}

func TestStatusJSONIsStrict(t *testing.T) {
	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"TAKEN"`), &s))
	assert.Equal(t, StatusTaken, s)

	assert.Error(t, json.Unmarshal([]byte(`"RESERVED"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`42`), &s))

	out, err := json.Marshal(StatusCanceled)
	require.NoError(t, err)
	assert.JSONEq(t, `"CANCELED"`, string(out))

	_, err = json.Marshal(Status("BOGUS"))
	assert.Error(t, err)
}
