package accounts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civica-console/civica/internal/shared"
)

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(v int) *int { return &v }

func TestEffectiveStatusOverlaysActiveLock(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	user := User{Status: StatusActive, BlockedUntil: timePtr(now.Add(2 * time.Hour))}
	require.Equal(t, StatusBlocked, user.EffectiveStatus(now))

	// A lock in the past no longer overlays; the stored status wins.
	user.BlockedUntil = timePtr(now.Add(-2 * time.Hour))
	require.Equal(t, StatusActive, user.EffectiveStatus(now))

	user = User{Status: StatusSuspended, BlockedUntil: timePtr(now.Add(time.Minute))}
	require.Equal(t, StatusBlocked, user.EffectiveStatus(now))

	user = User{Status: StatusSuspended}
	require.Equal(t, StatusSuspended, user.EffectiveStatus(now))
}

func TestEffectiveStatusNeverMutates(t *testing.T) {
	now := time.Now().UTC()
	user := User{Status: StatusActive, BlockedUntil: timePtr(now.Add(time.Hour))}

	_ = user.EffectiveStatus(now)

	require.Equal(t, StatusActive, user.Status)
	require.NotNil(t, user.BlockedUntil)
}

func TestParseBlockModeRejectsAmbiguousInput(t *testing.T) {
	until := time.Now().Add(time.Hour)

	_, err := ParseBlockMode(intPtr(24), &until)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = ParseBlockMode(nil, nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = ParseBlockMode(intPtr(0), nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = ParseBlockMode(intPtr(-3), nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestBlockModeDeadlineFromDuration(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	mode, err := ParseBlockMode(intPtr(24), nil)
	require.NoError(t, err)

	deadline, err := mode.Deadline(now)
	require.NoError(t, err)
	require.Equal(t, now.Add(24*time.Hour), deadline)
}

func TestBlockModeDeadlineFromInstant(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	until := now.Add(72 * time.Hour)

	mode, err := ParseBlockMode(nil, &until)
	require.NoError(t, err)

	deadline, err := mode.Deadline(now)
	require.NoError(t, err)
	require.Equal(t, until, deadline)

	past := now.Add(-time.Minute)
	mode, err = ParseBlockMode(nil, &past)
	require.NoError(t, err)

	_, err = mode.Deadline(now)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMergeBlockedPreservesOrderAndDeduplicates(t *testing.T) {
	all := []User{
		{ID: 1, Username: "ana", Status: StatusActive},
		{ID: 2, Username: "bruno", Status: StatusActive},
		{ID: 3, Username: "carla", Status: StatusSuspended},
	}
	blocked := []User{
		{ID: 2, Username: "bruno", Status: StatusBlocked},
		{ID: 9, Username: "diego", Status: StatusBlocked},
	}

	merged := MergeBlocked(all, blocked)

	require.Len(t, merged, 4)
	require.Equal(t, []int64{1, 2, 3, 9}, []int64{merged[0].ID, merged[1].ID, merged[2].ID, merged[3].ID})
	require.Equal(t, StatusActive, merged[0].Status)
	require.Equal(t, StatusBlocked, merged[1].Status)
	require.Equal(t, StatusSuspended, merged[2].Status)
	require.Equal(t, StatusBlocked, merged[3].Status)
}

func TestMergeBlockedKeepsGeneralRecordFields(t *testing.T) {
	// The blocked listing may have been fetched at a different instant; the
	// general record's fields win, only the status is overlaid.
	until := time.Now().Add(time.Hour)
	all := []User{{ID: 5, Username: "elena", Status: StatusActive, AreaID: 7, BlockedUntil: &until}}
	blocked := []User{{ID: 5, Username: "stale-name", Status: StatusBlocked}}

	merged := MergeBlocked(all, blocked)

	require.Len(t, merged, 1)
	require.Equal(t, "elena", merged[0].Username)
	require.Equal(t, int64(7), merged[0].AreaID)
	require.Equal(t, StatusBlocked, merged[0].Status)
}

func TestMergeBlockedWithEmptyInputs(t *testing.T) {
	require.Empty(t, MergeBlocked(nil, nil))

	blocked := []User{{ID: 1, Status: StatusBlocked}}
	merged := MergeBlocked(nil, blocked)
	require.Len(t, merged, 1)

	all := []User{{ID: 1, Status: StatusActive}}
	merged = MergeBlocked(all, nil)
	require.Len(t, merged, 1)
	require.Equal(t, StatusActive, merged[0].Status)
}
