package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)
	wayBefore := now.Add(-48 * time.Hour)

	tests := []struct {
		name  string
		event ElectionEvent
		want  EventStatus
	}{
		{
			name:  "no window and no manual status is upcoming",
			event: ElectionEvent{ManualStatus: StatusSetup},
			want:  StatusUpcoming,
		},
		{
			name:  "manual close wins over an open window",
			event: ElectionEvent{ManualStatus: StatusClosed, StartAt: &before, EndAt: &after},
			want:  StatusClosed,
		},
		{
			name:  "window in the past closes the event",
			event: ElectionEvent{ManualStatus: StatusActive, StartAt: &wayBefore, EndAt: &before},
			want:  StatusClosed,
		},
		{
			name:  "inside the window is active",
			event: ElectionEvent{ManualStatus: StatusSetup, StartAt: &before, EndAt: &after},
			want:  StatusActive,
		},
		{
			name:  "start reached without an end is active",
			event: ElectionEvent{ManualStatus: StatusSetup, StartAt: &before},
			want:  StatusActive,
		},
		{
			name:  "manual activation before the scheduled start",
			event: ElectionEvent{ManualStatus: StatusActive, StartAt: &after, EndAt: nil},
			want:  StatusActive,
		},
		{
			name:  "future window is upcoming",
			event: ElectionEvent{ManualStatus: StatusSetup, StartAt: &after},
			want:  StatusUpcoming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStatus(tt.event, now))
		})
	}
}

func TestResolveStatus_ExactBoundaries(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	event := ElectionEvent{ManualStatus: StatusSetup, StartAt: &start, EndAt: &end}

	// Opening boundary is inclusive, closing boundary is inclusive too:
	// the event only closes strictly after end.
	assert.Equal(t, StatusActive, ResolveStatus(event, start))
	assert.Equal(t, StatusActive, ResolveStatus(event, end))
	assert.Equal(t, StatusClosed, ResolveStatus(event, end.Add(time.Nanosecond)))
	assert.Equal(t, StatusUpcoming, ResolveStatus(event, start.Add(-time.Nanosecond)))
}

func TestSelection(t *testing.T) {
	var zero Selection
	assert.False(t, zero.IsValid())
	assert.False(t, zero.IsAbstain())
	_, ok := zero.CandidateID()
	assert.False(t, ok)

	picked := SelectCandidate(42)
	assert.True(t, picked.IsValid())
	assert.False(t, picked.IsAbstain())
	id, ok := picked.CandidateID()
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	abstained := SelectAbstain()
	assert.True(t, abstained.IsValid())
	assert.True(t, abstained.IsAbstain())
	_, ok = abstained.CandidateID()
	assert.False(t, ok)
}

func TestTallyTotalMatchesBallotCount(t *testing.T) {
	event := ElectionEvent{
		Candidates: []Candidate{
			{ID: 1, VoteCount: 3},
			{ID: 2, VoteCount: 1},
		},
		AbstainCount: 2,
		Ballots: map[string]Ballot{
			"a@x.org": {}, "b@x.org": {}, "c@x.org": {},
			"d@x.org": {}, "e@x.org": {}, "f@x.org": {},
		},
	}

	assert.Equal(t, event.BallotCount(), event.TallyTotal())
}
