package domain

import "time"

type EventStatus string

const (
	StatusSetup    EventStatus = "setup"
	StatusUpcoming EventStatus = "upcoming"
	StatusActive   EventStatus = "active"
	StatusClosed   EventStatus = "closed"
)

type VoteChannel string

const (
	ChannelOnline VoteChannel = "online"
	ChannelKiosk  VoteChannel = "kiosk"
)

type Candidate struct {
	ID          uint   `json:"id"`
	EventID     uint   `json:"event_id"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	VoteCount   int    `json:"vote_count"`
	Position    int    `json:"position"`
}

type Ballot struct {
	VoterID string      `json:"voter_id"`
	Channel VoteChannel `json:"channel"`
	CastAt  time.Time   `json:"cast_at"`
}

type ElectionEvent struct {
	ID             uint              `json:"id"`
	Name           string            `json:"name"`
	Organizer      string            `json:"organizer"`
	ManualStatus   EventStatus       `json:"manual_status"`
	StartAt        *time.Time        `json:"start_at,omitempty"`
	EndAt          *time.Time        `json:"end_at,omitempty"`
	Candidates     []Candidate       `json:"candidates"`
	Roll           []string          `json:"roll"`
	Ballots        map[string]Ballot `json:"ballots"`
	AllowAbstain   bool              `json:"allow_abstain"`
	PublishResults bool              `json:"publish_results"`
	OfflineMode    bool              `json:"offline_mode"`
	AbstainCount   int               `json:"abstain_count"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// InRoll reports whether the identity is registered for this event.
func (e *ElectionEvent) InRoll(voterID string) bool {
	for _, id := range e.Roll {
		if id == voterID {
			return true
		}
	}
	return false
}

// HasVoted reports whether the identity already cast a ballot.
func (e *ElectionEvent) HasVoted(voterID string) bool {
	_, ok := e.Ballots[voterID]
	return ok
}

// BallotCount is the number of identities that have voted.
func (e *ElectionEvent) BallotCount() int {
	return len(e.Ballots)
}

// TallyTotal is the sum of all candidate tallies plus the abstain counter.
// It must always equal BallotCount.
func (e *ElectionEvent) TallyTotal() int {
	total := e.AbstainCount
	for _, c := range e.Candidates {
		total += c.VoteCount
	}
	return total
}

// ElectionSnapshot is the full read model pushed to subscribers after
// every committed mutation.
type ElectionSnapshot struct {
	Event        ElectionEvent `json:"event"`
	Status       EventStatus   `json:"status"`
	TotalBallots int           `json:"total_ballots"`
	AsOf         time.Time     `json:"as_of"`
}
