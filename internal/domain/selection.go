package domain

// Selection is a tagged ballot choice: either one candidate or an
// explicit abstention. The zero value is invalid so a forgotten
// selection can never silently count as a vote.
type Selection struct {
	candidateID uint
	abstain     bool
}

func SelectCandidate(candidateID uint) Selection {
	return Selection{candidateID: candidateID}
}

func SelectAbstain() Selection {
	return Selection{abstain: true}
}

func (s Selection) IsAbstain() bool {
	return s.abstain
}

// CandidateID returns the chosen candidate, if any.
func (s Selection) CandidateID() (uint, bool) {
	if s.abstain || s.candidateID == 0 {
		return 0, false
	}
	return s.candidateID, true
}

// IsValid reports whether the selection names a candidate or abstains.
func (s Selection) IsValid() bool {
	return s.abstain || s.candidateID != 0
}
