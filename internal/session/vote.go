package session

import (
	"topicvote/internal/model"
)

// VoteSession is a working selection that is not visible to the tally until committed.
type VoteSession struct {
	step      Step
	selection []string
}

// StartSelection seeds a working selection from the participant's committed
// vote, keeping only topics still in the catalog. It does not modify the store.
func StartSelection(st *model.State, participant string) *VoteSession {
	v := &VoteSession{step: StepSelect}
	for _, t := range st.Vote(participant) {
		if st.HasTopic(t) && len(v.selection) < st.Layout.MaxVotes {
			v.selection = append(v.selection, t)
		}
	}
	return v
}

func (v *VoteSession) Kind() Kind     { return KindVote }
func (v *VoteSession) Step() Step     { return v.step }
func (v *VoteSession) Expects() Input { return InputButton }

// Selection returns a copy of the working selection.
func (v *VoteSession) Selection() []string {
	return append([]string(nil), v.selection...)
}

// Selected reports whether topic is in the working selection.
func (v *VoteSession) Selected(topic string) bool {
	return indexOf(v.selection, topic) >= 0
}

// Toggle removes topic if selected, otherwise adds it unless the selection
// already holds maxVotes topics.
func (v *VoteSession) Toggle(topic string, maxVotes int) error {
	if i := indexOf(v.selection, topic); i >= 0 {
		v.selection = append(v.selection[:i:i], v.selection[i+1:]...)
		return nil
	}
	if len(v.selection) >= maxVotes {
		return model.ErrVoteLimitExceeded
	}
	v.selection = append(v.selection, topic)
	return nil
}

// Commit replaces the participant's vote with the working selection. The
// limit is checked against st, which may have been lowered since the
// selection started. The session stays open; its owner discards it once st
// is persisted.
func (v *VoteSession) Commit(st *model.State, participant string) error {
	if err := flow.check(v.step, StepDone); err != nil {
		return err
	}
	if len(v.selection) == 0 {
		return model.ErrEmptySelection
	}
	if len(v.selection) > st.Layout.MaxVotes {
		return model.ErrVoteLimitExceeded
	}
	st.SetVote(participant, v.selection)
	return nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
