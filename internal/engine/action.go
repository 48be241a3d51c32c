package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind enumerates everything a button can ask for.
type ActionKind int

const (
	ActNoop ActionKind = iota
	ActToggleTopic
	ActSubmitVotes
	ActChangeVote
	ActSubmitTopics
	ActToggleRemoval
	ActSubmitRemoval
	ActPickCategory
	ActPickRoom
	ActPickSlot
	ActCancel
)

// Action is a decoded button payload. Index is a catalog, category or room
// position, or a slot number; Rev is the catalog revision for topic buttons.
type Action struct {
	Kind  ActionKind
	Index int
	Rev   int
}

var actionTags = map[ActionKind]string{
	ActNoop:          "noop",
	ActToggleTopic:   "v",
	ActSubmitVotes:   "vs",
	ActChangeVote:    "vc",
	ActSubmitTopics:  "ts",
	ActToggleRemoval: "rm",
	ActSubmitRemoval: "rms",
	ActPickCategory:  "cat",
	ActPickRoom:      "room",
	ActPickSlot:      "slot",
	ActCancel:        "cancel",
}

var tagActions = func() map[string]ActionKind {
	m := make(map[string]ActionKind, len(actionTags))
	for k, v := range actionTags {
		m[v] = k
	}
	return m
}()

func (k ActionKind) arity() int {
	switch k {
	case ActToggleTopic, ActToggleRemoval:
		return 2
	case ActPickCategory, ActPickRoom, ActPickSlot:
		return 1
	}
	return 0
}

// EncodeAction renders a as compact callback data.
func EncodeAction(a Action) string {
	tag, ok := actionTags[a.Kind]
	if !ok {
		return actionTags[ActNoop]
	}
	switch a.Kind.arity() {
	case 2:
		return fmt.Sprintf("%s:%d:%d", tag, a.Index, a.Rev)
	case 1:
		return fmt.Sprintf("%s:%d", tag, a.Index)
	}
	return tag
}

// DecodeAction parses callback data produced by EncodeAction.
func DecodeAction(data string) (Action, error) {
	parts := strings.Split(data, ":")
	kind, ok := tagActions[parts[0]]
	if !ok {
		return Action{}, fmt.Errorf("unknown action %q", data)
	}
	if len(parts)-1 != kind.arity() {
		return Action{}, fmt.Errorf("malformed action %q", data)
	}
	a := Action{Kind: kind}
	nums := make([]int, 0, 2)
	for _, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Action{}, fmt.Errorf("malformed action %q: %w", data, err)
		}
		nums = append(nums, n)
	}
	if len(nums) > 0 {
		a.Index = nums[0]
	}
	if len(nums) > 1 {
		a.Rev = nums[1]
	}
	return a, nil
}
