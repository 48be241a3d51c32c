package session

import (
	"fmt"
	"strings"

	"topicvote/internal/model"
)

// ComposeTopic builds the catalog entry of a guided submission.
func ComposeTopic(name, category, body string) string {
	return fmt.Sprintf("%s: %s. %s", name, category, body)
}

// SubmissionSession collects a submitter name, a category and a topic body.
type SubmissionSession struct {
	step     Step
	Name     string
	Category string
}

// NewSubmission starts at the name step.
func NewSubmission() *SubmissionSession {
	return &SubmissionSession{step: StepName}
}

func (s *SubmissionSession) Kind() Kind { return KindSubmission }
func (s *SubmissionSession) Step() Step { return s.step }

func (s *SubmissionSession) Expects() Input {
	if s.step == StepCategory {
		return InputButton
	}
	return InputText
}

// SetName stores the submitter name.
func (s *SubmissionSession) SetName(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ErrEmptyInput
	}
	if err := flow.advance(&s.step, StepCategory); err != nil {
		return err
	}
	s.Name = text
	return nil
}

// SetCategory picks categories[index].
func (s *SubmissionSession) SetCategory(categories []string, index int) error {
	if index < 0 || index >= len(categories) {
		return model.ErrUnknownSelection
	}
	if strings.TrimSpace(categories[index]) == "" {
		return model.ErrEmptyInput
	}
	if err := flow.advance(&s.step, StepBody); err != nil {
		return err
	}
	s.Category = categories[index]
	return nil
}

// Commit composes the entry from body and appends it to the catalog.
// added is false when an identical entry already existed.
func (s *SubmissionSession) Commit(st *model.State, body string) (topic string, added bool, err error) {
	if err := flow.check(s.step, StepDone); err != nil {
		return "", false, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", false, model.ErrEmptyInput
	}
	topic = ComposeTopic(s.Name, s.Category, body)
	added = len(st.AddTopics(topic)) > 0
	return topic, added, nil
}

// BatchSession gathers topics from several messages before adding them at once.
type BatchSession struct {
	step    Step
	pending []string
}

// NewBatch starts collecting.
func NewBatch() *BatchSession {
	return &BatchSession{step: StepCollect}
}

func (b *BatchSession) Kind() Kind     { return KindBatch }
func (b *BatchSession) Step() Step     { return b.step }
func (b *BatchSession) Expects() Input { return InputAny }

// Add splits text on ';' and queues the new entries. It returns what was queued.
func (b *BatchSession) Add(text string) []string {
	var queued []string
	for _, e := range model.SplitEntries(text) {
		if indexOf(b.pending, e) >= 0 {
			continue
		}
		b.pending = append(b.pending, e)
		queued = append(queued, e)
	}
	return queued
}

// Pending returns a copy of the queued entries.
func (b *BatchSession) Pending() []string {
	return append([]string(nil), b.pending...)
}

// Commit appends the whole batch to the catalog and returns the entries that
// were new to it.
func (b *BatchSession) Commit(st *model.State) ([]string, error) {
	if err := flow.check(b.step, StepDone); err != nil {
		return nil, err
	}
	if len(b.pending) == 0 {
		return nil, model.ErrEmptyInput
	}
	return st.AddTopics(b.pending...), nil
}

// RemovalSession marks catalog entries for deletion.
type RemovalSession struct {
	step    Step
	pending map[string]struct{}
}

// NewRemoval starts with nothing marked.
func NewRemoval() *RemovalSession {
	return &RemovalSession{step: StepSelect, pending: make(map[string]struct{})}
}

func (r *RemovalSession) Kind() Kind     { return KindRemoval }
func (r *RemovalSession) Step() Step     { return r.step }
func (r *RemovalSession) Expects() Input { return InputButton }

// Toggle marks or unmarks topic.
func (r *RemovalSession) Toggle(topic string) {
	if _, ok := r.pending[topic]; ok {
		delete(r.pending, topic)
		return
	}
	r.pending[topic] = struct{}{}
}

// Marked reports whether topic is marked.
func (r *RemovalSession) Marked(topic string) bool {
	_, ok := r.pending[topic]
	return ok
}

// Count is the number of marked topics.
func (r *RemovalSession) Count() int {
	return len(r.pending)
}

// Commit deletes exactly the marked topics.
func (r *RemovalSession) Commit(st *model.State) (int, error) {
	if err := flow.check(r.step, StepDone); err != nil {
		return 0, err
	}
	if len(r.pending) == 0 {
		return 0, model.ErrEmptySelection
	}
	return st.RemoveTopics(r.pending), nil
}
