package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"topicvote/internal/events"
	"topicvote/internal/model"
	"topicvote/internal/session"

	"github.com/rs/zerolog"
)

// DefaultCategories are offered by the guided submission when none are configured.
var DefaultCategories = []string{"Доклад", "Дискуссия", "Мастер-класс"}

// startVote opens a fresh selection in the participant's private chat.
func (e *Engine) startVote(ev Event) []RenderRequest {
	target := ev
	target.ChatID = ev.ParticipantID
	target.MessageID = 0

	if len(e.state.Topics) == 0 {
		e.sessions.Reset(ev.ParticipantID)
		return []RenderRequest{e.reply(target, msgNoTopics)}
	}
	v := session.StartSelection(e.state, model.ParticipantKey(ev.ParticipantID))
	e.sessions.Start(ev.ParticipantID, v)
	return []RenderRequest{e.voteKeyboard(target, v)}
}

func (e *Engine) voteKeyboard(ev Event, v *session.VoteSession) RenderRequest {
	r := RenderRequest{
		ChatID: ev.ChatID,
		Text:   fmt.Sprintf(msgVotePrompt, e.state.Layout.MaxVotes),
	}
	for i, t := range e.state.Topics {
		r.Items = append(r.Items, Item{
			Label:   t,
			Checked: v.Selected(t),
			Action:  Action{Kind: ActToggleTopic, Index: i, Rev: e.state.CatalogRevision},
		})
	}
	r.Buttons = []Button{{Label: btnSubmit, Action: Action{Kind: ActSubmitVotes}}}
	return r
}

func (e *Engine) voteButton(ctx context.Context, ev Event, v *session.VoteSession) ([]RenderRequest, error) {
	participant := model.ParticipantKey(ev.ParticipantID)
	switch ev.Action.Kind {
	case ActToggleTopic:
		topic, err := e.state.TopicAt(ev.Action.Index, ev.Action.Rev)
		if err != nil {
			return []RenderRequest{e.alert(ev, msgUnknownSelection)}, nil
		}
		if err := v.Toggle(topic, e.state.Layout.MaxVotes); err != nil {
			return []RenderRequest{e.alert(ev, msgVoteLimit)}, nil
		}
		r := e.voteKeyboard(ev, v)
		r.EditMessageID = ev.MessageID
		return []RenderRequest{r}, nil

	case ActSubmitVotes:
		var selection []string
		err := e.mutate(ctx, func(st *model.State) error {
			selection = v.Selection()
			return v.Commit(st, participant)
		})
		switch {
		case errors.Is(err, model.ErrEmptySelection):
			return []RenderRequest{e.alert(ev, msgEmptySelection)}, nil
		case errors.Is(err, model.ErrVoteLimitExceeded):
			r := e.voteKeyboard(ev, v)
			r.EditMessageID = ev.MessageID
			return []RenderRequest{e.alert(ev, fmt.Sprintf(msgVoteLimitLowered, e.state.Layout.MaxVotes)), r}, nil
		case err != nil:
			return nil, err
		}
		e.sessions.Reset(ev.ParticipantID)
		zerolog.Ctx(ctx).Info().Int64("user_id", ev.ParticipantID).Int("topics", len(selection)).Msg("vote committed")
		e.publish(ctx, events.TypeVoteCommitted, ev.ParticipantID, map[string]any{"topics": selection})
		return []RenderRequest{e.voteThanks(ev, selection)}, nil
	}
	return []RenderRequest{e.alert(ev, msgStale)}, nil
}

func (e *Engine) voteThanks(ev Event, selection []string) RenderRequest {
	r := RenderRequest{
		ChatID:          ev.ChatID,
		Text:            msgVoteThanks + "\n" + bullets(selection),
		EditMessageID:   ev.MessageID,
		AllowURLButtons: ev.Private,
		Buttons:         []Button{{Label: btnChangeVote, Action: Action{Kind: ActChangeVote}}},
	}
	if e.opts.BotUsername != "" {
		r.Buttons = append(r.Buttons, Button{Label: btnBackToChat, URL: "https://t.me/" + e.opts.BotUsername})
	}
	return r
}

func (e *Engine) startSubmission(ev Event) []RenderRequest {
	e.sessions.Start(ev.ParticipantID, session.NewSubmission())
	return []RenderRequest{e.reply(ev, msgAskName)}
}

func (e *Engine) categoryKeyboard(ev Event) RenderRequest {
	r := RenderRequest{ChatID: ev.ChatID, Text: msgAskCategory}
	for i, c := range e.opts.Categories {
		r.Buttons = append(r.Buttons, Button{Label: c, Action: Action{Kind: ActPickCategory, Index: i}})
	}
	r.Buttons = append(r.Buttons, cancelButton())
	return r
}

func (e *Engine) submissionText(ctx context.Context, ev Event, s *session.SubmissionSession) ([]RenderRequest, error) {
	if s.Step() == session.StepName {
		if err := s.SetName(ev.Text); err != nil {
			return []RenderRequest{e.reply(ev, msgEmptyInput), e.reply(ev, msgAskName)}, nil
		}
		return []RenderRequest{e.categoryKeyboard(ev)}, nil
	}

	var (
		topic string
		added bool
	)
	err := e.mutate(ctx, func(st *model.State) error {
		var err error
		topic, added, err = s.Commit(st, ev.Text)
		return err
	})
	switch {
	case errors.Is(err, model.ErrEmptyInput):
		return []RenderRequest{e.reply(ev, msgEmptyInput), e.reply(ev, msgAskBody)}, nil
	case err != nil:
		return nil, err
	}
	e.sessions.Reset(ev.ParticipantID)
	if !added {
		return []RenderRequest{e.reply(ev, fmt.Sprintf(msgTopicExists, topic))}, nil
	}
	e.publish(ctx, events.TypeTopicsAdded, ev.ParticipantID, map[string]any{"topics": []string{topic}})
	return []RenderRequest{e.reply(ev, fmt.Sprintf(msgTopicSubmitted, topic))}, nil
}

func (e *Engine) submissionButton(ev Event, s *session.SubmissionSession) ([]RenderRequest, error) {
	if ev.Action.Kind != ActPickCategory {
		return []RenderRequest{e.alert(ev, msgStale)}, nil
	}
	if err := s.SetCategory(e.opts.Categories, ev.Action.Index); err != nil {
		return []RenderRequest{e.alert(ev, msgUnknownSelection)}, nil
	}
	r := e.reply(ev, fmt.Sprintf(msgCategoryChosen, s.Category)+"\n\n"+msgAskBody)
	r.EditMessageID = ev.MessageID
	return []RenderRequest{r}, nil
}

func (e *Engine) startBatch(ev Event) []RenderRequest {
	e.sessions.Start(ev.ParticipantID, session.NewBatch())
	return []RenderRequest{e.batchPrompt(ev)}
}

func (e *Engine) batchPrompt(ev Event) RenderRequest {
	return RenderRequest{
		ChatID: ev.ChatID,
		Text:   msgBatchPrompt,
		Buttons: []Button{
			{Label: btnSubmitTopics, Action: Action{Kind: ActSubmitTopics}},
			cancelButton(),
		},
	}
}

func (e *Engine) batchText(ev Event, b *session.BatchSession) []RenderRequest {
	queued := b.Add(ev.Text)
	if len(queued) == 0 {
		return []RenderRequest{e.reply(ev, msgBatchNothingQueued)}
	}
	return []RenderRequest{e.reply(ev, fmt.Sprintf(msgBatchQueued, len(b.Pending())))}
}

func (e *Engine) batchButton(ctx context.Context, ev Event, b *session.BatchSession) ([]RenderRequest, error) {
	if ev.Action.Kind != ActSubmitTopics {
		return []RenderRequest{e.alert(ev, msgStale)}, nil
	}
	var added []string
	err := e.mutate(ctx, func(st *model.State) error {
		var err error
		added, err = b.Commit(st)
		return err
	})
	switch {
	case errors.Is(err, model.ErrEmptyInput):
		return []RenderRequest{e.alert(ev, msgBatchEmpty)}, nil
	case err != nil:
		return nil, err
	}
	e.sessions.Reset(ev.ParticipantID)
	r := e.reply(ev, msgBatchNoneNew)
	if len(added) > 0 {
		r.Text = fmt.Sprintf(msgBatchAdded, strings.Join(added, ", "))
		e.publish(ctx, events.TypeTopicsAdded, ev.ParticipantID, map[string]any{"topics": added})
	}
	r.EditMessageID = ev.MessageID
	return []RenderRequest{r}, nil
}

func (e *Engine) startRemoval(ev Event) []RenderRequest {
	if len(e.state.Topics) == 0 {
		e.sessions.Reset(ev.ParticipantID)
		return []RenderRequest{e.reply(ev, msgNoTopicsToRemove)}
	}
	r := session.NewRemoval()
	e.sessions.Start(ev.ParticipantID, r)
	return []RenderRequest{e.removalKeyboard(ev, r)}
}

func (e *Engine) removalKeyboard(ev Event, r *session.RemovalSession) RenderRequest {
	out := RenderRequest{ChatID: ev.ChatID, Text: msgRemovalPrompt}
	for i, t := range e.state.Topics {
		out.Items = append(out.Items, Item{
			Label:   t,
			Checked: r.Marked(t),
			Action:  Action{Kind: ActToggleRemoval, Index: i, Rev: e.state.CatalogRevision},
		})
	}
	out.Buttons = []Button{
		{Label: fmt.Sprintf(btnRemove, r.Count()), Action: Action{Kind: ActSubmitRemoval}},
		cancelButton(),
	}
	return out
}

func (e *Engine) removalButton(ctx context.Context, ev Event, r *session.RemovalSession) ([]RenderRequest, error) {
	switch ev.Action.Kind {
	case ActToggleRemoval:
		topic, err := e.state.TopicAt(ev.Action.Index, ev.Action.Rev)
		if err != nil {
			return []RenderRequest{e.alert(ev, msgUnknownSelection)}, nil
		}
		r.Toggle(topic)
		out := e.removalKeyboard(ev, r)
		out.EditMessageID = ev.MessageID
		return []RenderRequest{out}, nil

	case ActSubmitRemoval:
		var removed int
		err := e.mutate(ctx, func(st *model.State) error {
			var err error
			removed, err = r.Commit(st)
			return err
		})
		switch {
		case errors.Is(err, model.ErrEmptySelection):
			return []RenderRequest{e.alert(ev, msgEmptySelection)}, nil
		case err != nil:
			return nil, err
		}
		e.sessions.Reset(ev.ParticipantID)
		e.publish(ctx, events.TypeTopicsRemoved, ev.ParticipantID, map[string]any{"count": removed})
		out := e.reply(ev, fmt.Sprintf(msgTopicsRemoved, removed))
		out.EditMessageID = ev.MessageID
		return []RenderRequest{out}, nil
	}
	return []RenderRequest{e.alert(ev, msgStale)}, nil
}

func (e *Engine) startBooking(ev Event, rename bool) []RenderRequest {
	b := session.NewBooking()
	if rename {
		b = session.NewRename()
		if len(b.Rooms(e.state)) == 0 {
			e.sessions.Reset(ev.ParticipantID)
			return []RenderRequest{e.reply(ev, msgNoBookings)}
		}
	}
	e.sessions.Start(ev.ParticipantID, b)
	return []RenderRequest{e.roomKeyboard(ev, b)}
}

func (e *Engine) roomKeyboard(ev Event, b *session.BookingSession) RenderRequest {
	r := RenderRequest{ChatID: ev.ChatID, Text: msgAskRoom}
	for i, room := range b.Rooms(e.state) {
		r.Buttons = append(r.Buttons, Button{Label: room, Action: Action{Kind: ActPickRoom, Index: i}})
	}
	r.Buttons = append(r.Buttons, cancelButton())
	return r
}

func (e *Engine) slotKeyboard(ev Event, b *session.BookingSession) RenderRequest {
	r := RenderRequest{ChatID: ev.ChatID, Text: fmt.Sprintf(msgAskSlot, b.Room)}
	slots := e.state.BookedSlots(b.Room)
	if b.Kind() == session.KindBooking {
		slots = slots[:0]
		for s := 1; s <= e.state.Layout.SlotsPerRoom; s++ {
			slots = append(slots, s)
		}
	}
	for _, s := range slots {
		label := fmt.Sprintf(slotLabel, s)
		if booked, ok := e.state.Booking(b.Room, s); ok {
			label += " · " + booked
		}
		r.Buttons = append(r.Buttons, Button{Label: label, Action: Action{Kind: ActPickSlot, Index: s}})
	}
	r.Buttons = append(r.Buttons, cancelButton())
	return r
}

func (e *Engine) bookingButton(ev Event, b *session.BookingSession) ([]RenderRequest, error) {
	switch {
	case ev.Action.Kind == ActPickRoom && b.Step() == session.StepRoom:
		rooms := b.Rooms(e.state)
		if ev.Action.Index < 0 || ev.Action.Index >= len(rooms) {
			return []RenderRequest{e.alert(ev, msgUnknownSelection)}, nil
		}
		if err := b.PickRoom(e.state, rooms[ev.Action.Index]); err != nil {
			return []RenderRequest{e.alert(ev, msgUnknownSelection)}, nil
		}
		r := e.slotKeyboard(ev, b)
		r.EditMessageID = ev.MessageID
		return []RenderRequest{r}, nil

	case ev.Action.Kind == ActPickSlot && b.Step() == session.StepSlot:
		err := b.PickSlot(e.state, ev.Action.Index)
		switch {
		case errors.Is(err, model.ErrSlotConflict):
			e.sessions.Reset(ev.ParticipantID)
			label, _ := e.state.Booking(b.Room, ev.Action.Index)
			r := e.reply(ev, fmt.Sprintf(msgSlotConflict, b.Room, ev.Action.Index, label))
			r.EditMessageID = ev.MessageID
			return []RenderRequest{r}, nil
		case err != nil:
			return []RenderRequest{e.alert(ev, msgUnknownSelection)}, nil
		}
		r := e.reply(ev, fmt.Sprintf(msgSlotChosen, b.Room, b.Slot)+"\n\n"+msgAskLabel)
		r.EditMessageID = ev.MessageID
		return []RenderRequest{r}, nil
	}
	return []RenderRequest{e.alert(ev, msgStale)}, nil
}

func (e *Engine) bookingLabel(ctx context.Context, ev Event, b *session.BookingSession) ([]RenderRequest, error) {
	label := strings.TrimSpace(ev.Text)
	err := e.mutate(ctx, func(st *model.State) error {
		return b.Commit(st, label)
	})
	switch {
	case errors.Is(err, model.ErrEmptyInput):
		return []RenderRequest{e.reply(ev, msgEmptyInput), e.reply(ev, msgAskLabel)}, nil
	case errors.Is(err, model.ErrSlotConflict), errors.Is(err, model.ErrUnknownSelection):
		e.sessions.Reset(ev.ParticipantID)
		current, _ := e.state.Booking(b.Room, b.Slot)
		return []RenderRequest{e.reply(ev, fmt.Sprintf(msgSlotConflict, b.Room, b.Slot, current))}, nil
	case err != nil:
		return nil, err
	}
	e.sessions.Reset(ev.ParticipantID)

	evType, text := events.TypeBookingCreated, msgBooked
	if b.Kind() == session.KindRename {
		evType, text = events.TypeBookingRenamed, msgRenamed
	}
	zerolog.Ctx(ctx).Info().Str("room", b.Room).Int("slot", b.Slot).Str("kind", string(b.Kind())).Msg("booking saved")
	e.publish(ctx, evType, ev.ParticipantID, map[string]any{"room": b.Room, "slot": b.Slot, "label": label})
	return []RenderRequest{e.reply(ev, fmt.Sprintf(text, b.Room, b.Slot, label))}, nil
}

func (e *Engine) startSetting(ctx context.Context, ev Event, field string) ([]RenderRequest, error) {
	if strings.TrimSpace(ev.Args) == "" {
		e.sessions.Start(ev.ParticipantID, session.NewSetting(field))
		return []RenderRequest{e.reply(ev, settingPrompt(field))}, nil
	}
	e.sessions.Reset(ev.ParticipantID)
	out, err := e.applySetting(ctx, ev, field, func(st *model.State) (string, error) {
		return session.ApplySetting(st, field, ev.Args)
	})
	if errors.Is(err, model.ErrConfiguration) {
		return []RenderRequest{e.reply(ev, settingInvalid(field))}, nil
	}
	return out, err
}

func (e *Engine) settingText(ctx context.Context, ev Event, s *session.SettingSession) ([]RenderRequest, error) {
	out, err := e.applySetting(ctx, ev, s.Field, func(st *model.State) (string, error) {
		return s.Apply(st, ev.Text)
	})
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return []RenderRequest{e.reply(ev, settingInvalid(s.Field)), e.reply(ev, settingPrompt(s.Field))}, nil
	case err != nil:
		return nil, err
	}
	e.sessions.Reset(ev.ParticipantID)
	return out, nil
}

func (e *Engine) applySetting(ctx context.Context, ev Event, field string, apply func(st *model.State) (string, error)) ([]RenderRequest, error) {
	var value string
	err := e.mutate(ctx, func(st *model.State) error {
		var err error
		value, err = apply(st)
		return err
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("field", field).Str("value", value).Msg("layout changed")
	e.publish(ctx, events.TypeLayoutChanged, ev.ParticipantID, map[string]any{"field": field, "value": value})
	return []RenderRequest{e.reply(ev, fmt.Sprintf(settingDone(field), value))}, nil
}

func cancelButton() Button {
	return Button{Label: btnCancel, Action: Action{Kind: ActCancel}}
}

func bullets(items []string) string {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("• ")
		sb.WriteString(it)
	}
	return sb.String()
}
