package engine

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"topicvote/internal/events"
	"topicvote/internal/model"
	"topicvote/internal/schedule"

	"github.com/rs/zerolog"
)

var organizerCommands = map[string]bool{
	"admin":         true,
	"addtopic":      true,
	"removetopic":   true,
	"book":          true,
	"rename":        true,
	"setrooms":      true,
	"setslots":      true,
	"setmaxvotes":   true,
	"setroomnames":  true,
	"clearvotes":    true,
	"cleartopics":   true,
	"clearbookings": true,
	"topiclist":     true,
	"countvotes":    true,
	"tally":         true,
	"secret":        true,
	"finalize":      true,
	"export":        true,
	"layout":        true,
}

var settingCommands = map[string]string{
	"setrooms":     model.FieldRooms,
	"setslots":     model.FieldSlots,
	"setmaxvotes":  model.FieldMaxVotes,
	"setroomnames": model.FieldRoomNames,
}

func (e *Engine) handleCommand(ctx context.Context, ev Event) ([]RenderRequest, error) {
	cmd := strings.ToLower(ev.Command)
	if organizerCommands[cmd] && !e.isOrganizer(ctx, ev.ParticipantID) {
		zerolog.Ctx(ctx).Warn().Int64("user_id", ev.ParticipantID).Str("command", cmd).Msg("organizer command denied")
		return []RenderRequest{e.reply(ev, msgAccessDenied)}, nil
	}
	if field, ok := settingCommands[cmd]; ok {
		return e.startSetting(ctx, ev, field)
	}

	switch cmd {
	case "start":
		if ev.Private && strings.TrimSpace(ev.Args) == "vote" {
			return e.startVote(ev), nil
		}
		return []RenderRequest{e.welcome(ev)}, nil
	case "vote", "changevote":
		return e.startVote(ev), nil
	case "suggest":
		return e.startSubmission(ev), nil
	case "cancel":
		return e.cancel(ev), nil
	case "help":
		return []RenderRequest{e.reply(ev, msgHelp)}, nil
	case "admin":
		return []RenderRequest{e.reply(ev, msgAdminHelp)}, nil
	case "addtopic":
		return e.startBatch(ev), nil
	case "removetopic":
		return e.startRemoval(ev), nil
	case "book":
		return e.startBooking(ev, false), nil
	case "rename":
		return e.startBooking(ev, true), nil
	case "clearvotes":
		return e.clear(ctx, ev, "votes", (*model.State).ClearVotes, msgVotesCleared)
	case "cleartopics":
		return e.clear(ctx, ev, "topics", (*model.State).ClearTopics, msgTopicsCleared)
	case "clearbookings":
		return e.clear(ctx, ev, "bookings", (*model.State).ClearBookings, msgBookingsCleared)
	case "topiclist":
		return []RenderRequest{e.topicList(ev)}, nil
	case "countvotes":
		return []RenderRequest{e.countVotes(ev)}, nil
	case "tally":
		return []RenderRequest{e.tallyReport(ev)}, nil
	case "secret":
		return []RenderRequest{e.secret(ctx, ev)}, nil
	case "finalize":
		return e.finalize(ctx, ev), nil
	case "export":
		return e.export(ctx, ev), nil
	case "layout":
		return []RenderRequest{e.layoutReport(ev)}, nil
	}

	if ev.Private {
		return []RenderRequest{e.reply(ev, msgUnknownCommand)}, nil
	}
	return nil, nil
}

func (e *Engine) welcome(ev Event) RenderRequest {
	r := RenderRequest{ChatID: ev.ChatID, Text: msgWelcome, AllowURLButtons: true}
	if e.opts.BotUsername != "" {
		r.Buttons = []Button{{Label: btnGoVote, URL: fmt.Sprintf("https://t.me/%s?start=vote", e.opts.BotUsername)}}
	} else {
		r.Text = msgWelcomeNoLink
	}
	return r
}

func (e *Engine) clear(ctx context.Context, ev Event, what string, fn func(*model.State), text string) ([]RenderRequest, error) {
	e.sessions.Reset(ev.ParticipantID)
	err := e.mutate(ctx, func(st *model.State) error {
		fn(st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", ev.ParticipantID).Str("what", what).Msg("store cleared")
	e.publish(ctx, events.TypeStoreCleared, ev.ParticipantID, map[string]any{"what": what})
	return []RenderRequest{e.reply(ev, text)}, nil
}

func (e *Engine) topicList(ev Event) RenderRequest {
	if len(e.state.Topics) == 0 {
		return e.reply(ev, msgTopicListEmpty)
	}
	return e.reply(ev, msgTopicListHeader+"\n"+bullets(e.state.Topics))
}

func (e *Engine) countVotes(ev Event) RenderRequest {
	n := e.state.VoterCount()
	if n == 0 {
		return e.reply(ev, msgNoVoters)
	}
	return e.reply(ev, fmt.Sprintf(msgVoterCount, n))
}

func (e *Engine) tallyReport(ev Event) RenderRequest {
	tally := schedule.TallyState(e.state)
	if len(tally) == 0 {
		return e.reply(ev, msgNoVotesToProcess)
	}
	return RenderRequest{ChatID: ev.ChatID, HTML: true, Text: msgStatsHeader + "\n" + formatTally(tally)}
}

func (e *Engine) secret(ctx context.Context, ev Event) RenderRequest {
	voters := e.state.Voters()
	if len(voters) == 0 {
		return e.reply(ev, msgNoVoteData)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, msgVoterCount+"\n", len(voters))
	sb.WriteString(msgVotersHeader + "\n")
	for _, key := range voters {
		name := fmt.Sprintf(msgAnonymousVoter, key)
		if id, err := strconv.ParseInt(key, 10, 64); err == nil && e.opts.Directory != nil {
			if n := e.opts.Directory.DisplayName(ctx, id); n != "" {
				name = n
			}
		}
		fmt.Fprintf(&sb, "<b>%s</b>: %s\n", html.EscapeString(name), html.EscapeString(strings.Join(e.state.Vote(key), ", ")))
	}
	return RenderRequest{ChatID: ev.ChatID, HTML: true, Text: sb.String()}
}

func (e *Engine) finalize(ctx context.Context, ev Event) []RenderRequest {
	report, err := schedule.Finalize(e.state)
	if errors.Is(err, model.ErrNothingToProcess) {
		return []RenderRequest{e.reply(ev, msgNoVotesToProcess)}
	}

	var sb strings.Builder
	sb.WriteString(msgStatsHeader + "\n")
	if len(report.Tally) == 0 {
		sb.WriteString(msgNoVotesYet + "\n")
	} else {
		sb.WriteString(formatTally(report.Tally) + "\n")
	}
	sb.WriteString("\n" + msgScheduleHeader + "\n")
	sb.WriteString(formatAllocation(report.Allocation))
	if len(report.Allocation.Unscheduled) > 0 {
		sb.WriteString(msgSurplusHeader + "\n")
		sb.WriteString(formatTally(report.Allocation.Unscheduled) + "\n")
	}

	zerolog.Ctx(ctx).Info().
		Int("topics", len(report.Tally)).
		Int("unscheduled", len(report.Allocation.Unscheduled)).
		Msg("schedule finalized")
	e.publish(ctx, events.TypeFinalized, ev.ParticipantID, map[string]any{
		"topics":      len(report.Tally),
		"unscheduled": len(report.Allocation.Unscheduled),
	})
	return []RenderRequest{{ChatID: ev.ChatID, HTML: true, Text: sb.String()}}
}

func (e *Engine) export(ctx context.Context, ev Event) []RenderRequest {
	if e.opts.Exporter == nil {
		return []RenderRequest{e.reply(ev, msgExportUnavailable)}
	}
	report, err := schedule.Finalize(e.state)
	if errors.Is(err, model.ErrNothingToProcess) {
		return []RenderRequest{e.reply(ev, msgNoVotesToProcess)}
	}
	att, err := e.opts.Exporter(report, e.state.Layout)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("export failed")
		return []RenderRequest{e.reply(ev, msgExportFailed)}
	}
	return []RenderRequest{{ChatID: ev.ChatID, Text: msgExportCaption, Attachment: att}}
}

func (e *Engine) layoutReport(ev Event) RenderRequest {
	l := e.state.Layout
	var sb strings.Builder
	fmt.Fprintf(&sb, msgLayoutSummary+"\n", len(l.Rooms), l.SlotsPerRoom, l.MaxVotes)
	for _, room := range l.Rooms {
		sb.WriteString("\n<b>" + html.EscapeString(room) + "</b>\n")
		slots := e.state.BookedSlots(room)
		if len(slots) == 0 {
			sb.WriteString(msgNoRoomBookings + "\n")
			continue
		}
		for _, s := range slots {
			label, _ := e.state.Booking(room, s)
			fmt.Fprintf(&sb, slotLabel+": %s\n", s, html.EscapeString(label))
		}
	}
	return RenderRequest{ChatID: ev.ChatID, HTML: true, Text: sb.String()}
}

func formatTally(tally []schedule.TopicCount) string {
	lines := make([]string, 0, len(tally))
	for _, tc := range tally {
		lines = append(lines, fmt.Sprintf("• %s - %d %s", html.EscapeString(tc.Topic), tc.Count, votesWord(tc.Count)))
	}
	return strings.Join(lines, "\n")
}

func formatAllocation(a schedule.Allocation) string {
	var sb strings.Builder
	for _, room := range a.Rooms {
		sb.WriteString(html.EscapeString(room.Room) + "\n")
		for _, c := range room.Cells {
			label := c.Label
			if c.Kind == schedule.CellEmpty {
				label = msgEmptySlot
			}
			fmt.Fprintf(&sb, "<b>"+slotLabel+":</b> %s\n", c.Slot, html.EscapeString(label))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// votesWord picks the Russian plural form of "голос" for n.
func votesWord(n int) string {
	switch {
	case n%10 == 1 && n%100 != 11:
		return "голос"
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return "голоса"
	}
	return "голосов"
}
