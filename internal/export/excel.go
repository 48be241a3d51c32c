// Package export renders a finalized schedule as an xlsx workbook.
package export

import (
	"bytes"
	"fmt"

	"topicvote/internal/model"
	"topicvote/internal/schedule"

	"github.com/xuri/excelize/v2"
)

const (
	SheetTally    = "Рейтинг"
	SheetSchedule = "Расписание"
)

// sheetWriter appends rows to the sheets of one workbook.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	// Excel limits sheet names to 31 characters.
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns ...string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.writeRow(row...); err != nil {
		return err
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
	return w.file.SetCellStyle(w.currentSheet, start, end, style)
}

func (w *sheetWriter) writeRow(values ...any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, v); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}

// Workbook builds the tally and schedule sheets of report.
func Workbook(report schedule.Report, layout model.Layout) ([]byte, error) {
	w := newSheetWriter()
	defer w.file.Close()

	placement := make(map[string]string)
	for _, room := range report.Allocation.Rooms {
		for _, c := range room.Cells {
			if c.Kind != schedule.CellEmpty && c.Label != "" {
				placement[c.Label] = fmt.Sprintf("%s, слот %d", room.Room, c.Slot)
			}
		}
	}

	if err := w.addSheet(SheetTally); err != nil {
		return nil, err
	}
	if err := w.writeHeader("Место", "Тема", "Голоса", "Размещение"); err != nil {
		return nil, err
	}
	for i, tc := range report.Tally {
		where, ok := placement[tc.Topic]
		if !ok {
			where = "не вошла"
		}
		if err := w.writeRow(i+1, tc.Topic, tc.Count, where); err != nil {
			return nil, err
		}
	}

	if err := w.addSheet(SheetSchedule); err != nil {
		return nil, err
	}
	if err := w.writeHeader("Зал", "Слот", "Тип", "Содержание", "Голоса"); err != nil {
		return nil, err
	}
	for _, room := range report.Allocation.Rooms {
		for _, c := range room.Cells {
			label := c.Label
			if c.Kind == schedule.CellEmpty {
				label = "Пусто"
			}
			if err := w.writeRow(room.Room, c.Slot, kindName(c.Kind), label, c.Votes); err != nil {
				return nil, err
			}
		}
	}
	if err := w.writeRow(); err != nil {
		return nil, err
	}
	if err := w.writeRow(fmt.Sprintf("Залов: %d, слотов: %d, голосов на участника: %d",
		len(layout.Rooms), layout.SlotsPerRoom, layout.MaxVotes)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := w.file.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func kindName(k schedule.CellKind) string {
	switch k {
	case schedule.CellBooking:
		return "бронь"
	case schedule.CellTopic:
		return "тема"
	}
	return ""
}
