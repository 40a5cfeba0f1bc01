package history

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ExportSessionXLSX writes a session transcript to an xlsx workbook, one
// row per message, for hand-off to the IR team.
func ExportSessionXLSX(ctx context.Context, st Store, sessionID, path string) (int, error) {
	msgs, err := st.ListMessages(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, eris.Errorf("history: no messages for session %s", sessionID)
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("messages")
	if err != nil {
		return 0, eris.Wrap(err, "history: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range []string{"timestamp", "role", "content", "confidence", "sources"} {
		header.AddCell().Value = name
	}

	for _, m := range msgs {
		row := sheet.AddRow()
		row.AddCell().Value = m.CreatedAt.UTC().Format("2006-01-02 15:04:05")
		row.AddCell().Value = m.Role
		row.AddCell().Value = m.Content
		row.AddCell().SetFloat(m.Confidence)

		titles := make([]string, 0, len(m.Sources))
		for _, src := range m.Sources {
			if src.Title != "" {
				titles = append(titles, src.Title)
			} else {
				titles = append(titles, src.ID)
			}
		}
		row.AddCell().Value = strings.Join(titles, "; ")
	}

	if err := file.Save(path); err != nil {
		return 0, eris.Wrapf(err, "history: save %s", path)
	}
	return len(msgs), nil
}
