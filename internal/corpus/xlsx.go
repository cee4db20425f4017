package corpus

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/far-prep/backend/internal/models"
)

// SheetLayout maps question fields to spreadsheet columns.
type SheetLayout struct {
	SheetName         string // empty selects the first sheet
	StartRow          int    // first data row, 1-based
	IDColumn          string
	PromptColumn      string
	ChoiceColumns     [models.ChoiceCount]string
	CorrectColumn     string // letter A-D or zero-based index
	ExplanationColumn string
	SessionColumn     string
	TopicColumn       string
	TagsColumn        string // semicolon separated
	FarRefsColumn     string // semicolon separated
	DifficultyColumn  string
	SourceColumn      string
}

func DefaultSheetLayout() SheetLayout {
	return SheetLayout{
		StartRow:          2,
		IDColumn:          "A",
		PromptColumn:      "B",
		ChoiceColumns:     [models.ChoiceCount]string{"C", "D", "E", "F"},
		CorrectColumn:     "G",
		ExplanationColumn: "H",
		SessionColumn:     "I",
		TopicColumn:       "J",
		TagsColumn:        "K",
		FarRefsColumn:     "L",
		DifficultyColumn:  "M",
		SourceColumn:      "N",
	}
}

var sheetHeaders = []string{
	"ID", "Prompt", "Choice A", "Choice B", "Choice C", "Choice D", "Correct",
	"Explanation", "Session", "Topic", "Tags", "FAR Refs", "Difficulty", "Source",
}

func (l SheetLayout) columns() []string {
	return []string{
		l.IDColumn, l.PromptColumn,
		l.ChoiceColumns[0], l.ChoiceColumns[1], l.ChoiceColumns[2], l.ChoiceColumns[3],
		l.CorrectColumn, l.ExplanationColumn, l.SessionColumn, l.TopicColumn,
		l.TagsColumn, l.FarRefsColumn, l.DifficultyColumn, l.SourceColumn,
	}
}

// DecodeXLSX reads one sheet of questions. Blank rows are ignored.
func DecodeXLSX(r io.Reader, layout SheetLayout) (*LoadResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := layout.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	var drafts []draft
	var rowNums []int
	broken := make(map[int]string)
	for i, row := range rows {
		if i < layout.StartRow-1 || blankRow(row) {
			continue
		}
		d, err := rowDraft(row, layout)
		if err != nil {
			broken[len(drafts)] = err.Error()
		}
		drafts = append(drafts, d)
		rowNums = append(rowNums, i+1)
	}

	return collect(drafts, broken, func(i int) string { return fmt.Sprintf("row %d", rowNums[i]) }), nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, col string) string {
	if col == "" {
		return ""
	}
	n, err := excelize.ColumnNameToNumber(col)
	if err != nil || n-1 >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[n-1])
}

func rowDraft(row []string, l SheetLayout) (draft, error) {
	d := draft{
		ID:          cell(row, l.IDColumn),
		Prompt:      cell(row, l.PromptColumn),
		Explanation: cell(row, l.ExplanationColumn),
		Session:     cell(row, l.SessionColumn),
		Topic:       cell(row, l.TopicColumn),
		Tags:        splitList(cell(row, l.TagsColumn)),
		FarRefs:     splitList(cell(row, l.FarRefsColumn)),
		Source:      cell(row, l.SourceColumn),
	}
	for _, col := range l.ChoiceColumns {
		if c := cell(row, col); c != "" {
			d.Choices = append(d.Choices, c)
		}
	}

	if raw := cell(row, l.CorrectColumn); raw != "" {
		idx, err := parseCorrect(raw)
		if err != nil {
			return d, err
		}
		d.CorrectIndex = &idx
	}

	if raw := cell(row, l.DifficultyColumn); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return d, fmt.Errorf("difficulty %q is not a number", raw)
		}
		d.Difficulty = &n
	}
	return d, nil
}

func parseCorrect(raw string) (int, error) {
	if len(raw) == 1 {
		c := strings.ToUpper(raw)[0]
		if c >= 'A' && c < 'A'+models.ChoiceCount {
			return int(c - 'A'), nil
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("correct answer %q must be a letter A-D or an index", raw)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EncodeXLSX writes questions as a single sheet readable by DecodeXLSX with
// the same layout.
func EncodeXLSX(w io.Writer, qs []models.Question, layout SheetLayout) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if layout.SheetName != "" {
		if err := f.SetSheetName(sheet, layout.SheetName); err != nil {
			return fmt.Errorf("name sheet: %w", err)
		}
		sheet = layout.SheetName
	}

	cols := layout.columns()
	set := func(col string, row int, v any) error {
		if col == "" {
			return nil
		}
		name, err := excelize.JoinCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, name, v)
	}

	if layout.StartRow > 1 {
		for i, h := range sheetHeaders {
			if err := set(cols[i], layout.StartRow-1, h); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
		}
	}

	for i, q := range qs {
		row := layout.StartRow + i
		values := []any{
			q.ID, q.Prompt,
			q.Choices[0], q.Choices[1], q.Choices[2], q.Choices[3],
			string(rune('A' + q.CorrectIndex)), q.Explanation, string(q.Session), q.Topic,
			strings.Join(q.Tags, "; "), strings.Join(q.FarRefs, "; "), q.Difficulty, q.Source,
		}
		for j, v := range values {
			if err := set(cols[j], row, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
