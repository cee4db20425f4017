package corpus

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/far-prep/backend/internal/models"
)

func question(id, prompt string, session models.Session, topic string) models.Question {
	return models.Question{
		ID:           id,
		Prompt:       prompt,
		Choices:      [models.ChoiceCount]string{"alpha", "bravo", "charlie", "delta"},
		CorrectIndex: 2,
		Explanation:  "Because charlie.",
		Session:      session,
		Topic:        topic,
		Tags:         []string{"tag"},
		FarRefs:      []string{"FAR 15.101"},
		Difficulty:   2,
	}
}

// ── JSON Loader ────────────────────────────────────────

func TestDecodeJSON_AcceptsBothKeyStyles(t *testing.T) {
	payload := `[
		{"id": "c1", "prompt": "Camel case?", "choices": ["a","b","c","d"], "correctIndex": 1,
		 "session": "Session 2", "topic": "Ethics", "farRefs": ["FAR 3.104"], "difficulty": 3},
		{"id": "s1", "prompt": "Snake case?", "choices": "[\"a\",\"b\",\"c\",\"d\"]", "correct_index": 3,
		 "session": "Session 4", "topic": "Pricing", "far_refs": "[\"FAR 15.4\"]", "tags": "[\"cost\"]"}
	]`

	res, err := DecodeJSON(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Zero(t, res.InvalidCount())
	require.Len(t, res.Questions, 2)

	camel := res.Questions[0]
	assert.Equal(t, "c1", camel.ID)
	assert.Equal(t, 1, camel.CorrectIndex)
	assert.Equal(t, models.Session2, camel.Session)
	assert.Equal(t, []string{"FAR 3.104"}, camel.FarRefs)
	assert.Equal(t, 3, camel.Difficulty)

	snake := res.Questions[1]
	assert.Equal(t, [models.ChoiceCount]string{"a", "b", "c", "d"}, snake.Choices)
	assert.Equal(t, 3, snake.CorrectIndex)
	assert.Equal(t, []string{"FAR 15.4"}, snake.FarRefs)
	assert.Equal(t, []string{"cost"}, snake.Tags)
}

func TestDecodeJSON_AppliesDefaults(t *testing.T) {
	payload := `[{"prompt": "  Bare question  ", "choices": ["a","b","c","d"], "correctIndex": 0}]`

	res, err := DecodeJSON(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, res.Questions, 1)

	q := res.Questions[0]
	_, err = uuid.Parse(q.ID)
	assert.NoError(t, err, "missing id gets a uuid")
	assert.Equal(t, "Bare question", q.Prompt)
	assert.Equal(t, models.Session1, q.Session)
	assert.Equal(t, "General", q.Topic)
	assert.Equal(t, []string{"Representative Practice"}, q.Tags)
	assert.Equal(t, []string{"FAR Part 1"}, q.FarRefs)
	assert.Equal(t, 1, q.Difficulty)
}

func TestLoad_MissingIDIsStableAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"prompt": "Which part covers sealed bidding?", "choices": ["a","b","c","d"], "correctIndex": 1},
		{"prompt": "Which part covers contracting by negotiation?", "choices": ["a","b","c","d"], "correctIndex": 2}
	]`), 0o644))

	first, _, err := Load(path)
	require.NoError(t, err)
	second, _, err := Load(path)
	require.NoError(t, err)

	a, b := first.All(), second.All()
	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.Equal(t, a[1].ID, b[1].ID)
	assert.NotEqual(t, a[0].ID, a[1].ID)
}

func TestDecodeJSON_ReportsInvalidRecords(t *testing.T) {
	payload := `[
		{"id": "ok", "prompt": "Fine", "choices": ["a","b","c","d"], "correctIndex": 0},
		{"id": "three", "prompt": "Too few", "choices": ["a","b","c"], "correctIndex": 0},
		{"id": "range", "prompt": "Bad index", "choices": ["a","b","c","d"], "correctIndex": 4},
		{"id": "nocorrect", "prompt": "Missing", "choices": ["a","b","c","d"]},
		{"id": "session", "prompt": "Session", "choices": ["a","b","c","d"], "correctIndex": 0, "session": "Session 9"},
		{"id": "diff", "prompt": "Difficulty", "choices": ["a","b","c","d"], "correctIndex": 0, "difficulty": 0},
		{"id": "blank", "prompt": "Blank choice", "choices": ["a"," ","c","d"], "correctIndex": 0},
		"not an object"
	]`

	res, err := DecodeJSON(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 8, res.Total)
	require.Len(t, res.Questions, 1)
	assert.Equal(t, "ok", res.Questions[0].ID)
	assert.Equal(t, 7, res.InvalidCount())

	msg := res.Invalid.Error()
	assert.Contains(t, msg, "record 2: expected 4 choices, got 3")
	assert.Contains(t, msg, "record 3: correctIndex 4 out of range")
	assert.Contains(t, msg, "record 4: missing correctIndex")
	assert.Contains(t, msg, `record 5: unknown session "Session 9"`)
	assert.Contains(t, msg, "record 6: difficulty 0 below 1")
	assert.Contains(t, msg, "record 7: choice 1 is empty")
	assert.Contains(t, msg, "record 8: malformed record")
}

func TestDecodeJSON_NotAnArray(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`{"prompt": "x"}`))
	assert.Error(t, err)
}

// ── XLSX Loader ────────────────────────────────────────

func TestXLSX_RoundTrip(t *testing.T) {
	qs := []models.Question{
		question("x1", "First sheet question", models.Session1, "Ethics"),
		question("x2", "Second sheet question", models.Session3, "Pricing"),
	}
	qs[1].Tags = []string{"one", "two"}
	qs[1].CorrectIndex = 0
	qs[1].Source = "workbook"

	var buf bytes.Buffer
	require.NoError(t, EncodeXLSX(&buf, qs, DefaultSheetLayout()))

	res, err := DecodeXLSX(bytes.NewReader(buf.Bytes()), DefaultSheetLayout())
	require.NoError(t, err)
	assert.Zero(t, res.InvalidCount())
	assert.Equal(t, qs, res.Questions)
}

func TestXLSX_NamedSheetAndBadRows(t *testing.T) {
	layout := DefaultSheetLayout()
	layout.SheetName = "Bank"

	good := question("g1", "Good row", models.Session2, "Contracts")
	bad := question("b1", "Bad row", models.Session2, "Contracts")
	bad.Difficulty = 0

	var buf bytes.Buffer
	require.NoError(t, EncodeXLSX(&buf, []models.Question{good, bad}, layout))

	res, err := DecodeXLSX(bytes.NewReader(buf.Bytes()), layout)
	require.NoError(t, err)
	require.Len(t, res.Questions, 1)
	assert.Equal(t, "g1", res.Questions[0].ID)
	require.Equal(t, 1, res.InvalidCount())
	assert.Contains(t, res.Invalid.Errors[0], "row 3")
}

func TestParseCorrect(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"A", 0, false},
		{"d", 3, false},
		{"2", 2, false},
		{"E", 0, true},
		{"first", 0, true},
	}
	for _, tc := range cases {
		got, err := parseCorrect(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestLoadFile_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "bank.json")
	require.NoError(t, os.WriteFile(jsonPath,
		[]byte(`[{"id":"j1","prompt":"From json","choices":["a","b","c","d"],"correctIndex":2}]`), 0o644))
	res, err := LoadFile(jsonPath)
	require.NoError(t, err)
	require.Len(t, res.Questions, 1)

	xlsxPath := filepath.Join(dir, "bank.xlsx")
	f, err := os.Create(xlsxPath)
	require.NoError(t, err)
	require.NoError(t, EncodeXLSX(f, []models.Question{question("w1", "From xlsx", models.Session1, "T")}, DefaultSheetLayout()))
	require.NoError(t, f.Close())
	res, err = LoadFile(xlsxPath)
	require.NoError(t, err)
	require.Len(t, res.Questions, 1)
	assert.Equal(t, "w1", res.Questions[0].ID)

	_, err = LoadFile(filepath.Join(dir, "bank.csv"))
	assert.Error(t, err)
}

// ── Corpus ────────────────────────────────────────────

func TestCorpus_MergeDedupes(t *testing.T) {
	long := strings.Repeat("é", dedupePrefix)
	c := New()

	res := c.Merge([]models.Question{
		question("a", long+" tail one", models.Session1, "T"),
		question("b", "Other", models.Session1, "T"),
	})
	assert.Equal(t, MergeResult{Added: 2}, res)

	res = c.Merge([]models.Question{
		question("c", long+" tail two", models.Session1, "T"), // same 100-rune prefix
		question("b", "Different prompt, same id", models.Session1, "T"),
		question("d", "Fresh", models.Session2, "U"),
	})
	assert.Equal(t, MergeResult{Added: 1, Duplicates: 2}, res)
	assert.Equal(t, 3, c.Len())

	got, ok := c.Get("d")
	require.True(t, ok)
	assert.Equal(t, "Fresh", got.Prompt)
	_, ok = c.Get("c")
	assert.False(t, ok)

	all := c.All()
	assert.Equal(t, []string{"a", "b", "d"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestCorpus_Listings(t *testing.T) {
	c := FromQuestions([]models.Question{
		question("1", "p1", models.Session3, "Zeta"),
		question("2", "p2", models.Session1, "Alpha"),
		question("3", "p3", models.Session3, "Alpha"),
	})

	assert.Equal(t, []models.Session{models.Session1, models.Session3}, c.Sessions())
	assert.Equal(t, []string{"Alpha", "Zeta"}, c.Topics(""))
	assert.Equal(t, []string{"Alpha"}, c.Topics(models.Session1))
	assert.Empty(t, c.Topics(models.Session4))
}

func TestCorpus_ExportReimports(t *testing.T) {
	c := FromQuestions([]models.Question{
		question("late", "Session three", models.Session3, "T"),
		question("early", "Session one", models.Session1, "T"),
	})

	var buf bytes.Buffer
	require.NoError(t, c.ExportJSON(&buf))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "early", raw[0]["id"], "export is grouped by session")
	assert.Contains(t, raw[0], "correctIndex")
	assert.Contains(t, raw[0], "farRefs")

	res, err := DecodeJSON(&buf)
	require.NoError(t, err)
	assert.Zero(t, res.InvalidCount())
	reloaded := FromQuestions(res.Questions)
	got, ok := reloaded.Get("late")
	require.True(t, ok)
	want, _ := c.Get("late")
	assert.Equal(t, want, got)
}

func TestCorpus_SaveFileReloads(t *testing.T) {
	c := FromQuestions([]models.Question{
		question("s1", "Saved one", models.Session1, "T"),
		question("s2", "Saved two", models.Session4, "U"),
	})

	for _, name := range []string{"bank.json", "bank.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, c.SaveFile(path))

			reloaded, res, err := Load(path)
			require.NoError(t, err)
			assert.Zero(t, res.InvalidCount())
			assert.ElementsMatch(t, c.All(), reloaded.All())

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temp file cleaned up")
		})
	}

	assert.Error(t, c.SaveFile(filepath.Join(t.TempDir(), "bank.txt")))
}
