package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/compare"
	"github.com/joseph-ayodele/quote-compare/internal/fieldschema"
	"github.com/joseph-ayodele/quote-compare/internal/pipeline"
)

func okOutcome(name string, row compare.Row) pipeline.Outcome {
	row[constants.FileNameField] = name
	return pipeline.Outcome{FileName: name, Status: constants.JobStatusNormalized, Row: row}
}

func TestNewSessionDefaults(t *testing.T) {
	st := NewStore(nil)
	s := st.Create("tanaka", "田中")

	assert.Equal(t, constants.DefaultFields(), s.Fields())
	assert.Equal(t, fieldschema.SourceDefault, s.Schema().Source)
	tbl := s.Table()
	assert.Equal(t, 0, tbl.Len())
	assert.True(t, tbl.HasColumn(constants.FileNameField))
	assert.Nil(t, s.LastReport())

	got, ok := st.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestApplyBatchAppendsAndReplaces(t *testing.T) {
	s := NewStore(nil).Create("u", "U")
	s.ApplySchema(fieldschema.Resolution{Fields: []string{"氏名"}, Source: fieldschema.SourceSpreadsheet})

	s.ApplyBatch(pipeline.Report{Outcomes: []pipeline.Outcome{
		okOutcome("a.pdf", compare.Row{"氏名": "A"}),
		{FileName: "b.pdf", Status: constants.JobStatusFailed},
	}}, false)
	tbl := s.ApplyBatch(pipeline.Report{Outcomes: []pipeline.Outcome{
		okOutcome("c.pdf", compare.Row{"氏名": "C"}),
	}}, false)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "c.pdf", tbl.Value(1, constants.FileNameField))

	tbl = s.ApplyBatch(pipeline.Report{Outcomes: []pipeline.Outcome{
		okOutcome("d.pdf", compare.Row{"氏名": "D"}),
	}}, true)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "D", tbl.Value(0, "氏名"))
	require.NotNil(t, s.LastReport())
	assert.Equal(t, 1, s.LastReport().Succeeded())
}

func TestApplySchemaSeedsAndColumnsStayMonotonic(t *testing.T) {
	s := NewStore(nil).Create("u", "U")
	s.ApplySchema(fieldschema.Resolution{
		Fields: []string{"氏名", "保険料"},
		Seed:   []compare.Row{{"氏名": "既存", "保険料": "1000"}},
		Source: fieldschema.SourceSpreadsheet,
	})
	tbl := s.Table()
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{"氏名", "保険料", constants.FileNameField}, tbl.Columns)

	s.ApplyBatch(pipeline.Report{Outcomes: []pipeline.Outcome{
		okOutcome("x.pdf", compare.Row{"氏名": "X", "保険料": ""}),
	}}, false)
	assert.Equal(t, 2, s.Table().Len())

	tbl = s.ApplyBatch(pipeline.Report{}, true)
	assert.Equal(t, 1, tbl.Len(), "replace resets to the seed rows")
	assert.Equal(t, "既存", tbl.Value(0, "氏名"))

	s.ResetSchema()
	assert.Equal(t, constants.DefaultFields(), s.Fields())
	assert.Equal(t, 0, s.Table().Len())
}

func TestTableIsACopy(t *testing.T) {
	s := NewStore(nil).Create("u", "U")
	s.ApplyBatch(pipeline.Report{Outcomes: []pipeline.Outcome{okOutcome("a.pdf", compare.Row{})}}, false)
	tbl := s.Table()
	tbl.Rows[0][constants.FileNameField] = "mutated"
	assert.Equal(t, "a.pdf", s.Table().Value(0, constants.FileNameField))
}

func TestBeginIsExclusive(t *testing.T) {
	s := NewStore(nil).Create("u", "U")
	require.True(t, s.Begin())
	assert.False(t, s.Begin())
	s.End()
	assert.True(t, s.Begin())
}

func TestSweepAndDelete(t *testing.T) {
	st := NewStore(nil)
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	old := st.Create("old", "")
	now = now.Add(2 * time.Hour)
	fresh := st.Create("fresh", "")

	assert.Equal(t, 1, st.Sweep(time.Hour))
	_, ok := st.Get(old.ID)
	assert.False(t, ok)
	_, ok = st.Get(fresh.ID)
	assert.True(t, ok)

	st.Delete(fresh.ID)
	assert.Equal(t, 0, st.Len())
}
