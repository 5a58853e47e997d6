package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFlushBumpsRevisionOnlyWhenDirty(t *testing.T) {
	doc := NewDocument()
	doc.Flush()
	assert.Zero(t, doc.Current().Sequence)

	doc.SetText(BindTheme, "lenten-purple")
	doc.Flush()
	first := doc.Current()
	assert.EqualValues(t, 1, first.Sequence)
	assert.NotEmpty(t, first.Revision)
	assert.Equal(t, "lenten-purple", first.Elements[BindTheme].Text)

	doc.Flush()
	assert.Equal(t, first.Revision, doc.Current().Revision)

	doc.SetVisible(BindQuizSection, false)
	doc.Flush()
	second := doc.Current()
	assert.EqualValues(t, 2, second.Sequence)
	assert.NotEqual(t, first.Revision, second.Revision)
	assert.True(t, second.Elements[BindQuizSection].Hidden)
}

func TestDocumentStateIsACopy(t *testing.T) {
	doc := NewDocument()
	doc.ReplaceChildren(BindLeaderboard, []Node{{ID: "a", Text: "Year 3"}})
	doc.Flush()
	state := doc.Current()

	doc.SetText("a", "Year 4")
	assert.Equal(t, "Year 3", state.Elements[BindLeaderboard].Children[0].Text)
	assert.Equal(t, "Year 4", doc.Children(BindLeaderboard)[0].Text)
}

func TestDocumentAttrOnChildNode(t *testing.T) {
	doc := NewDocument()
	doc.ReplaceChildren(BindPastWeeks, []Node{
		{ID: PastWeekID(2), Text: "Week 2", Attrs: map[string]string{AttrExpanded: "false"}},
		{ID: PastWeekID(1), Text: "Week 1", Attrs: map[string]string{AttrExpanded: "false"}},
	})

	doc.SetAttr(PastWeekID(1), AttrExpanded, "true")

	assert.Equal(t, "true", doc.Attr(PastWeekID(1), AttrExpanded))
	assert.Equal(t, "false", doc.Attr(PastWeekID(2), AttrExpanded))
	_, ok := doc.Element(PastWeekID(1))
	assert.False(t, ok, "child attributes must not create a top-level bind point")
}

func TestDocumentVisibleDefaultsToTrue(t *testing.T) {
	doc := NewDocument()
	assert.True(t, doc.Visible(BindErrorBanner))
	doc.SetVisible(BindErrorBanner, false)
	assert.False(t, doc.Visible(BindErrorBanner))
}

func TestDocumentSubscribeReceivesLatest(t *testing.T) {
	doc := NewDocument()
	ch, cancel := doc.Subscribe()
	defer cancel()

	doc.SetText(BindClassTotal, "$1.00")
	doc.Flush()
	doc.SetText(BindClassTotal, "$2.00")
	doc.Flush()

	select {
	case st := <-ch:
		assert.EqualValues(t, 2, st.Sequence)
		assert.Equal(t, "$2.00", st.Elements[BindClassTotal].Text)
	case <-time.After(time.Second):
		t.Fatal("没有收到状态")
	}

	cancel()
	cancel()
	doc.SetText(BindClassTotal, "$3.00")
	doc.Flush()
	select {
	case <-ch:
		t.Fatal("取消订阅后不应再收到状态")
	default:
	}
}

func TestRecorderRecordsAndApplies(t *testing.T) {
	rec := NewRecorder()
	rec.SetText(BindQuizTitle, "Week 3: Kenya")
	rec.SetAttr(BindQuizFormsLink, AttrHref, "https://forms.example/3")
	rec.SetVisible(BindQuizSection, true)
	rec.ReplaceChildren(BindQuizWinners, []Node{{Text: "🥇 Ana"}})
	rec.Flush()

	require.Len(t, rec.Ops(), 5)
	assert.Equal(t, []string{
		`text quiz-title="Week 3: Kenya"`,
		`attr quiz-forms-link[href]="https://forms.example/3"`,
		"visible quiz-section=true",
		"children quiz-winners=[🥇 Ana]",
		"flush",
	}, rec.Ops())
	assert.Equal(t, "Week 3: Kenya", rec.Doc().Current().Elements[BindQuizTitle].Text)

	rec.Reset()
	assert.Empty(t, rec.Ops())
	assert.Equal(t, "Week 3: Kenya", rec.Doc().Text(BindQuizTitle))
}
