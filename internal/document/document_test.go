package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalNormalizesStringSkills(t *testing.T) {
	raw := []byte(`{
		"cvName": "Backend CV",
		"skills": ["Go", {"id": "s-1", "value": "PostgreSQL"}],
		"interests": ["Reading"]
	}`)

	doc, err := Unmarshal(raw)
	require.NoError(t, err)

	require.Len(t, doc.Skills, 2)
	assert.Equal(t, "Go", doc.Skills[0].Value)
	assert.NotEmpty(t, doc.Skills[0].ID, "bare string skill should receive an id")
	assert.Equal(t, "s-1", doc.Skills[1].ID, "existing id must be preserved")
	assert.Equal(t, "PostgreSQL", doc.Skills[1].Value)

	require.Len(t, doc.Interests, 1)
	assert.NotEmpty(t, doc.Interests[0].ID)
}

func TestNormalizeIdempotent(t *testing.T) {
	doc := New("")
	assert.Equal(t, DefaultName, doc.Name)
	assert.Equal(t, DefaultSettings(), doc.Settings)
	assert.Equal(t, DefaultLeftColumnOrder, doc.LeftColumnOrder)
	assert.Equal(t, DefaultRightColumnOrder, doc.RightColumnOrder)

	_, err := doc.AddItem(SectionSkills)
	require.NoError(t, err)
	before, err := doc.Marshal()
	require.NoError(t, err)

	doc.Normalize()
	after, err := doc.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestNormalizeFillsPartialSettings(t *testing.T) {
	doc := New("x")
	doc.Settings = Settings{Template: TemplateClassic, FontSize: 12}
	doc.Normalize()

	assert.Equal(t, TemplateClassic, doc.Settings.Template)
	assert.Equal(t, 12.0, doc.Settings.FontSize)
	assert.Equal(t, DefaultSettings().Color, doc.Settings.Color)
	assert.Equal(t, DefaultSettings().LineHeight, doc.Settings.LineHeight)
}

func TestAddItemAssignsFreshIDs(t *testing.T) {
	doc := New("x")

	first, err := doc.AddItem(SectionExperience)
	require.NoError(t, err)
	second, err := doc.AddItem(SectionExperience)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	require.Len(t, doc.Experience, 2)
	assert.Equal(t, first, doc.Experience[0].ID)
	assert.Equal(t, second, doc.Experience[1].ID)

	_, err = doc.AddItem("nope")
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestRemoveItemKeepsOrder(t *testing.T) {
	doc := New("x")
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := doc.AddItem(SectionProjects)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, doc.RemoveItem(SectionProjects, 1))
	require.Len(t, doc.Projects, 2)
	assert.Equal(t, ids[0], doc.Projects[0].ID)
	assert.Equal(t, ids[2], doc.Projects[1].ID)

	assert.ErrorIs(t, doc.RemoveItem(SectionProjects, 5), ErrIndexOutOfRange)
}

func TestMoveItemSpliceSemantics(t *testing.T) {
	doc := New("x")
	var ids []string
	for i := 0; i < 4; i++ {
		id, err := doc.AddItem(SectionSkills)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// [0 1 2 3] -> move 0 to 2 -> [1 2 0 3]
	require.NoError(t, doc.MoveItem(SectionSkills, 0, 2))
	got := []string{doc.Skills[0].ID, doc.Skills[1].ID, doc.Skills[2].ID, doc.Skills[3].ID}
	assert.Equal(t, []string{ids[1], ids[2], ids[0], ids[3]}, got)

	assert.ErrorIs(t, doc.MoveItem(SectionSkills, 0, 9), ErrIndexOutOfRange)
}

func TestSetFieldCopyOnWrite(t *testing.T) {
	doc := New("x")
	_, err := doc.AddItem(SectionExperience)
	require.NoError(t, err)

	snapshot := doc.Clone()
	require.NoError(t, doc.SetField(SectionExperience, 0, "company", "Acme"))

	assert.Equal(t, "Acme", doc.Experience[0].Company)
	assert.NotEqual(t, "Acme", snapshot.Experience[0].Company, "clone must not observe later edits")

	assert.ErrorIs(t, doc.SetField(SectionExperience, 0, "salary", "1"), ErrUnknownField)
	assert.ErrorIs(t, doc.SetField(SectionExperience, 3, "company", "x"), ErrIndexOutOfRange)
}

func TestSetInfo(t *testing.T) {
	doc := New("x")
	require.NoError(t, doc.SetInfo("fullName", "Nguyen Van A"))
	require.NoError(t, doc.SetInfo("summary", "Seasoned engineer"))
	assert.Equal(t, "Nguyen Van A", doc.PersonalInfo.FullName)
	assert.Equal(t, "Seasoned engineer", doc.PersonalInfo.Summary)
	assert.ErrorIs(t, doc.SetInfo("age", "30"), ErrUnknownField)
}

func TestMoveSectionPreservesTokens(t *testing.T) {
	doc := New("x")
	total := len(doc.LeftColumnOrder) + len(doc.RightColumnOrder)

	// 同列内移动。
	require.NoError(t, doc.MoveSection(ColumnLeft, 0, ColumnLeft, 2))
	assert.Equal(t, []string{"skills", "interests", "contact", "references"}, doc.LeftColumnOrder)

	// 跨列移动。
	require.NoError(t, doc.MoveSection(ColumnRight, 1, ColumnLeft, 0))
	assert.Equal(t, "experience", doc.LeftColumnOrder[0])
	assert.NotContains(t, doc.RightColumnOrder, "experience")
	assert.Equal(t, total, len(doc.LeftColumnOrder)+len(doc.RightColumnOrder))

	seen := map[string]int{}
	for _, tok := range append(append([]string{}, doc.LeftColumnOrder...), doc.RightColumnOrder...) {
		seen[tok]++
	}
	for tok, n := range seen {
		assert.Equal(t, 1, n, "token %q duplicated", tok)
	}

	assert.ErrorIs(t, doc.MoveSection("middle", 0, ColumnLeft, 0), ErrUnknownColumn)
	assert.ErrorIs(t, doc.MoveSection(ColumnLeft, 99, ColumnRight, 0), ErrIndexOutOfRange)
}

func TestMergeSettingsPartialPatch(t *testing.T) {
	doc := New("x")
	doc.MergeSettings(Settings{Color: "#000000", SectionSpacing: 32})
	assert.Equal(t, "#000000", doc.Settings.Color)
	assert.Equal(t, 32, doc.Settings.SectionSpacing)
	assert.Equal(t, DefaultSettings().Template, doc.Settings.Template)
}

func TestCloneIndependence(t *testing.T) {
	doc := New("original")
	_, err := doc.AddItem(SectionEducation)
	require.NoError(t, err)

	dup := doc.Clone()
	require.NoError(t, dup.SetField(SectionEducation, 0, "school", "MIT"))
	dup.Name = "copy"

	assert.Equal(t, "original", doc.Name)
	assert.NotEqual(t, "MIT", doc.Education[0].School)
}

func TestPlainContent(t *testing.T) {
	doc := New("x")
	doc.PersonalInfo.Summary = "Summary here"
	doc.Experience = []ExperienceItem{{ID: "e1", Description: "Built services"}}
	doc.Skills = []SimpleItem{{ID: "s1", Value: "Go"}}
	doc.Projects = []ProjectItem{{ID: "p1", Description: "Side project"}}

	assert.Equal(t, "Summary here Built services Go Side project", doc.PlainContent())
}

func TestCompare(t *testing.T) {
	a := New("a")
	a.PersonalInfo.FullName = "A"
	_, err := a.AddItem(SectionSkills)
	require.NoError(t, err)

	b := a.Clone()
	diff := Compare(a, b)
	assert.True(t, diff.Identical)
	assert.False(t, diff.Skills)

	require.NoError(t, b.SetField(SectionSkills, 0, "value", "Rust"))
	b.PersonalInfo.FullName = "B"
	diff = Compare(a, b)
	assert.False(t, diff.Identical)
	assert.True(t, diff.PersonalInfo)
	assert.True(t, diff.Skills)
	assert.False(t, diff.Experience)
}

func TestCompareOrderSensitive(t *testing.T) {
	a := New("a")
	a.Skills = []SimpleItem{{ID: "1", Value: "Go"}, {ID: "2", Value: "SQL"}}
	b := a.Clone()
	require.NoError(t, b.MoveItem(SectionSkills, 0, 1))

	diff := Compare(a, b)
	assert.True(t, diff.Skills, "reordered items must count as a difference")
	assert.False(t, diff.Identical)
}

func TestCompareIgnoresMissingVsZeroFields(t *testing.T) {
	var a, b Document
	require.NoError(t, json.Unmarshal([]byte(`{"personalInfo":{"fullName":"A"}}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"personalInfo":{"fullName":"A","phone":""}}`), &b))

	diff := Compare(&a, &b)
	assert.False(t, diff.PersonalInfo)
	assert.True(t, diff.Identical)
}
