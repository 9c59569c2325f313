package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/aptis-ingest/internal/ingest"
	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

// transform normalizes rows, detects the format and runs its transformer.
func transform(t *testing.T, skill questionset.Skill, part int, rows [][]string) *questionset.QuestionSet {
	t.Helper()
	table, err := ingest.Normalize(rows)
	require.NoError(t, err)
	f, err := ingest.Detect(skill, part, table.Keys())
	require.NoError(t, err)
	qs, err := ingest.Transform(table, f)
	require.NoError(t, err)
	qs.Skill = skill
	qs.Part = part
	return qs
}

func TestTransform_Comprehension(t *testing.T) {
	qs := transform(t, questionset.SkillReading, 1, [][]string{
		{"Passage", "Question", "OptionA", "OptionB", "OptionC", "Answer"},
		{"Dear Sam, ...", "I ___ at home.", "am", "is", "are", "a"},
		{"", "She ___ late.", "was", "were", "be", "Option A"},
	})

	assert.Equal(t, "Dear Sam, ...", qs.PassageText)
	require.Len(t, qs.Questions, 2)
	assert.Equal(t, questionset.Question{
		ID:   1,
		Text: "I ___ at home.",
		Options: questionset.Options{
			{Letter: "A", Text: "am"}, {Letter: "B", Text: "is"}, {Letter: "C", Text: "are"},
		},
		Answer: "A",
	}, qs.Questions[0])
	assert.Equal(t, 2, qs.Questions[1].ID)
	assert.Equal(t, "A", qs.Questions[1].Answer)
}

func TestTransform_ComprehensionExplicitIDs(t *testing.T) {
	qs := transform(t, questionset.SkillReading, 1, [][]string{
		{"id", "Question", "A", "B", "C", "Answer"},
		{"7", "Q7", "x", "y", "z", "C"},
		{"", "Q8", "x", "y", "z", "B"},
	})

	assert.Equal(t, 7, qs.Questions[0].ID)
	assert.Equal(t, 2, qs.Questions[1].ID, "row index is used when the id cell is blank")
}

func TestTransform_GapFill(t *testing.T) {
	qs := transform(t, questionset.SkillReading, 1, [][]string{
		{"Text", "Gap", "A", "B", "C", "Answer"},
		{"The weather (1) ___ nice.", "(1)", "is", "are", "be", "A"},
	})

	assert.Equal(t, "The weather (1) ___ nice.", qs.PassageText)
	assert.Equal(t, "(1)", qs.Questions[0].Text)
	assert.Empty(t, ingest.Validate(qs))
}

func TestTransform_ConversationGroupsByTitle(t *testing.T) {
	qs := transform(t, questionset.SkillListening, 1, [][]string{
		{"conversation_title", "context", "difficulty", "speaker_1_text", "speaker_2_text",
			"question_text", "option_A", "option_B", "option_C", "answer"},
		{"conv1", "At a cafe", "easy", "Hi", "", "Where are they?", "Cafe", "Bank", "Park", "A"},
		{"conv1", "At a cafe", "easy", "", "Hello", "Where are they?", "Cafe", "Bank", "Park", "A"},
	})

	require.Len(t, qs.Conversations, 1)
	conv := qs.Conversations[0]
	assert.Equal(t, "conv1", conv.Title)
	assert.Equal(t, []questionset.Segment{{Speaker: "Speaker 1", Text: "Hi", Order: 1}}, conv.Segments)
	assert.Equal(t, "Where are they?", conv.Question.Text)
	assert.Equal(t, "A", conv.Question.Answer)
	assert.Equal(t, "Cafe", conv.Question.Options[0].Text)
}

func TestTransform_ConversationSegmentsMatchFirstRow(t *testing.T) {
	qs := transform(t, questionset.SkillListening, 1, [][]string{
		{"conversation_title", "context", "difficulty", "speaker_1_text", "speaker_2_text", "speaker_3_text",
			"speaker_4_text", "question_text", "option_A", "option_B", "option_C", "answer"},
		{"b", "", "", "one", "two", "", "four", "Q", "x", "y", "z", "B"},
		{"a", "", "", "solo", "", "", "", "Q", "x", "y", "z", "C"},
		{"b", "", "", "ignored", "ignored", "ignored", "ignored", "Q", "x", "y", "z", "A"},
	})

	require.Len(t, qs.Conversations, 2)
	assert.Equal(t, "b", qs.Conversations[0].Title, "first occurrence order is kept")
	assert.Equal(t, "a", qs.Conversations[1].Title)

	segs := qs.Conversations[0].Segments
	require.Len(t, segs, 3)
	assert.Equal(t, "Speaker 4", segs[2].Speaker)
	assert.Equal(t, 4, segs[2].Order)
	assert.Len(t, qs.Conversations[1].Segments, 1)
	assert.Equal(t, "B", qs.Conversations[0].Question.Answer)
}

func TestTransform_OrderingScenario(t *testing.T) {
	qs := transform(t, questionset.SkillReading, 2, [][]string{
		{"Example", "Sentence1", "Sentence2"},
		{"The cat sat.", "It was happy.", "The sun rose."},
	})

	sentences := qs.Sentences()
	require.Len(t, sentences, 3)
	assert.Equal(t, "The cat sat.", sentences[0].Text)
	assert.True(t, sentences[0].IsExample)
	assert.Equal(t, "It was happy.", sentences[1].Text)
	assert.False(t, sentences[1].IsExample)
	assert.Equal(t, "The sun rose.", sentences[2].Text)
	assert.False(t, sentences[2].IsExample)
	assert.Empty(t, ingest.Validate(qs))
}

func TestTransform_OrderingSortsNumericSuffix(t *testing.T) {
	qs := transform(t, questionset.SkillReading, 2, [][]string{
		{"Sentence10", "Sentence2", "Example", "Sentence1"},
		{"ten", "two", "ex", "one"},
		{"", "more", "", ""},
	})

	var texts []string
	var examples int
	for i, s := range qs.Sentences() {
		texts = append(texts, s.Text)
		assert.Equal(t, i+1, s.Position)
		if s.IsExample {
			examples++
		}
	}
	assert.Equal(t, []string{"ex", "one", "two", "ten", "more"}, texts)
	assert.Equal(t, 1, examples)
}

func TestTransform_OrderingUnnumberedSentenceColumns(t *testing.T) {
	qs := transform(t, questionset.SkillReading, 2, [][]string{
		{"Example", "Sentence A", "Sentence2", "Sentence", "Sentence1"},
		{"ex", "lettered", "two", "bare", "one"},
	})

	var texts []string
	for _, s := range qs.Sentences() {
		texts = append(texts, s.Text)
	}
	assert.Equal(t, []string{"ex", "one", "two", "lettered", "bare"}, texts,
		"numbered columns first, then the rest in header order")
	assert.Empty(t, ingest.Validate(qs))
}

func TestTransform_Monologue(t *testing.T) {
	qs := transform(t, questionset.SkillListening, 2, [][]string{
		{"topic", "person_1_text", "person_2_text", "person_3_text", "person_4_text",
			"option_A", "option_B", "option_C", "option_D", "option_E", "option_F",
			"option_A_sentence",
			"person_1_answer", "person_2_answer", "person_3_answer", "person_4_answer"},
		{"Holidays", "p1", "p2", "p3", "p4",
			"a", "b", "c", "d", "e", "f",
			"reason a",
			"F", "", "e", ""},
	})

	require.NotNil(t, qs.Monologue)
	assert.Equal(t, "Holidays", qs.Monologue.Topic)
	require.Len(t, qs.Monologue.Segments, 4)
	assert.Equal(t, "Person 3", qs.Monologue.Segments[2].Speaker)
	require.Len(t, qs.Monologue.Options, 6)
	assert.Equal(t, "reason a", qs.Monologue.Options[0].Text, "sentence column wins")
	assert.Equal(t, "b", qs.Monologue.Options[1].Text, "falls back to option text")

	require.Len(t, qs.Questions, 4)
	answers := []string{qs.Questions[0].Answer, qs.Questions[1].Answer, qs.Questions[2].Answer, qs.Questions[3].Answer}
	assert.Equal(t, []string{"F", "B", "E", "D"}, answers)
	assert.Equal(t, 4, qs.Questions[3].Position)
	assert.Empty(t, ingest.Validate(qs))
}

func TestTransform_PersonMatching(t *testing.T) {
	qs := transform(t, questionset.SkillReading, 3, [][]string{
		{"PersonA", "PersonB", "PersonC", "PersonD", "Question1", "Answer1", "Question2", "Answer2", "Question3", "Answer3"},
		{"", "I love trains.", "", "", "Who likes trains?", "B", "", "", "Who flies?", "D"},
		{"I walk.", "", "", "", "", "", "", "", "", ""},
		{"", "", "", "I fly.", "", "", "", "", "", ""},
	})

	persons := make([]string, 0, len(qs.Passages))
	for _, p := range qs.Passages {
		persons = append(persons, p.Person)
	}
	assert.Equal(t, []string{"A", "B", "D"}, persons, "person C has no text and is dropped")
	assert.Equal(t, "I walk.", qs.Passages[0].Text)

	require.Len(t, qs.Questions, 2, "question 2 has no text and is skipped")
	assert.Equal(t, "Who likes trains?", qs.Questions[0].Text)
	assert.Equal(t, "B", qs.Questions[0].CorrectPerson)
	assert.Equal(t, "Who flies?", qs.Questions[1].Text)

	set := qs.PersonSet()
	for _, q := range qs.Questions {
		assert.True(t, set[q.CorrectPerson], "correctPerson %q has a passage", q.CorrectPerson)
	}
	assert.Empty(t, ingest.Validate(qs))
}

func TestTransform_PersonMatchingDanglingAnswer(t *testing.T) {
	qs := transform(t, questionset.SkillReading, 3, [][]string{
		{"PersonA", "PersonC", "Question1", "Answer1"},
		{"text a", "", "Who?", "C"},
	})

	issues := ingest.Validate(qs)
	require.Len(t, issues, 1)
	assert.Equal(t, ingest.CodeMissingAnswerReference, issues[0].Code)
}

func TestTransform_Discussion(t *testing.T) {
	qs := transform(t, questionset.SkillListening, 3, [][]string{
		{"topic", "speaker_1_line_2", "speaker_2_line_1", "speaker_1_line_1", "speaker_2_line_2",
			"question_1_text", "question_2_text", "question_3_text", "question_4_text",
			"question_3_answer", "question_4_answer"},
		{"Cities", "m2", "w1", "m1", "",
			"q1", "q2", "q3", "q4",
			"both", "a"},
	})

	var speakers, texts []string
	for _, line := range qs.Discussion {
		speakers = append(speakers, line.Speaker)
		texts = append(texts, line.Text)
	}
	assert.Equal(t, []string{"Man", "Woman", "Man"}, speakers)
	assert.Equal(t, []string{"m1", "w1", "m2"}, texts)

	require.Len(t, qs.Questions, 4)
	var answers, persons []string
	for _, q := range qs.Questions {
		answers = append(answers, q.Answer)
		persons = append(persons, q.CorrectPerson)
		assert.Equal(t, []string{"A", "B", "C"}, q.Options.Letters())
	}
	assert.Equal(t, []string{"A", "B", "C", "A"}, answers)
	assert.Equal(t, []string{"man", "woman", "both", "man"}, persons)
	assert.Empty(t, ingest.Validate(qs))
}

func TestTransform_HeadingMatch(t *testing.T) {
	qs := transform(t, questionset.SkillReading, 4, [][]string{
		{"PassageTitle", "Passage", "Section", "SectionText", "HeadingA", "HeadingB", "HeadingC", "Answer"},
		{"Bees", "All about bees", "0", "Bees live in hives.", "Homes", "Food", "Danger", "A"},
		{"ignored", "ignored", "1", "Bees eat nectar.", "x", "y", "z", "B"},
		{"", "", "2.0", "Wasps attack.", "", "", "", "c"},
	})

	assert.Equal(t, "Bees", qs.PassageTitle)
	assert.Equal(t, "All about bees", qs.PassageText)
	assert.Equal(t, []string{"A", "B", "C"}, qs.Headings.Letters())
	require.Len(t, qs.Questions, 3)

	assert.True(t, qs.Questions[0].IsExample)
	assert.Equal(t, "Section 0: Bees live in hives.", qs.Questions[0].Text)
	assert.False(t, qs.Questions[1].IsExample)
	assert.Equal(t, "Section 2: Wasps attack.", qs.Questions[2].Text)
	require.NotNil(t, qs.Questions[2].SectionNumber)
	assert.Equal(t, 2, *qs.Questions[2].SectionNumber)

	for _, q := range qs.Questions {
		assert.True(t, q.Options.Equal(qs.Headings))
		assert.True(t, q.Options.Has(q.Answer))
	}
	assert.Empty(t, ingest.Validate(qs))
}

func TestTransform_HeadingMatchNoHeadings(t *testing.T) {
	table, err := ingest.Normalize([][]string{
		{"PassageTitle", "Passage", "Section", "SectionText", "HeadingA", "Answer"},
		{"T", "P", "1", "S", "", "A"},
	})
	require.NoError(t, err)
	f, err := ingest.Detect(questionset.SkillReading, 4, table.Keys())
	require.NoError(t, err)

	_, err = ingest.Transform(table, f)
	assert.Error(t, err)
}

func TestTransform_Lectures(t *testing.T) {
	qs := transform(t, questionset.SkillListening, 4, [][]string{
		{"lecture_id", "lecture_topic", "speaker", "audioText", "question_id", "questionText",
			"optionA", "optionB", "optionC", "answer"},
		{"L1", "Volcanoes", "Dr Ash", "Today...", "1", "What erupts?", "Lava", "Ice", "Sand", "A"},
		{"L2", "Rivers", "Dr Flow", "Rivers...", "1", "Where?", "Sea", "Sky", "Moon", "A"},
		{"L1", "other", "other", "other", "2", "When?", "Now", "Later", "Never", "B"},
	})

	require.Len(t, qs.Lectures, 2)
	l1 := qs.Lectures[0]
	assert.Equal(t, "L1", l1.ID)
	assert.Equal(t, "Volcanoes", l1.Topic)
	assert.Equal(t, "Dr Ash", l1.Speaker)
	require.Len(t, l1.Questions, 2)
	assert.Equal(t, 2, l1.Questions[1].ID)
	assert.Equal(t, "When?", l1.Questions[1].Text)
	assert.Equal(t, "Rivers", qs.Lectures[1].Topic)
	assert.Empty(t, ingest.Validate(qs))
}
