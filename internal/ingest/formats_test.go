package ingest_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/aptis-ingest/internal/ingest"
	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

var conversationHeaders = []string{
	"conversation_title", "context", "difficulty", "speaker_1_text", "speaker_2_text",
	"question_text", "option_A", "option_B", "option_C", "answer",
}

func keysOf(headers ...string) []string {
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = ingest.NormalizeKey(h)
	}
	return keys
}

func TestDetect_Formats(t *testing.T) {
	tests := []struct {
		name    string
		skill   questionset.Skill
		part    int
		headers []string
		want    ingest.FormatID
	}{
		{"reading 1 option columns", questionset.SkillReading, 1,
			[]string{"Passage", "Question", "OptionA", "OptionB", "OptionC", "Answer"}, ingest.FormatComprehension},
		{"reading 1 snake case", questionset.SkillReading, 1,
			[]string{"passage_text", "question_text", "option_A", "option_B", "option_C", "answer"}, ingest.FormatComprehension},
		{"reading 1 bare letters", questionset.SkillReading, 1,
			[]string{"Text", "Question", "A", "B", "C", "Answer"}, ingest.FormatLettered},
		{"reading 1 gap fill", questionset.SkillReading, 1,
			[]string{"Text", "Gap Number", "A", "B", "C", "Answer"}, ingest.FormatGapFill},
		{"listening 1 conversation", questionset.SkillListening, 1,
			conversationHeaders, ingest.FormatConversation},
		{"reading 2 ordering", questionset.SkillReading, 2,
			[]string{"Example", "Sentence1", "Sentence2"}, ingest.FormatOrdering},
		{"reading 2 unnumbered sentences", questionset.SkillReading, 2,
			[]string{"Example", "Sentence", "Sentence A"}, ingest.FormatOrdering},
		{"listening 2 monologue", questionset.SkillListening, 2,
			[]string{"topic", "person_1_text", "person_2_text", "person_3_text", "person_4_text",
				"option_A", "option_B", "option_C", "option_D", "option_E", "option_F",
				"person_1_answer", "person_2_answer", "person_3_answer", "person_4_answer"}, ingest.FormatMonologue},
		{"reading 3 person matching", questionset.SkillReading, 3,
			[]string{"PersonA", "PersonB", "Question1", "Answer1"}, ingest.FormatPersonMatching},
		{"listening 3 discussion", questionset.SkillListening, 3,
			[]string{"speaker_1_line_1", "speaker_2_line_1", "question_1_text", "question_2_text",
				"question_3_text", "question_4_text"}, ingest.FormatDiscussion},
		{"reading 4 headings", questionset.SkillReading, 4,
			[]string{"PassageTitle", "Passage", "Section", "SectionText", "HeadingA", "HeadingB", "Answer"}, ingest.FormatHeadingMatch},
		{"listening 4 lecture", questionset.SkillListening, 4,
			[]string{"lecture_id", "lecture_topic", "speaker", "audioText", "question_id", "questionText",
				"optionA", "optionB", "optionC", "answer"}, ingest.FormatLecture},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ingest.Detect(tt.skill, tt.part, keysOf(tt.headers...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.ID)
		})
	}
}

func TestDetect_FirstMatchingVariantWins(t *testing.T) {
	// Both option spellings present: the OptionA layout is listed first.
	f, err := ingest.Detect(questionset.SkillReading, 1,
		keysOf("Question", "OptionA", "OptionB", "OptionC", "A", "B", "C", "Answer"))
	require.NoError(t, err)
	assert.Equal(t, ingest.FormatComprehension, f.ID)
}

func TestDetect_MissingRequiredColumn(t *testing.T) {
	for i := range conversationHeaders {
		headers := append(append([]string{}, conversationHeaders[:i]...), conversationHeaders[i+1:]...)
		t.Run("without "+conversationHeaders[i], func(t *testing.T) {
			_, err := ingest.Detect(questionset.SkillListening, 1, keysOf(headers...))

			var formatErr *ingest.InvalidFormatError
			require.True(t, errors.As(err, &formatErr), "error = %v", err)
			assert.Contains(t, formatErr.Missing, ingest.NormalizeKey(conversationHeaders[i]))
			assert.Contains(t, err.Error(), "conversation_title")
		})
	}
}

func TestDetect_InvalidFormatListsEveryVariant(t *testing.T) {
	_, err := ingest.Detect(questionset.SkillReading, 1, keysOf("Foo", "Bar"))

	var formatErr *ingest.InvalidFormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Len(t, formatErr.Expected, 3)
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "Invalid file format for reading Part 1"), msg)
	assert.Contains(t, msg, "OptionA")
	assert.Contains(t, msg, "Gap")
}

func TestDetect_SkillMismatch(t *testing.T) {
	// A conversation sheet uploaded as reading Part 1 is rejected.
	_, err := ingest.Detect(questionset.SkillReading, 1, keysOf("conversation_title", "speaker_1_text"))
	var formatErr *ingest.InvalidFormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestFormat_ValueFirstNonEmptyAlias(t *testing.T) {
	f, err := ingest.Detect(questionset.SkillReading, 1,
		keysOf("Question", "A", "OptionA", "B", "C", "Answer"))
	require.NoError(t, err)
	require.Equal(t, ingest.FormatLettered, f.ID)

	row := ingest.RawRow{"question": "Q", "a": "", "optiona": "fallback", "b": "b", "c": "c", "answer": "A"}
	assert.Equal(t, "fallback", f.Value(row, "option_a"))
}
