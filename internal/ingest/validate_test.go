package ingest_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/aptis-ingest/internal/ingest"
	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

func abc() questionset.Options {
	return questionset.Options{{Letter: "A", Text: "a"}, {Letter: "B", Text: "b"}, {Letter: "C", Text: "c"}}
}

func codes(issues []ingest.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		qs   *questionset.QuestionSet
		want []string
	}{
		{
			name: "valid comprehension",
			qs: &questionset.QuestionSet{Skill: questionset.SkillReading, Part: 1, Questions: []questionset.Question{
				{ID: 1, Text: "q", Options: abc(), Answer: "B"},
			}},
			want: []string{},
		},
		{
			name: "empty comprehension",
			qs:   &questionset.QuestionSet{Skill: questionset.SkillReading, Part: 1},
			want: []string{ingest.CodeEmptySet},
		},
		{
			name: "answer outside options",
			qs: &questionset.QuestionSet{Skill: questionset.SkillReading, Part: 1, Questions: []questionset.Question{
				{ID: 1, Text: "q", Options: abc(), Answer: "D"},
			}},
			want: []string{ingest.CodeAnswerNotInOptions},
		},
		{
			name: "missing question text",
			qs: &questionset.QuestionSet{Skill: questionset.SkillReading, Part: 1, Questions: []questionset.Question{
				{ID: 1, Options: abc(), Answer: "A"},
			}},
			want: []string{ingest.CodeMissingText},
		},
		{
			name: "ordering without example",
			qs: &questionset.QuestionSet{Skill: questionset.SkillReading, Part: 2, Questions: []questionset.Question{
				{ID: 1, Sentences: []questionset.OrderingSentence{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}, {ID: 3, Text: "c"}}},
			}},
			want: []string{ingest.CodeOrderingExampleCount},
		},
		{
			name: "ordering too short",
			qs: &questionset.QuestionSet{Skill: questionset.SkillReading, Part: 2, Questions: []questionset.Question{
				{ID: 1, Sentences: []questionset.OrderingSentence{{ID: 1, Text: "a", IsExample: true}, {ID: 2, Text: "b"}}},
			}},
			want: []string{ingest.CodeOrderingTooFew},
		},
		{
			name: "person reference without passage",
			qs: &questionset.QuestionSet{Skill: questionset.SkillReading, Part: 3,
				Passages:  []questionset.Passage{{ID: 1, Person: "A", Text: "x"}},
				Questions: []questionset.Question{{ID: 1, Text: "who", Answer: "B", CorrectPerson: "B"}},
			},
			want: []string{ingest.CodeMissingAnswerReference},
		},
		{
			name: "conversation without segments",
			qs: &questionset.QuestionSet{Skill: questionset.SkillListening, Part: 1, Conversations: []questionset.Conversation{
				{ID: 1, Title: "c", Question: questionset.Question{ID: 1, Text: "q", Options: abc(), Answer: "A"}},
			}},
			want: []string{ingest.CodeMissingText},
		},
		{
			name: "monologue answer outside options",
			qs: &questionset.QuestionSet{Skill: questionset.SkillListening, Part: 2,
				Monologue: &questionset.Monologue{
					Segments: []questionset.Segment{{Speaker: "Person 1", Text: "t", Order: 1}},
					Options:  abc(),
				},
				Questions: []questionset.Question{{ID: 1, Text: "Person 1", Answer: "F"}},
			},
			want: []string{ingest.CodeMissingAnswerReference},
		},
		{
			name: "headings differ",
			qs: &questionset.QuestionSet{Skill: questionset.SkillReading, Part: 4,
				Headings: abc(),
				Questions: []questionset.Question{
					{ID: 1, Text: "Section 1: s", Options: questionset.Options{{Letter: "A", Text: "other"}}, Answer: "A"},
				},
			},
			want: []string{ingest.CodeAnswerNotInOptions},
		},
		{
			name: "no lectures",
			qs:   &questionset.QuestionSet{Skill: questionset.SkillListening, Part: 4},
			want: []string{ingest.CodeEmptySet},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(ingest.Validate(tt.qs)))
		})
	}
}

func TestSession_Err(t *testing.T) {
	sess := &ingest.Session{QuestionSet: &questionset.QuestionSet{Skill: questionset.SkillReading, Part: 3,
		Passages:  []questionset.Passage{{ID: 1, Person: "A", Text: "x"}},
		Questions: []questionset.Question{{ID: 1, Text: "who", Answer: "C", CorrectPerson: "C"}},
	}}
	sess.Revalidate()

	err := sess.Err()
	var verr *ingest.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.HasCode(ingest.CodeMissingAnswerReference))
	assert.Contains(t, err.Error(), `person "C" has no passage`)

	sess.QuestionSet.Passages = append(sess.QuestionSet.Passages, questionset.Passage{ID: 2, Person: "C", Text: "y"})
	sess.Revalidate()
	assert.NoError(t, sess.Err())
	assert.NotNil(t, sess.ValidationErrors)
}
