package ingest

import (
	"fmt"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

const minOrderingSentences = 3

// Validate checks the referential and structural invariants of a question
// set. Every dangling answer or person reference is reported; nothing is
// defaulted here.
func Validate(qs *questionset.QuestionSet) []Issue {
	v := &validator{}

	switch {
	case qs.Skill == questionset.SkillReading && qs.Part == 2:
		v.ordering(qs)
	case qs.Skill == questionset.SkillReading && qs.Part == 3:
		v.personMatching(qs)
	case qs.Skill == questionset.SkillListening && qs.Part == 1:
		v.conversations(qs)
	case qs.Skill == questionset.SkillListening && qs.Part == 2:
		v.monologue(qs)
	case qs.Skill == questionset.SkillListening && qs.Part == 4:
		v.lectures(qs)
	default:
		// Reading 1, reading 4 (headings) and listening 3 (discussion) all
		// carry lettered options on each question.
		if len(qs.Questions) == 0 {
			v.add(CodeEmptySet, "questions", "the set has no questions")
		}
		for i, q := range qs.Questions {
			v.optionQuestion(fmt.Sprintf("questions[%d]", i), q)
		}
		if qs.Skill == questionset.SkillReading && qs.Part == 4 {
			v.headings(qs)
		}
	}
	return v.issues
}

type validator struct {
	issues []Issue
}

func (v *validator) add(code, field, message string) {
	v.issues = append(v.issues, Issue{Code: code, Field: field, Message: message})
}

func (v *validator) optionQuestion(field string, q questionset.Question) {
	if q.Text == "" {
		v.add(CodeMissingText, field+".text", "question text is empty")
	}
	if !q.Options.Has(q.Answer) {
		v.add(CodeAnswerNotInOptions, field+".answer",
			fmt.Sprintf("answer %q is not one of the options %v", q.Answer, q.Options.Letters()))
	}
}

func (v *validator) ordering(qs *questionset.QuestionSet) {
	sentences := qs.Sentences()
	examples := 0
	for _, s := range sentences {
		if s.IsExample {
			examples++
		}
	}
	if examples != 1 {
		v.add(CodeOrderingExampleCount, "questions[0].sentences",
			fmt.Sprintf("exactly one example sentence is required, found %d", examples))
	}
	if len(sentences) < minOrderingSentences {
		v.add(CodeOrderingTooFew, "questions[0].sentences",
			fmt.Sprintf("at least %d sentences are required, found %d", minOrderingSentences, len(sentences)))
	}
}

func (v *validator) personMatching(qs *questionset.QuestionSet) {
	if len(qs.Questions) == 0 {
		v.add(CodeEmptySet, "questions", "the set has no questions")
	}
	persons := qs.PersonSet()
	for i, q := range qs.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if q.Text == "" {
			v.add(CodeMissingText, field+".text", "question text is empty")
		}
		if !persons[q.CorrectPerson] {
			v.add(CodeMissingAnswerReference, field+".correctPerson",
				fmt.Sprintf("person %q has no passage", q.CorrectPerson))
		}
	}
}

func (v *validator) conversations(qs *questionset.QuestionSet) {
	if len(qs.Conversations) == 0 {
		v.add(CodeEmptySet, "conversations", "the set has no conversations")
	}
	for i, c := range qs.Conversations {
		field := fmt.Sprintf("conversations[%d]", i)
		if len(c.Segments) == 0 {
			v.add(CodeMissingText, field+".segments", "conversation has no speaker text")
		}
		v.optionQuestion(field+".question", c.Question)
	}
}

func (v *validator) monologue(qs *questionset.QuestionSet) {
	if qs.Monologue == nil {
		v.add(CodeEmptySet, "monologue", "the set has no monologue")
		return
	}
	for i, s := range qs.Monologue.Segments {
		if s.Text == "" {
			v.add(CodeMissingText, fmt.Sprintf("monologue.segments[%d].text", i),
				fmt.Sprintf("%s has no text", s.Speaker))
		}
	}
	for i, q := range qs.Questions {
		if !qs.Monologue.Options.Has(q.Answer) {
			v.add(CodeMissingAnswerReference, fmt.Sprintf("questions[%d].answer", i),
				fmt.Sprintf("answer %q is not one of the options %v", q.Answer, qs.Monologue.Options.Letters()))
		}
	}
}

func (v *validator) lectures(qs *questionset.QuestionSet) {
	if len(qs.Lectures) == 0 {
		v.add(CodeEmptySet, "lectures", "the set has no lectures")
	}
	for i, l := range qs.Lectures {
		for j, q := range l.Questions {
			v.optionQuestion(fmt.Sprintf("lectures[%d].questions[%d]", i, j), q)
		}
	}
}

func (v *validator) headings(qs *questionset.QuestionSet) {
	for i, q := range qs.Questions {
		if !q.Options.Equal(qs.Headings) {
			v.add(CodeAnswerNotInOptions, fmt.Sprintf("questions[%d].options", i),
				"section options differ from the passage headings")
		}
	}
}
