package ingest

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

// EditOp names a preview edit.
type EditOp string

const (
	OpSetTitle         EditOp = "set_title"
	OpSetPassage       EditOp = "set_passage"
	OpSetPassageTitle  EditOp = "set_passage_title"
	OpSetGroupTitle    EditOp = "set_group_title"
	OpSetSegmentText   EditOp = "set_segment_text"
	OpSetQuestionText  EditOp = "set_question_text"
	OpSetOption        EditOp = "set_option"
	OpSetAnswer        EditOp = "set_answer"
	OpSetCorrectPerson EditOp = "set_correct_person"
	OpMoveQuestion     EditOp = "move_question"
	OpMoveSentence     EditOp = "move_sentence"
)

// ErrInvalidEdit is wrapped by every error returned from Apply.
var ErrInvalidEdit = errors.New("invalid edit")

// Edit is one change made in the preview editor. Index selects a question
// (or a conversation in listening Part 1); Group selects the lecture in
// listening Part 4. For set_segment_text, Index selects the person passage,
// speaker segment or discussion line, and Group the conversation or lecture
// that holds it. From/To are list positions for moves.
type Edit struct {
	Op     EditOp `json:"op"`
	Group  int    `json:"group,omitempty"`
	Index  int    `json:"index,omitempty"`
	Letter string `json:"letter,omitempty"`
	Text   string `json:"text,omitempty"`
	From   int    `json:"from,omitempty"`
	To     int    `json:"to,omitempty"`
}

// Apply performs one edit on the session's question set and revalidates it.
func (s *Session) Apply(e Edit) error {
	if err := Apply(s.QuestionSet, e); err != nil {
		return err
	}
	if e.Op == OpSetTitle {
		s.Title = s.QuestionSet.Title
	}
	s.Revalidate()
	return nil
}

// Apply performs one edit on qs.
func Apply(qs *questionset.QuestionSet, e Edit) error {
	switch e.Op {
	case OpSetTitle:
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("%w: title is empty", ErrInvalidEdit)
		}
		qs.Title = e.Text
	case OpSetPassage:
		qs.PassageText = e.Text
	case OpSetPassageTitle:
		qs.PassageTitle = e.Text
	case OpSetGroupTitle:
		return setGroupTitle(qs, e)
	case OpSetSegmentText:
		return setSegmentText(qs, e)
	case OpSetQuestionText:
		q, err := target(qs, e)
		if err != nil {
			return err
		}
		q.Text = e.Text
	case OpSetOption:
		return setOption(qs, e)
	case OpSetAnswer:
		q, err := target(qs, e)
		if err != nil {
			return err
		}
		setAnswer(qs, q, e.Letter)
	case OpSetCorrectPerson:
		q, err := target(qs, e)
		if err != nil {
			return err
		}
		if qs.Skill == questionset.SkillListening {
			q.CorrectPerson = strings.ToLower(strings.TrimSpace(e.Text))
		} else {
			setAnswer(qs, q, e.Text)
		}
	case OpMoveQuestion:
		return moveQuestion(qs, e.Group, e.From, e.To)
	case OpMoveSentence:
		return moveSentence(qs, e.From, e.To)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidEdit, e.Op)
	}
	return nil
}

func target(qs *questionset.QuestionSet, e Edit) (*questionset.Question, error) {
	switch {
	case qs.Skill == questionset.SkillListening && qs.Part == 1:
		if e.Index < 0 || e.Index >= len(qs.Conversations) {
			return nil, fmt.Errorf("%w: conversation %d out of range", ErrInvalidEdit, e.Index)
		}
		return &qs.Conversations[e.Index].Question, nil
	case qs.Skill == questionset.SkillListening && qs.Part == 4:
		if e.Group < 0 || e.Group >= len(qs.Lectures) {
			return nil, fmt.Errorf("%w: lecture %d out of range", ErrInvalidEdit, e.Group)
		}
		questions := qs.Lectures[e.Group].Questions
		if e.Index < 0 || e.Index >= len(questions) {
			return nil, fmt.Errorf("%w: question %d out of range", ErrInvalidEdit, e.Index)
		}
		return &questions[e.Index], nil
	default:
		if e.Index < 0 || e.Index >= len(qs.Questions) {
			return nil, fmt.Errorf("%w: question %d out of range", ErrInvalidEdit, e.Index)
		}
		return &qs.Questions[e.Index], nil
	}
}

// setGroupTitle renames a conversation, the monologue topic or a lecture
// topic.
func setGroupTitle(qs *questionset.QuestionSet, e Edit) error {
	switch {
	case qs.Skill == questionset.SkillListening && qs.Part == 1:
		if e.Group < 0 || e.Group >= len(qs.Conversations) {
			return fmt.Errorf("%w: conversation %d out of range", ErrInvalidEdit, e.Group)
		}
		qs.Conversations[e.Group].Title = e.Text
	case qs.Skill == questionset.SkillListening && qs.Part == 2:
		if qs.Monologue == nil {
			return fmt.Errorf("%w: the set has no monologue", ErrInvalidEdit)
		}
		qs.Monologue.Topic = e.Text
	case qs.Skill == questionset.SkillListening && qs.Part == 4:
		if e.Group < 0 || e.Group >= len(qs.Lectures) {
			return fmt.Errorf("%w: lecture %d out of range", ErrInvalidEdit, e.Group)
		}
		qs.Lectures[e.Group].Topic = e.Text
	default:
		return fmt.Errorf("%w: %s %d has no groups", ErrInvalidEdit, qs.Skill, qs.Part)
	}
	return nil
}

// setSegmentText edits script or passage text that is not a question: a
// reading Part 3 person passage, a conversation or monologue speaker turn, a
// discussion line or a lecture's audio text.
func setSegmentText(qs *questionset.QuestionSet, e Edit) error {
	var text *string
	switch {
	case qs.Skill == questionset.SkillReading && qs.Part == 3:
		if e.Index < 0 || e.Index >= len(qs.Passages) {
			return fmt.Errorf("%w: passage %d out of range", ErrInvalidEdit, e.Index)
		}
		text = &qs.Passages[e.Index].Text
	case qs.Skill == questionset.SkillListening && qs.Part == 1:
		if e.Group < 0 || e.Group >= len(qs.Conversations) {
			return fmt.Errorf("%w: conversation %d out of range", ErrInvalidEdit, e.Group)
		}
		segments := qs.Conversations[e.Group].Segments
		if e.Index < 0 || e.Index >= len(segments) {
			return fmt.Errorf("%w: segment %d out of range", ErrInvalidEdit, e.Index)
		}
		text = &segments[e.Index].Text
	case qs.Skill == questionset.SkillListening && qs.Part == 2:
		if qs.Monologue == nil || e.Index < 0 || e.Index >= len(qs.Monologue.Segments) {
			return fmt.Errorf("%w: segment %d out of range", ErrInvalidEdit, e.Index)
		}
		text = &qs.Monologue.Segments[e.Index].Text
	case qs.Skill == questionset.SkillListening && qs.Part == 3:
		if e.Index < 0 || e.Index >= len(qs.Discussion) {
			return fmt.Errorf("%w: line %d out of range", ErrInvalidEdit, e.Index)
		}
		text = &qs.Discussion[e.Index].Text
	case qs.Skill == questionset.SkillListening && qs.Part == 4:
		if e.Group < 0 || e.Group >= len(qs.Lectures) {
			return fmt.Errorf("%w: lecture %d out of range", ErrInvalidEdit, e.Group)
		}
		text = &qs.Lectures[e.Group].AudioText
	default:
		return fmt.Errorf("%w: %s %d has no segments", ErrInvalidEdit, qs.Skill, qs.Part)
	}
	*text = e.Text
	return nil
}

func setAnswer(qs *questionset.QuestionSet, q *questionset.Question, value string) {
	switch {
	case qs.Skill == questionset.SkillReading && qs.Part == 3:
		q.Answer = normalizeLetter(value)
		q.CorrectPerson = q.Answer
	case qs.Skill == questionset.SkillListening && qs.Part == 3:
		q.Answer = discussionLetter(value)
		q.CorrectPerson = discussionPerson(q.Answer)
	default:
		q.Answer = normalizeLetter(value)
	}
}

// setOption edits a choice. Heading and monologue sets share one option list
// across questions, so the shared list is edited instead.
func setOption(qs *questionset.QuestionSet, e Edit) error {
	letter := normalizeLetter(e.Letter)
	if letter == "" {
		return fmt.Errorf("%w: option letter is empty", ErrInvalidEdit)
	}

	switch {
	case qs.Skill == questionset.SkillReading && qs.Part == 4:
		qs.Headings = qs.Headings.Set(letter, e.Text)
		for i := range qs.Questions {
			qs.Questions[i].Options = qs.Headings.Clone()
		}
	case qs.Skill == questionset.SkillListening && qs.Part == 2:
		if qs.Monologue == nil {
			return fmt.Errorf("%w: set has no monologue", ErrInvalidEdit)
		}
		qs.Monologue.Options = qs.Monologue.Options.Set(letter, e.Text)
	default:
		q, err := target(qs, e)
		if err != nil {
			return err
		}
		q.Options = q.Options.Set(letter, e.Text)
	}
	return nil
}

// moveQuestion reorders questions the way a drag and drop does, then renumbers
// ids from 1. Example questions are kept at the front.
func moveQuestion(qs *questionset.QuestionSet, group, from, to int) error {
	switch {
	case qs.Skill == questionset.SkillListening && qs.Part == 1:
		if err := move(qs.Conversations, from, to); err != nil {
			return err
		}
		for i := range qs.Conversations {
			qs.Conversations[i].ID = i + 1
			qs.Conversations[i].Question.ID = i + 1
		}
		return nil
	case qs.Skill == questionset.SkillListening && qs.Part == 4:
		if group < 0 || group >= len(qs.Lectures) {
			return fmt.Errorf("%w: lecture %d out of range", ErrInvalidEdit, group)
		}
		questions := qs.Lectures[group].Questions
		if err := move(questions, from, to); err != nil {
			return err
		}
		renumber(questions)
		return nil
	case qs.Skill == questionset.SkillReading && qs.Part == 2:
		return fmt.Errorf("%w: ordering sets reorder sentences, not questions", ErrInvalidEdit)
	default:
		if err := move(qs.Questions, from, to); err != nil {
			return err
		}
		slices.SortStableFunc(qs.Questions, func(a, b questionset.Question) int {
			switch {
			case a.IsExample && !b.IsExample:
				return -1
			case !a.IsExample && b.IsExample:
				return 1
			}
			return 0
		})
		renumber(qs.Questions)
		return nil
	}
}

// moveSentence changes the correct order of an ordering set. The example
// sentence stays first.
func moveSentence(qs *questionset.QuestionSet, from, to int) error {
	if len(qs.Questions) == 0 {
		return fmt.Errorf("%w: set has no sentences", ErrInvalidEdit)
	}
	sentences := qs.Questions[0].Sentences
	if from >= 0 && from < len(sentences) && sentences[from].IsExample {
		return fmt.Errorf("%w: the example sentence cannot be moved", ErrInvalidEdit)
	}
	if to >= 0 && to < len(sentences) && sentences[to].IsExample {
		return fmt.Errorf("%w: cannot move a sentence before the example", ErrInvalidEdit)
	}
	if err := move(sentences, from, to); err != nil {
		return err
	}
	for i := range sentences {
		sentences[i].Position = i + 1
	}
	return nil
}

func move[T any](items []T, from, to int) error {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return fmt.Errorf("%w: move %d -> %d out of range (len %d)", ErrInvalidEdit, from, to, len(items))
	}
	item := items[from]
	if from < to {
		copy(items[from:to], items[from+1:to+1])
	} else {
		copy(items[to+1:from+1], items[to:from])
	}
	items[to] = item
	return nil
}

func renumber(questions []questionset.Question) {
	for i := range questions {
		questions[i].ID = i + 1
	}
}

// Shuffle returns the sentences in the order shown to a student: examples
// first, the rest permuted. Position still holds the correct place.
func Shuffle(sentences []questionset.OrderingSentence, r *rand.Rand) []questionset.OrderingSentence {
	out := make([]questionset.OrderingSentence, 0, len(sentences))
	var rest []questionset.OrderingSentence
	for _, s := range sentences {
		if s.IsExample {
			out = append(out, s)
		} else {
			rest = append(rest, s)
		}
	}
	r.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	return append(out, rest...)
}
