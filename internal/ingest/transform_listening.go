package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

var monologueLetters = []string{"A", "B", "C", "D", "E", "F"}

// discussionOptions are the fixed choices of every discussion question.
var discussionOptions = questionset.Options{
	{Letter: "A", Text: "Man"},
	{Letter: "B", Text: "Woman"},
	{Letter: "C", Text: "Both"},
}

// transformConversations groups rows by conversation title. Only the first
// row of a group seeds the speaker segments and the question.
func transformConversations(t Table, f Format) (*questionset.QuestionSet, error) {
	order, groups := groupRows(t.Rows, func(r RawRow) string {
		return f.Value(r, fieldTitle)
	})
	if len(order) == 0 {
		return nil, fmt.Errorf("no row has a conversation_title")
	}

	qs := &questionset.QuestionSet{}
	for i, title := range order {
		row := groups[title][0]
		conv := questionset.Conversation{
			ID:         i + 1,
			Title:      title,
			Context:    f.Value(row, fieldContext),
			Difficulty: f.Value(row, fieldDifficulty),
			Question: questionset.Question{
				ID:      i + 1,
				Text:    f.Value(row, fieldQuestion),
				Options: abcOptions(f, row),
				Answer:  normalizeLetter(f.Value(row, fieldAnswer)),
			},
		}
		for n := 1; n <= 4; n++ {
			text := f.Value(row, "speaker_"+strconv.Itoa(n))
			if text == "" {
				continue
			}
			conv.Segments = append(conv.Segments, questionset.Segment{
				Speaker: fmt.Sprintf("Speaker %d", n),
				Text:    text,
				Order:   n,
			})
		}
		qs.Conversations = append(qs.Conversations, conv)
	}
	return qs, nil
}

// transformMonologue reads the four-speaker item from the first row. Each
// person gets one question whose answer defaults to the person's own letter.
func transformMonologue(t Table, f Format) (*questionset.QuestionSet, error) {
	row := t.Rows[0]
	mono := &questionset.Monologue{
		Topic: f.Value(row, fieldTopic),
	}

	for _, letter := range monologueLetters {
		lower := strings.ToLower(letter)
		text := f.Value(row, "option_"+lower+"_sentence")
		if text == "" {
			text = f.Value(row, "option_"+lower)
		}
		mono.Options = append(mono.Options, questionset.Option{Letter: letter, Text: text})
	}

	qs := &questionset.QuestionSet{Monologue: mono}
	for n := 1; n <= 4; n++ {
		p := strconv.Itoa(n)
		mono.Segments = append(mono.Segments, questionset.Segment{
			Speaker: "Person " + p,
			Text:    f.Value(row, "person_"+p+"_text"),
			Order:   n,
		})

		answer := normalizeLetter(f.Value(row, "person_"+p+"_answer"))
		if answer == "" {
			answer = monologueLetters[n-1]
		}
		qs.Questions = append(qs.Questions, questionset.Question{
			ID:       n,
			Text:     "Person " + p,
			Position: n,
			Answer:   answer,
		})
	}
	return qs, nil
}

// transformDiscussion interleaves speaker_1 (man) and speaker_2 (woman)
// lines into one transcript and builds the four fixed opinion questions.
func transformDiscussion(t Table, f Format) (*questionset.QuestionSet, error) {
	row := t.Rows[0]

	lines := append([]Match(nil), f.Patterns[patternSpeakerLine]...)
	sort.SliceStable(lines, func(i, j int) bool {
		li, lj := groupNumber(lines[i], 1), groupNumber(lines[j], 1)
		if li != lj {
			return li < lj
		}
		return groupNumber(lines[i], 0) < groupNumber(lines[j], 0)
	})

	qs := &questionset.QuestionSet{
		PassageTitle: f.Value(row, fieldTopic),
	}
	for _, m := range lines {
		text := row[m.Key]
		if text == "" {
			continue
		}
		speaker := "Man"
		if m.Groups[0] == "2" {
			speaker = "Woman"
		}
		qs.Discussion = append(qs.Discussion, questionset.DiscussionLine{
			Speaker: speaker,
			Text:    text,
			Order:   len(qs.Discussion) + 1,
		})
	}

	for n := 1; n <= 4; n++ {
		p := strconv.Itoa(n)
		answer := discussionLetter(row.Get("question_" + p + "_answer"))
		if answer == "" {
			answer = "A"
			if n%2 == 0 {
				answer = "B"
			}
		}
		person := strings.ToLower(strings.TrimSpace(row.Get("question_" + p + "_correct_person")))
		if person == "" {
			person = discussionPerson(answer)
		}
		qs.Questions = append(qs.Questions, questionset.Question{
			ID:            n,
			Text:          f.Value(row, "question_"+p),
			Options:       discussionOptions.Clone(),
			Answer:        answer,
			CorrectPerson: person,
		})
	}
	return qs, nil
}

func discussionLetter(cell string) string {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "man":
		return "A"
	case "woman":
		return "B"
	case "both":
		return "C"
	}
	return normalizeLetter(cell)
}

func discussionPerson(letter string) string {
	switch letter {
	case "A":
		return "man"
	case "B":
		return "woman"
	case "C":
		return "both"
	}
	return ""
}

// transformLectures groups rows by lecture_id; a lecture's topic, speaker
// and script come from its first row and each row adds one question.
func transformLectures(t Table, f Format) (*questionset.QuestionSet, error) {
	order, groups := groupRows(t.Rows, func(r RawRow) string {
		return f.Value(r, fieldLectureID)
	})
	if len(order) == 0 {
		return nil, fmt.Errorf("no row has a lecture_id")
	}

	qs := &questionset.QuestionSet{}
	for _, id := range order {
		rows := groups[id]
		first := rows[0]
		lecture := questionset.Lecture{
			ID:        id,
			Topic:     f.Value(first, fieldTopic),
			Speaker:   f.Value(first, fieldSpeaker),
			AudioText: f.Value(first, fieldAudioText),
		}
		for i, row := range rows {
			qid := i + 1
			if n, ok := parseNumber(f.Value(row, fieldQuestionID)); ok && n > 0 {
				qid = n
			}
			lecture.Questions = append(lecture.Questions, questionset.Question{
				ID:      qid,
				Text:    f.Value(row, fieldQuestion),
				Options: abcOptions(f, row),
				Answer:  normalizeLetter(f.Value(row, fieldAnswer)),
			})
		}
		qs.Lectures = append(qs.Lectures, lecture)
	}
	return qs, nil
}
