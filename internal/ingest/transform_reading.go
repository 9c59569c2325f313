package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

// transformComprehension handles the three Part 1 gap/comprehension layouts.
// The passage comes from the first row; every row is one question.
func transformComprehension(t Table, f Format) (*questionset.QuestionSet, error) {
	qs := &questionset.QuestionSet{
		PassageText: f.Value(t.Rows[0], fieldPassage),
	}

	for i, row := range t.Rows {
		id := i + 1
		if n, ok := parseNumber(f.Value(row, fieldID)); ok && n > 0 {
			id = n
		}
		qs.Questions = append(qs.Questions, questionset.Question{
			ID:      id,
			Text:    f.Value(row, fieldQuestion),
			Options: abcOptions(f, row),
			Answer:  normalizeLetter(f.Value(row, fieldAnswer)),
		})
	}
	return qs, nil
}

// transformOrdering emits one sentence per non-empty Example/SentenceN cell,
// row by row, with Example first and sentences in suffix order.
func transformOrdering(t Table, f Format) (*questionset.QuestionSet, error) {
	type orderingColumn struct {
		key     string
		example bool
	}

	var cols []orderingColumn
	for _, key := range f.Columns["example"] {
		cols = append(cols, orderingColumn{key: key, example: true})
	}
	matches := append([]Match(nil), f.Patterns[patternSentence]...)
	sortMatchesByNumber(matches, 0)
	for _, m := range matches {
		cols = append(cols, orderingColumn{key: m.Key})
	}

	var sentences []questionset.OrderingSentence
	for _, row := range t.Rows {
		for _, col := range cols {
			text := row[col.key]
			if text == "" {
				continue
			}
			n := len(sentences) + 1
			sentences = append(sentences, questionset.OrderingSentence{
				ID:        n,
				Text:      text,
				IsExample: col.example,
				Position:  n,
			})
		}
	}

	return &questionset.QuestionSet{
		Questions: []questionset.Question{{ID: 1, Sentences: sentences}},
	}, nil
}

// transformPersonMatching pairs PersonX passages with QuestionN/AnswerN
// columns. Persons and questions with no text anywhere in the file are
// dropped. Answers are kept as given; dangling references are left for
// Validate to report.
func transformPersonMatching(t Table, f Format) (*questionset.QuestionSet, error) {
	persons := append([]Match(nil), f.Patterns[patternPerson]...)
	sort.SliceStable(persons, func(i, j int) bool {
		return persons[i].Groups[0] < persons[j].Groups[0]
	})

	qs := &questionset.QuestionSet{}
	for _, m := range persons {
		text, _ := firstValue(t.Rows, m.Key)
		if text == "" {
			continue
		}
		qs.Passages = append(qs.Passages, questionset.Passage{
			ID:     len(qs.Passages) + 1,
			Person: strings.ToUpper(m.Groups[0]),
			Text:   text,
		})
	}
	if len(qs.Passages) == 0 {
		return nil, fmt.Errorf("no person has any text")
	}

	answerKeys := make(map[int]string)
	for _, m := range f.Patterns[patternAnswer] {
		answerKeys[groupNumber(m, 0)] = m.Key
	}

	questions := append([]Match(nil), f.Patterns[patternQuestion]...)
	sortMatchesByNumber(questions, 0)
	for _, m := range questions {
		text, rowIdx := firstValue(t.Rows, m.Key)
		if text == "" {
			continue
		}
		answer := ""
		if key, ok := answerKeys[groupNumber(m, 0)]; ok {
			answer = t.Rows[rowIdx][key]
			if answer == "" {
				answer, _ = firstValue(t.Rows, key)
			}
		}
		person := normalizeLetter(answer)
		qs.Questions = append(qs.Questions, questionset.Question{
			ID:            len(qs.Questions) + 1,
			Text:          text,
			Answer:        person,
			CorrectPerson: person,
		})
	}
	return qs, nil
}

// transformHeadingMatch builds one section question per row. Every section
// shares the heading list taken from the first row.
func transformHeadingMatch(t Table, f Format) (*questionset.QuestionSet, error) {
	first := t.Rows[0]
	qs := &questionset.QuestionSet{
		PassageTitle: f.Value(first, fieldPassageTitle),
		PassageText:  f.Value(first, fieldPassage),
	}

	headings := append([]Match(nil), f.Patterns[patternHeading]...)
	sort.SliceStable(headings, func(i, j int) bool {
		return headings[i].Groups[0] < headings[j].Groups[0]
	})
	for _, m := range headings {
		if text := first[m.Key]; text != "" {
			qs.Headings = append(qs.Headings, questionset.Option{
				Letter: strings.ToUpper(m.Groups[0]),
				Text:   text,
			})
		}
	}
	if len(qs.Headings) == 0 {
		return nil, fmt.Errorf("first row has no headings")
	}

	for i, row := range t.Rows {
		section := f.Value(row, fieldSection)
		q := questionset.Question{
			ID:      i + 1,
			Options: qs.Headings.Clone(),
			Answer:  normalizeLetter(f.Value(row, fieldAnswer)),
		}
		if n, ok := parseNumber(section); ok {
			section = strconv.Itoa(n)
			q.SectionNumber = &n
			q.IsExample = n == 0
		}
		q.Text = fmt.Sprintf("Section %s: %s", section, f.Value(row, fieldSectionText))
		qs.Questions = append(qs.Questions, q)
	}
	return qs, nil
}
