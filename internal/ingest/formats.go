package ingest

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/p-n-ai/aptis-ingest/internal/questionset"
)

// FormatID names one accepted spreadsheet layout.
type FormatID string

const (
	FormatComprehension  FormatID = "comprehension"
	FormatLettered       FormatID = "comprehension_lettered"
	FormatGapFill        FormatID = "gap_fill"
	FormatConversation   FormatID = "conversation"
	FormatOrdering       FormatID = "ordering"
	FormatMonologue      FormatID = "monologue"
	FormatPersonMatching FormatID = "person_matching"
	FormatDiscussion     FormatID = "discussion"
	FormatHeadingMatch   FormatID = "heading_match"
	FormatLecture        FormatID = "lecture"
)

// Canonical field names used by the transformers.
const (
	fieldID            = "id"
	fieldPassage       = "passage"
	fieldPassageTitle  = "passage_title"
	fieldQuestion      = "question"
	fieldAnswer        = "answer"
	fieldOptionA       = "option_a"
	fieldOptionB       = "option_b"
	fieldOptionC       = "option_c"
	fieldTitle         = "title"
	fieldContext       = "context"
	fieldDifficulty    = "difficulty"
	fieldTopic         = "topic"
	fieldSection       = "section"
	fieldSectionText   = "section_text"
	fieldLectureID     = "lecture_id"
	fieldSpeaker       = "speaker"
	fieldAudioText     = "audio_text"
	fieldQuestionID    = "question_id"
	patternSentence    = "sentence"
	patternPerson      = "person"
	patternQuestion    = "question_n"
	patternAnswer      = "answer_n"
	patternHeading     = "heading"
	patternSpeakerLine = "speaker_line"
)

// column is one canonical field and the header spellings accepted for it,
// in priority order. contains matches any header holding the substring.
type column struct {
	field    string
	aliases  []string
	contains string
	optional bool
}

// pattern is a family of numbered or lettered columns such as Sentence1..N.
type pattern struct {
	name string
	re   *regexp.Regexp
	min  int
}

type formatSpec struct {
	id       FormatID
	skill    questionset.Skill
	part     int
	columns  []column
	patterns []pattern
	expected []string
}

func req(field string, aliases ...string) column {
	return column{field: field, aliases: aliases}
}

func opt(field string, aliases ...string) column {
	return column{field: field, aliases: aliases, optional: true}
}

// formatSpecs lists the accepted layouts; for a given skill and part the
// first layout whose required columns are all present wins.
var formatSpecs = []formatSpec{
	{
		id: FormatComprehension, skill: questionset.SkillReading, part: 1,
		columns: []column{
			req(fieldQuestion, "question", "question_text"),
			req(fieldOptionA, "optiona", "option_a"),
			req(fieldOptionB, "optionb", "option_b"),
			req(fieldOptionC, "optionc", "option_c"),
			req(fieldAnswer, "answer", "correct_answer"),
			opt(fieldPassage, "passage", "passage_text"),
			opt(fieldID, "id", "question_id"),
		},
		expected: []string{"Passage", "Question", "OptionA", "OptionB", "OptionC", "Answer"},
	},
	{
		id: FormatLettered, skill: questionset.SkillReading, part: 1,
		columns: []column{
			req(fieldQuestion, "question", "question_text"),
			req(fieldOptionA, "a", "optiona", "option_a"),
			req(fieldOptionB, "b", "optionb", "option_b"),
			req(fieldOptionC, "c", "optionc", "option_c"),
			req(fieldAnswer, "answer", "correct_answer"),
			opt(fieldPassage, "passage", "text", "passage_text"),
			opt(fieldID, "id", "question_id"),
		},
		expected: []string{"Passage", "Question", "A", "B", "C", "Answer"},
	},
	{
		id: FormatGapFill, skill: questionset.SkillReading, part: 1,
		columns: []column{
			{field: fieldQuestion, contains: "gap"},
			req(fieldOptionA, "a", "optiona", "option_a"),
			req(fieldOptionB, "b", "optionb", "option_b"),
			req(fieldOptionC, "c", "optionc", "option_c"),
			req(fieldAnswer, "answer", "correct_answer"),
			opt(fieldPassage, "text", "passage", "passage_text"),
			opt(fieldID, "id"),
		},
		expected: []string{"Text", "Gap", "A", "B", "C", "Answer"},
	},
	{
		id: FormatConversation, skill: questionset.SkillListening, part: 1,
		columns: []column{
			req(fieldTitle, "conversation_title"),
			req(fieldContext, "context"),
			req(fieldDifficulty, "difficulty"),
			req("speaker_1", "speaker_1_text"),
			req("speaker_2", "speaker_2_text"),
			opt("speaker_3", "speaker_3_text"),
			opt("speaker_4", "speaker_4_text"),
			req(fieldQuestion, "question_text"),
			req(fieldOptionA, "option_a"),
			req(fieldOptionB, "option_b"),
			req(fieldOptionC, "option_c"),
			req(fieldAnswer, "answer"),
		},
		expected: []string{"conversation_title", "context", "difficulty", "speaker_1_text", "speaker_2_text",
			"question_text", "option_A", "option_B", "option_C", "answer"},
	},
	{
		id: FormatOrdering, skill: questionset.SkillReading, part: 2,
		columns: []column{
			opt("example", "example"),
		},
		patterns: []pattern{
			{name: patternSentence, re: regexp.MustCompile(`^sentence_?(.*)$`), min: 1},
		},
		expected: []string{"Example", "Sentence1", "Sentence2", "...", "SentenceN"},
	},
	{
		id: FormatMonologue, skill: questionset.SkillListening, part: 2,
		columns: monologueColumns(),
		expected: []string{"topic", "person_1_text", "person_2_text", "person_3_text", "person_4_text",
			"option_A", "option_B", "option_C", "option_D", "option_E", "option_F",
			"person_1_answer", "person_2_answer", "person_3_answer", "person_4_answer"},
	},
	{
		id: FormatPersonMatching, skill: questionset.SkillReading, part: 3,
		patterns: []pattern{
			{name: patternPerson, re: regexp.MustCompile(`^person_?([a-z])$`), min: 1},
			{name: patternQuestion, re: regexp.MustCompile(`^question_?(\d+)$`), min: 1},
			{name: patternAnswer, re: regexp.MustCompile(`^answer_?(\d+)$`), min: 1},
		},
		expected: []string{"PersonA", "PersonB", "PersonC", "PersonD",
			"Question1", "...", "Question7", "Answer1", "...", "Answer7"},
	},
	{
		id: FormatDiscussion, skill: questionset.SkillListening, part: 3,
		columns: []column{
			opt(fieldTopic, "topic", "discussion_topic"),
			req("speaker_1_line_1", "speaker_1_line_1"),
			req("speaker_2_line_1", "speaker_2_line_1"),
			req("question_1", "question_1_text"),
			req("question_2", "question_2_text"),
			req("question_3", "question_3_text"),
			req("question_4", "question_4_text"),
		},
		patterns: []pattern{
			{name: patternSpeakerLine, re: regexp.MustCompile(`^speaker_([12])_line_(\d+)$`), min: 2},
		},
		expected: []string{"speaker_1_line_1", "speaker_2_line_1", "...",
			"question_1_text", "question_1_answer", "...", "question_4_text", "question_4_answer"},
	},
	{
		id: FormatHeadingMatch, skill: questionset.SkillReading, part: 4,
		columns: []column{
			req(fieldPassageTitle, "passagetitle", "passage_title"),
			req(fieldPassage, "passage", "passage_text"),
			req(fieldSection, "section", "section_number"),
			req(fieldSectionText, "sectiontext", "section_text"),
			req(fieldAnswer, "answer"),
		},
		patterns: []pattern{
			{name: patternHeading, re: regexp.MustCompile(`^heading_?([a-z])$`), min: 1},
		},
		expected: []string{"PassageTitle", "Passage", "Section", "SectionText", "HeadingA", "...", "HeadingH", "Answer"},
	},
	{
		id: FormatLecture, skill: questionset.SkillListening, part: 4,
		columns: []column{
			req(fieldLectureID, "lecture_id"),
			req(fieldTopic, "lecture_topic"),
			req(fieldSpeaker, "speaker"),
			req(fieldAudioText, "audiotext", "audio_text"),
			req(fieldQuestionID, "question_id"),
			req(fieldQuestion, "questiontext", "question_text"),
			req(fieldOptionA, "optiona", "option_a"),
			req(fieldOptionB, "optionb", "option_b"),
			req(fieldOptionC, "optionc", "option_c"),
			req(fieldAnswer, "answer"),
		},
		expected: []string{"lecture_id", "lecture_topic", "speaker", "audioText", "question_id",
			"questionText", "optionA", "optionB", "optionC", "answer"},
	},
}

func monologueColumns() []column {
	cols := []column{req(fieldTopic, "topic")}
	for n := 1; n <= 4; n++ {
		p := strconv.Itoa(n)
		cols = append(cols,
			req("person_"+p+"_text", "person_"+p+"_text"),
			req("person_"+p+"_answer", "person_"+p+"_answer"),
		)
	}
	for _, l := range monologueLetters {
		lower := strings.ToLower(l)
		cols = append(cols,
			req("option_"+lower, "option_"+lower),
			opt("option_"+lower+"_sentence", "option_"+lower+"_sentence"),
		)
	}
	return cols
}

// Match is one header matched by a pattern, with its captured suffixes.
type Match struct {
	Key    string   `json:"key"`
	Groups []string `json:"groups"`
}

// Format is a layout resolved against a concrete header row.
type Format struct {
	ID       FormatID            `json:"id"`
	Skill    questionset.Skill   `json:"skill"`
	Part     int                 `json:"part"`
	Columns  map[string][]string `json:"columns"`
	Patterns map[string][]Match  `json:"patterns,omitempty"`
}

// Value returns the first non-empty cell among the headers matched for field.
func (f Format) Value(row RawRow, field string) string {
	for _, key := range f.Columns[field] {
		if v := row[key]; v != "" {
			return v
		}
	}
	return ""
}

// Has reports whether field resolved to at least one header.
func (f Format) Has(field string) bool {
	return len(f.Columns[field]) > 0
}

// Detect resolves the header keys against the layouts accepted for skill and
// part, returning the first that matches.
func Detect(skill questionset.Skill, part int, keys []string) (Format, error) {
	var (
		expected     [][]string
		firstMissing []string
		tried        bool
	)
	for _, spec := range formatSpecs {
		if spec.skill != skill || spec.part != part {
			continue
		}
		f, missing := spec.resolve(keys)
		if len(missing) == 0 {
			return f, nil
		}
		if !tried {
			firstMissing = missing
			tried = true
		}
		expected = append(expected, spec.expected)
	}
	return Format{}, &InvalidFormatError{
		Skill:    skill,
		Part:     part,
		Expected: expected,
		Missing:  firstMissing,
	}
}

func (s formatSpec) resolve(keys []string) (Format, []string) {
	f := Format{
		ID:       s.id,
		Skill:    s.skill,
		Part:     s.part,
		Columns:  make(map[string][]string, len(s.columns)),
		Patterns: make(map[string][]Match, len(s.patterns)),
	}
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	var missing []string
	for _, col := range s.columns {
		var found []string
		for _, alias := range col.aliases {
			if present[alias] {
				found = append(found, alias)
			}
		}
		if col.contains != "" {
			for _, k := range keys {
				if strings.Contains(k, col.contains) {
					found = append(found, k)
				}
			}
		}
		if len(found) == 0 {
			if !col.optional {
				missing = append(missing, col.displayName())
			}
			continue
		}
		f.Columns[col.field] = found
	}

	for _, p := range s.patterns {
		var matches []Match
		for _, k := range keys {
			if m := p.re.FindStringSubmatch(k); m != nil {
				matches = append(matches, Match{Key: k, Groups: m[1:]})
			}
		}
		if len(matches) < p.min {
			missing = append(missing, p.name+" columns")
			continue
		}
		f.Patterns[p.name] = matches
	}

	return f, missing
}

func (c column) displayName() string {
	if len(c.aliases) > 0 {
		return c.aliases[0]
	}
	return "*" + c.contains + "*"
}

// sortMatchesByNumber orders matches by the numeric value of group idx.
// Matches whose group is not a number keep their header order after the
// numbered ones.
func sortMatchesByNumber(matches []Match, idx int) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, aok := numericGroup(matches[i], idx)
		b, bok := numericGroup(matches[j], idx)
		if aok != bok {
			return aok
		}
		return aok && a < b
	})
}

// groupNumber returns the integer in group idx, or 0 when it is not a number.
func groupNumber(m Match, idx int) int {
	n, _ := numericGroup(m, idx)
	return n
}

func numericGroup(m Match, idx int) (int, bool) {
	if idx >= len(m.Groups) {
		return 0, false
	}
	n, err := strconv.Atoi(m.Groups[idx])
	if err != nil {
		return 0, false
	}
	return n, true
}
