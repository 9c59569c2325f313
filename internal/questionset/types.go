// Package questionset defines the canonical question-set model shared by the
// ingestion pipeline, the preview editor and the question-bank backend.
package questionset

import "fmt"

// Skill is the exam skill a question set belongs to.
type Skill string

const (
	SkillReading   Skill = "reading"
	SkillListening Skill = "listening"
)

// ParseSkill validates a skill name.
func ParseSkill(s string) (Skill, error) {
	switch Skill(s) {
	case SkillReading, SkillListening:
		return Skill(s), nil
	default:
		return "", fmt.Errorf("unknown skill %q (want reading or listening)", s)
	}
}

// Level is a CEFR level.
type Level string

const (
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
)

func (l Level) Valid() bool {
	switch l {
	case LevelA2, LevelB1, LevelB2, LevelC1:
		return true
	}
	return false
}

// ValidPart reports whether part is one of the four layout archetypes.
func ValidPart(part int) bool {
	return part >= 1 && part <= 4
}

// Question is a single gradable item. Which fields are populated depends on
// the part: comprehension and heading questions use Options/Answer, person
// matching uses CorrectPerson, ordering wraps its Sentences in one Question.
type Question struct {
	ID            int                `json:"id"`
	Text          string             `json:"text,omitempty"`
	Options       Options            `json:"options,omitempty"`
	Answer        string             `json:"answer,omitempty"`
	SectionNumber *int               `json:"sectionNumber,omitempty"`
	IsExample     bool               `json:"isExample,omitempty"`
	Position      int                `json:"position,omitempty"`
	CorrectPerson string             `json:"correctPerson,omitempty"`
	Sentences     []OrderingSentence `json:"sentences,omitempty"`
}

// OrderingSentence is one sentence of a sentence-ordering task. Position is
// the 1-based index in the correct order.
type OrderingSentence struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	IsExample bool   `json:"isExample"`
	Position  int    `json:"position,omitempty"`
}

// Passage is one person's text in a person-matching task.
type Passage struct {
	ID     int    `json:"id"`
	Person string `json:"person"`
	Text   string `json:"text"`
}

// Segment is one speaker turn of a listening script.
type Segment struct {
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	Order    int    `json:"order"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// Conversation is a short multi-speaker listening item with one question.
type Conversation struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Context    string    `json:"context,omitempty"`
	Difficulty string    `json:"difficulty,omitempty"`
	Segments   []Segment `json:"segments"`
	Question   Question  `json:"question"`
	AudioURL   string    `json:"audioUrl,omitempty"`
}

// Monologue is the four-speaker listening item; Options holds the six
// candidate reasons A-F that the speakers are matched against.
type Monologue struct {
	Topic    string    `json:"topic"`
	Segments []Segment `json:"segments"`
	Options  Options   `json:"options"`
	AudioURL string    `json:"audioUrl,omitempty"`
}

// DiscussionLine is one line of the two-speaker discussion transcript.
type DiscussionLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Order   int    `json:"order"`
}

// Lecture groups the questions asked about one recorded talk.
type Lecture struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Speaker   string     `json:"speaker,omitempty"`
	AudioText string     `json:"audioText,omitempty"`
	Questions []Question `json:"questions"`
	AudioURL  string     `json:"audioUrl,omitempty"`
}

// QuestionSet is the canonical in-memory document built from an upload. The
// content fields are mutually exclusive; only those of the set's part are set.
type QuestionSet struct {
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	Skill         Skill            `json:"type"`
	Part          int              `json:"part"`
	Level         Level            `json:"level"`
	Questions     []Question       `json:"questions"`
	PassageText   string           `json:"passageText,omitempty"`
	PassageTitle  string           `json:"passageTitle,omitempty"`
	Passages      []Passage        `json:"passages,omitempty"`
	Headings      Options          `json:"headings,omitempty"`
	Conversations []Conversation   `json:"conversations,omitempty"`
	Monologue     *Monologue       `json:"monologue,omitempty"`
	Discussion    []DiscussionLine `json:"discussion,omitempty"`
	Lectures      []Lecture        `json:"lectures,omitempty"`
	AudioURL      string           `json:"audioUrl,omitempty"`
}

// PersonSet returns the set of persons that have a passage.
func (qs *QuestionSet) PersonSet() map[string]bool {
	persons := make(map[string]bool, len(qs.Passages))
	for _, p := range qs.Passages {
		persons[p.Person] = true
	}
	return persons
}

// Sentences returns the ordering sentences of an ordering set, or nil.
func (qs *QuestionSet) Sentences() []OrderingSentence {
	if len(qs.Questions) == 0 {
		return nil
	}
	return qs.Questions[0].Sentences
}
