package questionset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Option is one lettered answer choice.
type Option struct {
	Letter string
	Text   string
}

// Options is an ordered list of lettered choices. It encodes to JSON as an
// object keyed by letter, in list order, and decodes from either that object
// form or the legacy array form [{"id": "A", "text": "..."}].
type Options []Option

// Choice is the legacy array-shaped option used by older editor components.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Get returns the text for letter.
func (o Options) Get(letter string) (string, bool) {
	for _, opt := range o {
		if strings.EqualFold(opt.Letter, letter) {
			return opt.Text, true
		}
	}
	return "", false
}

// Has reports whether letter is one of the options.
func (o Options) Has(letter string) bool {
	_, ok := o.Get(letter)
	return ok
}

// Letters returns the option letters in order.
func (o Options) Letters() []string {
	letters := make([]string, len(o))
	for i, opt := range o {
		letters[i] = opt.Letter
	}
	return letters
}

// Set replaces the text of letter, appending it if absent.
func (o Options) Set(letter, text string) Options {
	for i := range o {
		if strings.EqualFold(o[i].Letter, letter) {
			o[i].Text = text
			return o
		}
	}
	return append(o, Option{Letter: letter, Text: text})
}

// Clone returns an independent copy.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	return append(Options(nil), o...)
}

// Equal reports whether both lists hold the same letters and texts in order.
func (o Options) Equal(other Options) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// Choices converts to the legacy array shape.
func (o Options) Choices() []Choice {
	choices := make([]Choice, len(o))
	for i, opt := range o {
		choices[i] = Choice{ID: opt.Letter, Text: opt.Text}
	}
	return choices
}

// OptionsFromChoices converts from the legacy array shape.
func OptionsFromChoices(choices []Choice) Options {
	opts := make(Options, 0, len(choices))
	for _, c := range choices {
		opts = append(opts, Option{Letter: c.ID, Text: c.Text})
	}
	return opts
}

func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(opt.Letter)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(opt.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Options) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*o = nil
		return nil
	}

	if trimmed[0] == '[' {
		var choices []Choice
		if err := json.Unmarshal(trimmed, &choices); err != nil {
			return fmt.Errorf("decode option array: %w", err)
		}
		*o = OptionsFromChoices(choices)
		return nil
	}

	// Walk the object with a token decoder so key order survives.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode option object: %w", err)
	}
	var opts Options
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode option key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode option key: unexpected token %v", tok)
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("decode option %q: %w", key, err)
		}
		opts = append(opts, Option{Letter: key, Text: text})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode option object: %w", err)
	}
	*o = opts
	return nil
}
