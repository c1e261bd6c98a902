package draws

import (
	"errors"
	"fmt"
	"io"
)

// Summary is a cheap aggregate over a downloaded artifact. It exists so a
// benchmark report can say what the server actually produced without anyone
// re-parsing the binary file by hand.
type Summary struct {
	Messages   int            `json:"messages"`
	Topics     map[string]int `json:"topics"`
	Draws      int            `json:"draws"`
	Parameters []string       `json:"parameters,omitempty"`
}

// Summarize decodes the whole stream and counts messages per topic. Draws is
// the number of sample-topic messages carrying features; Parameters is the
// feature names of the first such message, in stream order.
func Summarize(r io.Reader) (*Summary, error) {
	dec := NewDecoder(r)
	s := &Summary{Topics: map[string]int{}}
	for {
		msg, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode message %d: %w", s.Messages, err)
		}

		s.Messages++
		s.Topics[msg.Topic.String()]++
		if msg.Topic == TopicSample && len(msg.Features) > 0 {
			if s.Draws == 0 {
				for _, f := range msg.Features {
					s.Parameters = append(s.Parameters, f.Name)
				}
			}
			s.Draws++
		}
	}
}
