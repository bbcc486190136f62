package demo

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/comalice/storex"
)

// LoadScript reads a YAML sequence of actions:
//
//   - type: INC
//   - type: ADD
//     payload: 5
func LoadScript(r io.Reader) ([]storex.Action, error) {
	var actions []storex.Action
	if err := yaml.NewDecoder(r).Decode(&actions); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	for i, a := range actions {
		if storex.TypeOf(a) == nil {
			return nil, fmt.Errorf("action %d: %w", i, storex.ErrInvalidAction)
		}
	}
	return actions, nil
}
