package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON means a model response held no decodable JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

// ParseJSON decodes the first JSON object in an LLM response into T.
// Markdown fences and prose around or between objects are skipped: decoding
// is attempted from each '{' in turn and the first object that decodes wins.
func ParseJSON[T any](response string) (T, error) {
	var zero T
	var lastErr error
	for i := strings.IndexByte(response, '{'); i >= 0; {
		var result T
		err := json.NewDecoder(strings.NewReader(response[i:])).Decode(&result)
		if err == nil {
			return result, nil
		}
		lastErr = err

		next := strings.IndexByte(response[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	if lastErr != nil {
		return zero, fmt.Errorf("%w: %v", ErrNoJSON, lastErr)
	}
	return zero, ErrNoJSON
}
