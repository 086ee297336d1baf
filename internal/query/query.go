// Package query applies JSONPath expressions to fetched record trees.
package query

import (
	"fmt"

	"github.com/yalp/jsonpath"
)

// Extract evaluates a JSONPath expression against data. Records come off the
// XML-RPC wire as map[string]any / []any trees, which is exactly the shape
// the evaluator walks. An empty path returns data unchanged.
func Extract(data any, path string) (any, error) {
	if path == "" {
		return data, nil
	}
	out, err := jsonpath.Read(data, path)
	if err != nil {
		return nil, fmt.Errorf("jsonpath %q: %w", path, err)
	}
	return out, nil
}
