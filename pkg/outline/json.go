package outline

import (
	"encoding/json"
	"fmt"
)

// JSON re-encodes the normalised tree as an indented {"nodes": [...]}
// document.
func JSON(nodes []*Node) ([]byte, error) {
	if nodes == nil {
		nodes = []*Node{}
	}
	out, err := json.MarshalIndent(struct {
		Nodes []*Node `json:"nodes"`
	}{nodes}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode outline: %w", err)
	}
	return out, nil
}
