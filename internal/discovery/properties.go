package discovery

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// ParseProperties parses Java-style .properties content: KEY=VALUE or
// KEY:VALUE pairs, one per line, comments starting with # or !.
func ParseProperties(content []byte) (map[string]string, error) {
	result := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}

		sepIdx := strings.IndexAny(line, "=:")
		if sepIdx < 0 {
			return nil, fmt.Errorf("line %d: missing '=' or ':': %q", lineNo, line)
		}

		key := strings.TrimSpace(line[:sepIdx])
		value := strings.TrimSpace(line[sepIdx+1:])
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", lineNo)
		}
		result[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning properties content: %w", err)
	}
	return result, nil
}
