package discovery

import (
	"fmt"
	"strconv"
	"strings"

	"sigs.k8s.io/yaml"
)

// FlattenYAML parses content as a YAML document and flattens it into a
// single-level map using the literal rule a.b[0].c => a_b_0_c: join every
// path segment (object keys and array indices alike) with "_", with no
// further transformation of segment names.
func FlattenYAML(content []byte) (map[string]string, error) {
	var tree interface{}
	if err := yaml.Unmarshal(content, &tree); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	out := make(map[string]string)
	flattenInto(out, nil, tree)
	return out, nil
}

func flattenInto(out map[string]string, path []string, node interface{}) {
	switch v := node.(type) {
	case map[string]interface{}:
		for key, child := range v {
			flattenInto(out, append(path, key), child)
		}
	case []interface{}:
		for i, child := range v {
			flattenInto(out, append(path, strconv.Itoa(i)), child)
		}
	case nil:
		out[strings.Join(path, "_")] = ""
	default:
		out[strings.Join(path, "_")] = fmt.Sprintf("%v", v)
	}
}
