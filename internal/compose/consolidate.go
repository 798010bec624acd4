package compose

import "sort"

// Consolidate merges lines that share the same kind and code, summing their
// quantities. The first-seen line keeps its resolved item (and therefore the
// description and unit); output is sorted by kind then code so downstream
// documents are deterministic regardless of input order.
func Consolidate(lines []LineResult) []LineResult {
	type key struct {
		kind int
		code string
	}

	merged := make(map[key]LineResult)
	for _, line := range lines {
		k := key{int(line.Kind), line.Code}
		if existing, ok := merged[k]; ok {
			existing.Quantity += line.Quantity
			merged[k] = existing
			continue
		}
		merged[k] = line
	}

	out := make([]LineResult, 0, len(merged))
	for _, line := range merged {
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Code < out[j].Code
	})
	return out
}
