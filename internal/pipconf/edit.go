package pipconf

import (
	"bytes"
	"strings"
)

// setting is one managed key of the global section. An empty value removes
// the key.
type setting struct {
	name  string
	value string
}

// normalizeKey folds a key the way pip does: case-insensitive, with
// underscores and dashes interchangeable.
func normalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// sectionName returns the name of a "[name]" header line.
func sectionName(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return "", false
	}
	return strings.TrimSpace(trimmed[1 : len(trimmed)-1]), true
}

// keyName returns the normalized key of an "name = value" or "name: value"
// line. Comments, blank and indented lines are not keys.
func keyName(line string) (string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return "", false
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] == '#' || trimmed[0] == ';' {
		return "", false
	}
	i := strings.IndexAny(trimmed, "=:")
	if i <= 0 {
		return "", false
	}
	return normalizeKey(trimmed[:i]), true
}

func isContinuation(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t') && strings.TrimSpace(line) != ""
}

// editGlobal rewrites the given keys of the [global] section of content.
// Every occurrence of a key, under any spelling pip accepts, is replaced by
// a single "name = value" line at the position of the first one; keys with
// an empty value are removed. Keys not present yet are appended to the
// section, which is created when missing. All other lines are kept as they
// are. When dropEmpty is set, a global section left without lines by the
// removal is dropped.
func editGlobal(content []byte, settings []setting, dropEmpty bool) []byte {
	newline := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		newline = "\r\n"
	}

	var lines []string
	if len(content) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
		for i := range lines {
			lines[i] = strings.TrimSuffix(lines[i], "\r")
		}
	}

	managed := make(map[string]int, len(settings))
	for i, s := range settings {
		managed[normalizeKey(s.name)] = i
	}
	written := make([]bool, len(settings))
	render := func(i int) []string {
		written[i] = true
		if settings[i].value == "" {
			return nil
		}
		return []string{settings[i].name + " = " + settings[i].value}
	}

	var (
		out        []string
		inGlobal   bool
		skipping   bool
		found      bool
		globalHead = -1
		globalEnd  = -1 // index in out after the last non-blank global line
	)
	for _, line := range lines {
		if skipping && isContinuation(line) {
			continue
		}
		skipping = false

		if name, ok := sectionName(line); ok {
			inGlobal = name == globalSection
			out = append(out, line)
			if inGlobal && globalHead < 0 {
				globalHead = len(out) - 1
				globalEnd = len(out)
			}
			continue
		}

		if inGlobal {
			if key, ok := keyName(line); ok {
				if i, ok := managed[key]; ok {
					skipping = true
					found = true
					if !written[i] {
						out = append(out, render(i)...)
						globalEnd = len(out)
					}
					continue
				}
			}
		}

		out = append(out, line)
		if inGlobal && strings.TrimSpace(line) != "" {
			globalEnd = len(out)
		}
	}

	var missing []string
	for i := range settings {
		if !written[i] {
			missing = append(missing, render(i)...)
		}
	}
	if len(missing) > 0 {
		if globalHead < 0 {
			if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
				out = append(out, "")
			}
			out = append(out, "["+globalSection+"]")
			out = append(out, missing...)
		} else {
			tail := append([]string(nil), out[globalEnd:]...)
			out = append(append(out[:globalEnd], missing...), tail...)
			globalEnd += len(missing)
		}
	}

	if dropEmpty && found && globalHead >= 0 && globalEnd == globalHead+1 {
		// only the header is left; drop it with the blank lines after it
		end := globalHead + 1
		for end < len(out) && strings.TrimSpace(out[end]) == "" {
			end++
		}
		out = append(out[:globalHead], out[end:]...)
		for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
			out = out[:len(out)-1]
		}
	}

	if len(out) == 0 {
		return nil
	}
	return []byte(strings.Join(out, newline) + newline)
}
