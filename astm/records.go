package astm

import "strings"

// SplitRecords splits an ASTM E1394 message into its records. Records are
// separated by CR; LF characters left by some analyzers are dropped and
// empty records are skipped.
func SplitRecords(text string) []string {
	parts := strings.Split(text, string(RecordSeparator))
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.Trim(p, "\n")
		if p == "" {
			continue
		}
		out = append(out, p)
	}

	return out
}

// RecordType returns the record type identifier (H, P, O, R, C, Q, M, S or L)
// of a record, or 0 for an empty record.
func RecordType(record string) byte {
	if record == "" {
		return 0
	}

	return record[0]
}

// Field returns the field at index of a record split on the field delimiter,
// or "" when the record has fewer fields.
func Field(record string, index int) string {
	fields := strings.Split(record, string(FieldDelimiter))
	if index < 0 || index >= len(fields) {
		return ""
	}

	return fields[index]
}
