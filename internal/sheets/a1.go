package sheets

import (
	"fmt"
	"strings"
)

// ColumnLetter converts a zero-based column index to its A1 letter(s):
// 0 -> A, 25 -> Z, 26 -> AA.
func ColumnLetter(idx int) string {
	var b []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// ColumnIndex is the inverse of ColumnLetter. It returns -1 for input that
// is not a column reference.
func ColumnIndex(letters string) int {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return -1
	}
	n := 0
	for _, r := range letters {
		if r < 'A' || r > 'Z' {
			return -1
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1
}

// RowRange pins a column span such as "N:O" to one sheet row: "N7:O7".
func RowRange(columns string, rowNum int) (string, error) {
	from, to, ok := strings.Cut(columns, ":")
	if !ok {
		to = from
	}
	if ColumnIndex(from) < 0 || ColumnIndex(to) < 0 {
		return "", fmt.Errorf("bad column span %q", columns)
	}
	if rowNum < 1 {
		return "", fmt.Errorf("bad row number %d", rowNum)
	}
	return fmt.Sprintf("%s%d:%s%d", strings.ToUpper(from), rowNum, strings.ToUpper(to), rowNum), nil
}

func qualify(table, rng string) string {
	if strings.IndexFunc(table, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_')
	}) >= 0 {
		table = "'" + strings.ReplaceAll(table, "'", "''") + "'"
	}
	return table + "!" + rng
}
