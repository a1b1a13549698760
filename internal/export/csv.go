package export

import (
	"bufio"
	"io"
	"strings"
)

const bom = "\ufeff"

// WriteCSV writes t with a UTF-8 byte order mark and CRLF row separators.
// A cell is quoted only when it contains a comma, quote, CR or LF. No
// separator follows the last row.
func WriteCSV(w io.Writer, t Table) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return err
	}
	writeRow(bw, t.Headers)
	for _, row := range t.Rows {
		bw.WriteString("\r\n")
		writeRow(bw, row)
	}
	return bw.Flush()
}

func writeRow(bw *bufio.Writer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteString(Escape(cell))
	}
}

// Escape quotes a single cell when needed.
func Escape(cell string) string {
	if !strings.ContainsAny(cell, ",\"\r\n") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}
