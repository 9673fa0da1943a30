package scoreboard

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
)

// WriteReport writes a summary of the scoreboard and a table of every failure.
func (s *Scoreboard) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "SCOREBOARD REPORT: %s\n", s.name)
	fmt.Fprintln(w, separator)

	for _, i := range s.ifaces {
		fmt.Fprintf(w, "  - %s: %d received, %d still expected\n",
			i.name, i.received, i.queue.Len())
	}

	err := s.Result()
	if err == nil {
		fmt.Fprintf(w, "\n✓ %d transactions matched\n", s.matched)
		return
	}

	var result *ResultError
	errors.As(err, &result)

	fmt.Fprintf(w, "\n⚠ %d transactions matched, %d failures:\n\n",
		s.matched, len(result.Mismatches))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Bus", "Transaction", "Word", "Kind", "Expected", "Actual"})

	for _, m := range result.Mismatches {
		t.AppendRow(table.Row{
			m.Bus,
			m.Transaction,
			wordCell(m.Index),
			m.Kind,
			expectedCell(m),
			actualCell(m),
		})
	}

	t.Render()
	fmt.Fprintln(w)
}

// SaveReport writes the report to a file.
func (s *Scoreboard) SaveReport(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer file.Close()

	s.WriteReport(file)

	return nil
}

func wordCell(index int) string {
	if index < 0 {
		return "-"
	}

	return fmt.Sprint(index)
}

func expectedCell(m Mismatch) string {
	if m.Kind == KindValue || m.Kind == KindMissing {
		return fmt.Sprintf("%#x", uint64(m.Expected))
	}

	return "-"
}

func actualCell(m Mismatch) string {
	if m.Kind == KindValue || m.Kind == KindExtra {
		return fmt.Sprintf("%#x", uint64(m.Actual))
	}

	return "-"
}
