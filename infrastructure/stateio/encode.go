package stateio

import (
	"bufio"
	"fmt"

	"github.com/ahrav/gavel-preload/internal/domain"
)

func writeAll(w *bufio.Writer, state *domain.State) error {
	if err := writePreload(w, state); err != nil {
		return err
	}
	for _, m := range state.Maps() {
		if err := writeMap(w, m); err != nil {
			return err
		}
	}
	for b := range state.BadExes() {
		if err := writeBadExe(w, b); err != nil {
			return err
		}
	}
	for e := range state.Exes() {
		if err := writeExe(w, e); err != nil {
			return err
		}
		for _, em := range e.Exemaps {
			if err := writeExemap(w, e, em); err != nil {
				return err
			}
		}
	}
	for edge := range state.Markovs() {
		if err := writeMarkov(w, edge); err != nil {
			return err
		}
	}
	return nil
}

func writePreload(w *bufio.Writer, state *domain.State) error {
	_, err := fmt.Fprintf(w, "%s\t%d\t%s\n", recPreload, FormatVersion, formatFloat(state.Time))
	return err
}

func writeMap(w *bufio.Writer, m *domain.Map) error {
	_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t-1\t%s\n",
		recMap, m.Seq, m.UpdateTime, m.Key.Offset, m.Key.Length, pathToURI(m.Key.Path))
	return err
}

func writeBadExe(w *bufio.Writer, b domain.BadExe) error {
	_, err := fmt.Fprintf(w, "%s\t%d\t-1\t%s\n", recBadExe, b.UpdateTime, pathToURI(b.Path))
	return err
}

func writeExe(w *bufio.Writer, e *domain.Exe) error {
	_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%s\t-1\t%s\n",
		recExe, e.Seq, e.UpdateTime, formatFloat(e.Time), pathToURI(e.Path))
	return err
}

func writeExemap(w *bufio.Writer, e *domain.Exe, em *domain.Exemap) error {
	_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", recExemap, e.Seq, em.Map.Seq, formatFloat(em.Prob))
	return err
}

func writeMarkov(w *bufio.Writer, edge *domain.MarkovEdge) error {
	if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%s", recMarkov, edge.A.Seq, edge.B.Seq, formatFloat(edge.Time)); err != nil {
		return err
	}
	for _, ttl := range edge.TimeToLeave {
		if _, err := fmt.Fprintf(w, "\t%s", formatFloat(ttl)); err != nil {
			return err
		}
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if _, err := fmt.Fprintf(w, "\t%s", formatFloat(edge.Weight[i][j])); err != nil {
				return err
			}
		}
	}
	_, err := w.WriteString("\n")
	return err
}
