package stateio

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ahrav/gavel-preload/internal/domain"
)

// pathToURI encodes an absolute filesystem path as a file:// URI, per
// the state file grammar (spec 6).
func pathToURI(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

// uriToPath decodes a file:// URI back to an absolute filesystem path.
func uriToPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("malformed file uri %q: %w", raw, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme %q in %q", u.Scheme, raw)
	}
	return u.Path, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func parseInt(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func wantFields(fields []string, n int, kind string) error {
	if len(fields) != n {
		return fmt.Errorf("%s: want %d fields, got %d", kind, n, len(fields))
	}
	return nil
}

type preloadFields struct {
	version     int
	virtualTime float64
}

func parsePreload(fields []string) (preloadFields, error) {
	if err := wantFields(fields, 3, recPreload); err != nil {
		return preloadFields{}, err
	}
	version, err := strconv.Atoi(fields[1])
	if err != nil {
		return preloadFields{}, fmt.Errorf("%s: bad version: %w", recPreload, err)
	}
	vt, err := parseFloat(fields[2])
	if err != nil {
		return preloadFields{}, fmt.Errorf("%s: bad virtual_time: %w", recPreload, err)
	}
	return preloadFields{version: version, virtualTime: vt}, nil
}

type mapFields struct {
	seq        int64
	updateTime int64
	key        domain.MapKey
}

// MAP<TAB><seq><TAB><update_time><TAB><offset><TAB><length><TAB>-1<TAB><file_uri>
func parseMap(fields []string) (mapFields, error) {
	if err := wantFields(fields, 7, recMap); err != nil {
		return mapFields{}, err
	}
	seq, err := parseInt(fields[1])
	if err != nil {
		return mapFields{}, fmt.Errorf("%s: bad seq: %w", recMap, err)
	}
	updateTime, err := parseInt(fields[2])
	if err != nil {
		return mapFields{}, fmt.Errorf("%s: bad update_time: %w", recMap, err)
	}
	offset, err := parseInt(fields[3])
	if err != nil {
		return mapFields{}, fmt.Errorf("%s: bad offset: %w", recMap, err)
	}
	length, err := parseInt(fields[4])
	if err != nil {
		return mapFields{}, fmt.Errorf("%s: bad length: %w", recMap, err)
	}
	path, err := uriToPath(fields[6])
	if err != nil {
		return mapFields{}, err
	}
	return mapFields{seq: seq, updateTime: updateTime, key: domain.MapKey{Path: path, Offset: offset, Length: length}}, nil
}

// BADEXE<TAB><update_time><TAB>-1<TAB><file_uri> — parsed only far enough
// to validate shape; the record is never re-ingested into the model.
func parseBadExe(fields []string) error {
	return wantFields(fields, 4, recBadExe)
}

type exeFields struct {
	seq        int64
	updateTime int64
	cumTime    float64
	path       string
}

// EXE<TAB><seq><TAB><update_time><TAB><cum_time><TAB>-1<TAB><file_uri>
func parseExe(fields []string) (exeFields, error) {
	if err := wantFields(fields, 6, recExe); err != nil {
		return exeFields{}, err
	}
	seq, err := parseInt(fields[1])
	if err != nil {
		return exeFields{}, fmt.Errorf("%s: bad seq: %w", recExe, err)
	}
	updateTime, err := parseInt(fields[2])
	if err != nil {
		return exeFields{}, fmt.Errorf("%s: bad update_time: %w", recExe, err)
	}
	cumTime, err := parseFloat(fields[3])
	if err != nil {
		return exeFields{}, fmt.Errorf("%s: bad cum_time: %w", recExe, err)
	}
	path, err := uriToPath(fields[5])
	if err != nil {
		return exeFields{}, err
	}
	return exeFields{seq: seq, updateTime: updateTime, cumTime: cumTime, path: path}, nil
}

type exemapFields struct {
	exeSeq int64
	mapSeq int64
	prob   float64
}

// EXEMAP<TAB><exe_seq><TAB><map_seq><TAB><prob>
func parseExemap(fields []string) (exemapFields, error) {
	if err := wantFields(fields, 4, recExemap); err != nil {
		return exemapFields{}, err
	}
	exeSeq, err := parseInt(fields[1])
	if err != nil {
		return exemapFields{}, fmt.Errorf("%s: bad exe_seq: %w", recExemap, err)
	}
	mapSeq, err := parseInt(fields[2])
	if err != nil {
		return exemapFields{}, fmt.Errorf("%s: bad map_seq: %w", recExemap, err)
	}
	prob, err := parseFloat(fields[3])
	if err != nil {
		return exemapFields{}, fmt.Errorf("%s: bad prob: %w", recExemap, err)
	}
	return exemapFields{exeSeq: exeSeq, mapSeq: mapSeq, prob: prob}, nil
}

type markovFields struct {
	aSeq, bSeq int64
	edge       *domain.MarkovEdge
}

// MARKOV<TAB><a_seq><TAB><b_seq><TAB><time><TAB>ttl0..ttl3<TAB>w00..w33 (16 weights)
func parseMarkov(fields []string) (markovFields, error) {
	if err := wantFields(fields, 3+1+4+16, recMarkov); err != nil {
		return markovFields{}, err
	}
	aSeq, err := parseInt(fields[1])
	if err != nil {
		return markovFields{}, fmt.Errorf("%s: bad a_seq: %w", recMarkov, err)
	}
	bSeq, err := parseInt(fields[2])
	if err != nil {
		return markovFields{}, fmt.Errorf("%s: bad b_seq: %w", recMarkov, err)
	}
	t, err := parseFloat(fields[3])
	if err != nil {
		return markovFields{}, fmt.Errorf("%s: bad time: %w", recMarkov, err)
	}

	edge := &domain.MarkovEdge{Time: t}
	for i := range edge.TimeToLeave {
		v, err := parseFloat(fields[4+i])
		if err != nil {
			return markovFields{}, fmt.Errorf("%s: bad ttl[%d]: %w", recMarkov, i, err)
		}
		edge.TimeToLeave[i] = v
	}

	weightStart := 8
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v, err := parseFloat(fields[weightStart+i*4+j])
			if err != nil {
				return markovFields{}, fmt.Errorf("%s: bad weight[%d][%d]: %w", recMarkov, i, j, err)
			}
			edge.Weight[i][j] = v
		}
	}

	return markovFields{aSeq: aSeq, bSeq: bSeq, edge: edge}, nil
}

func splitFields(line string) []string { return strings.Split(line, "\t") }
