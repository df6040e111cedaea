package stateio

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ahrav/gavel-preload/internal/domain"
)

// Load reads path into state, following the load policy (spec 4.7): the
// first record must be PRELOAD with a matching major version; duplicate
// identities are hard errors carrying the offending line number; BADEXE
// records are parsed for shape but never re-ingested. After every record
// is consumed, every markov edge's state is recomputed from its
// endpoints' running bits.
//
// state must be freshly constructed (domain.NewState()); Load does not
// merge into an already-populated state.
func Load(path string, state *domain.State) error {
	f, err := os.Open(path)
	if err != nil {
		return &IoError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	mapsBySeq := make(map[int64]*domain.Map)
	exeSeqSeen := make(map[int64]bool)
	exesBySeq := make(map[int64]*domain.Exe)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	sawPreload := false

	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := splitFields(text)
		kind := fields[0]

		if !sawPreload && kind != recPreload {
			return domain.NewStateFileError(line, errors.New("first record must be PRELOAD"))
		}

		switch kind {
		case recPreload:
			if sawPreload {
				return domain.NewStateFileError(line, errors.New("duplicate PRELOAD record"))
			}
			pf, err := parsePreload(fields)
			if err != nil {
				return domain.NewStateFileError(line, err)
			}
			if pf.version != FormatVersion {
				return &domain.VersionSkewError{Found: pf.version, Want: FormatVersion}
			}
			state.Time = pf.virtualTime
			sawPreload = true

		case recMap:
			mf, err := parseMap(fields)
			if err != nil {
				return domain.NewStateFileError(line, err)
			}
			if _, dup := mapsBySeq[mf.seq]; dup {
				return domain.NewStateFileError(line, fmt.Errorf("duplicate map seq %d", mf.seq))
			}
			m, err := state.LoadMap(mf.seq, mf.key, mf.updateTime)
			if err != nil {
				return domain.NewStateFileError(line, err)
			}
			mapsBySeq[mf.seq] = m

		case recBadExe:
			if err := parseBadExe(fields); err != nil {
				return domain.NewStateFileError(line, err)
			}
			// Intentionally discarded: the load policy never re-ingests it.

		case recExe:
			ef, err := parseExe(fields)
			if err != nil {
				return domain.NewStateFileError(line, err)
			}
			if exeSeqSeen[ef.seq] {
				return domain.NewStateFileError(line, fmt.Errorf("duplicate exe seq %d", ef.seq))
			}
			exe := domain.NewExe(ef.path)
			exe.Seq = ef.seq
			exe.UpdateTime = ef.updateTime
			exe.Time = ef.cumTime
			if err := state.LoadExe(exe); err != nil {
				return domain.NewStateFileError(line, err)
			}
			exeSeqSeen[ef.seq] = true
			exesBySeq[ef.seq] = exe

		case recExemap:
			xf, err := parseExemap(fields)
			if err != nil {
				return domain.NewStateFileError(line, err)
			}
			exe, ok := exesBySeq[xf.exeSeq]
			if !ok {
				return domain.NewStateFileError(line, fmt.Errorf("exemap references unknown exe seq %d", xf.exeSeq))
			}
			m, ok := mapsBySeq[xf.mapSeq]
			if !ok {
				return domain.NewStateFileError(line, fmt.Errorf("exemap references unknown map seq %d", xf.mapSeq))
			}
			state.LoadExemap(exe, m, xf.prob)

		case recMarkov:
			mf, err := parseMarkov(fields)
			if err != nil {
				return domain.NewStateFileError(line, err)
			}
			a, ok := exesBySeq[mf.aSeq]
			if !ok {
				return domain.NewStateFileError(line, fmt.Errorf("markov references unknown exe seq %d", mf.aSeq))
			}
			b, ok := exesBySeq[mf.bSeq]
			if !ok {
				return domain.NewStateFileError(line, fmt.Errorf("markov references unknown exe seq %d", mf.bSeq))
			}
			mf.edge.A, mf.edge.B = a, b
			mf.edge.ChangeTimestamp = state.Time
			state.LoadMarkovEdge(mf.edge)

		default:
			return domain.NewStateFileError(line, fmt.Errorf("unknown record kind %q", kind))
		}
	}
	if err := scanner.Err(); err != nil {
		return &IoError{Op: "read", Path: path, Err: err}
	}
	if !sawPreload {
		return domain.NewStateFileError(line, errors.New("missing PRELOAD record"))
	}

	state.RecomputeMarkovStates()
	state.Dirty = false
	state.ModelDirty = false
	return nil
}
