package services

import (
	"regexp"
	"sonata/types"
	"strconv"
	"strings"
)

// ProgressParser converts raw extractor output lines into structured
// progress events. Parsing is pure: the same line always yields the same
// event, and unrecognized lines yield none.
type ProgressParser interface {
	Parse(line string) *types.ProgressEvent
}

type progressParser struct {
	recognizers []recognizer
}

// recognizer inspects one line and returns an event, or nil when the line
// does not match its pattern
type recognizer func(line string) *types.ProgressEvent

var (
	// e.g. "[download]  45.3% of 3.45MiB at 1.23MiB/s ETA 00:12"
	fullProgressRe = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%\s+of\s+(~?[\d.]+\w+)\s+at\s+([\d.]+\w+/s|Unknown \w+)\s+ETA\s+(\S+)`)
	// bare percent, e.g. "[download] 100%"
	barePercentRe = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)
)

// NewProgressParser creates a parser applying recognizers in priority order.
// The full pattern must run before the bare-percent pattern because the
// latter matches a substring of the former.
func NewProgressParser() ProgressParser {
	return &progressParser{
		recognizers: []recognizer{
			recognizeFullProgress,
			recognizeBarePercent,
			recognizeMergePhase,
		},
	}
}

// Parse applies each recognizer in order and returns the first event
// produced, or nil when no recognizer matches.
func (p *progressParser) Parse(line string) *types.ProgressEvent {
	for _, recognize := range p.recognizers {
		if event := recognize(line); event != nil {
			return event
		}
	}
	return nil
}

func recognizeFullProgress(line string) *types.ProgressEvent {
	matches := fullProgressRe.FindStringSubmatch(line)
	if matches == nil {
		return nil
	}

	percent, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return nil
	}

	return &types.ProgressEvent{
		Phase:   types.PhaseDownloading,
		Percent: clampPercent(percent),
		Size:    matches[2],
		Speed:   matches[3],
		ETA:     matches[4],
	}
}

func recognizeBarePercent(line string) *types.ProgressEvent {
	matches := barePercentRe.FindStringSubmatch(line)
	if matches == nil {
		return nil
	}

	percent, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return nil
	}

	return &types.ProgressEvent{
		Phase:   types.PhaseDownloading,
		Percent: clampPercent(percent),
	}
}

// recognizeMergePhase matches the extractor's merge step, e.g.
// "[Merger] Merging formats into ..."
func recognizeMergePhase(line string) *types.ProgressEvent {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "merger") && !strings.Contains(lower, "merging") {
		return nil
	}

	return &types.ProgressEvent{
		Phase:   types.PhaseMerging,
		Percent: 95,
	}
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
