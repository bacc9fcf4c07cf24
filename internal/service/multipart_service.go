package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/veranemoloko/media-taskdesk/internal/domain"
	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
	"github.com/veranemoloko/media-taskdesk/internal/eventloop"
)

// CheckPhase is the state of the multi-part probe.
type CheckPhase string

const (
	CheckIdle     CheckPhase = "idle"
	CheckChecking CheckPhase = "checking"
	CheckSingle   CheckPhase = "single"
	CheckMulti    CheckPhase = "multi"
	CheckError    CheckPhase = "error"
)

// MultiPartFlow probes a source URL for multi-part content and holds the
// user's part selection until it is submitted. Selections use the canonical
// string form of part numbers; they become integers only in Submit.
type MultiPartFlow struct {
	checker   MultiPartChecker
	submitter MultiPartSubmitter
	sched     eventloop.Scheduler
	timeout   time.Duration
	logger    *slog.Logger

	url        string
	phase      CheckPhase
	info       *domain.MultiPartInfo
	selected   map[string]struct{}
	message    string
	generation uint64
	onChecked  func(CheckPhase)
}

func NewMultiPartFlow(checker MultiPartChecker, submitter MultiPartSubmitter, sched eventloop.Scheduler, timeout time.Duration, logger *slog.Logger) *MultiPartFlow {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MultiPartFlow{
		checker:   checker,
		submitter: submitter,
		sched:     sched,
		timeout:   timeout,
		logger:    logger,
		phase:     CheckIdle,
		selected:  map[string]struct{}{},
	}
}

// OnChecked registers a callback invoked when a check for the current URL
// finishes.
func (f *MultiPartFlow) OnChecked(fn func(CheckPhase)) {
	f.onChecked = fn
}

// SetURL records an edit of the source URL. Any change resets the flow and
// discards the result of an outstanding check.
func (f *MultiPartFlow) SetURL(url string) {
	if url == f.url {
		return
	}
	f.url = url
	f.reset()
}

func (f *MultiPartFlow) reset() {
	f.generation++
	f.phase = CheckIdle
	f.info = nil
	f.selected = map[string]struct{}{}
	f.message = ""
}

// Check probes the current URL.
func (f *MultiPartFlow) Check() error {
	if f.phase == CheckChecking {
		return errpkg.ErrCheckInProgress
	}
	url := strings.TrimSpace(f.url)
	if url == "" {
		return &errpkg.ValidationError{Field: "video_url", Reason: "is required"}
	}

	f.reset()
	f.phase = CheckChecking
	gen := f.generation

	var (
		check *domain.MultiPartCheck
		err   error
	)
	f.sched.Go(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		check, err = f.checker.CheckMultiPart(ctx, url)
	}, func() {
		if gen != f.generation {
			f.logger.Debug("discarding multi-part check for a stale url", "url", url)
			return
		}
		switch {
		case err != nil:
			f.phase = CheckError
			f.message = err.Error()
			f.logger.Warn("multi-part check failed", "url", url, "error", err)
		case check.IsMultiPart && check.Info != nil:
			f.phase = CheckMulti
			f.info = check.Info
			f.message = fmt.Sprintf("found %d parts", len(check.Info.Parts))
		default:
			f.phase = CheckSingle
			f.message = "single-part content, submit it as a single video"
		}
		if f.onChecked != nil {
			f.onChecked(f.phase)
		}
	})
	return nil
}

// Phase returns the current probe phase.
func (f *MultiPartFlow) Phase() CheckPhase {
	return f.phase
}

// URL returns the current source URL.
func (f *MultiPartFlow) URL() string {
	return f.url
}

// Info returns the parts found by the last check, or nil.
func (f *MultiPartFlow) Info() *domain.MultiPartInfo {
	return f.info
}

// Message describes the outcome of the last check.
func (f *MultiPartFlow) Message() string {
	return f.message
}

// Selection returns the selected identifiers in part order.
func (f *MultiPartFlow) Selection() []string {
	out := []string{}
	if f.info == nil {
		return out
	}
	for _, id := range f.info.PartIDs() {
		if _, ok := f.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// SelectAll selects every part.
func (f *MultiPartFlow) SelectAll() error {
	if f.phase != CheckMulti {
		return errpkg.ErrNotMultiPart
	}
	for _, id := range f.info.PartIDs() {
		f.selected[id] = struct{}{}
	}
	return nil
}

// DeselectAll clears the selection.
func (f *MultiPartFlow) DeselectAll() error {
	if f.phase != CheckMulti {
		return errpkg.ErrNotMultiPart
	}
	f.selected = map[string]struct{}{}
	return nil
}

// Invert replaces the selection with its complement.
func (f *MultiPartFlow) Invert() error {
	if f.phase != CheckMulti {
		return errpkg.ErrNotMultiPart
	}
	next := map[string]struct{}{}
	for _, id := range f.info.PartIDs() {
		if _, ok := f.selected[id]; !ok {
			next[id] = struct{}{}
		}
	}
	f.selected = next
	return nil
}

// Toggle flips one part. Unknown identifiers are rejected.
func (f *MultiPartFlow) Toggle(id string) error {
	if f.phase != CheckMulti {
		return errpkg.ErrNotMultiPart
	}
	id = strings.TrimSpace(id)
	known := false
	for _, p := range f.info.Parts {
		if p.ID() == id {
			known = true
			break
		}
	}
	if !known {
		return &errpkg.ValidationError{Field: "selected_parts", Reason: fmt.Sprintf("unknown part %q", id)}
	}

	if _, ok := f.selected[id]; ok {
		delete(f.selected, id)
	} else {
		f.selected[id] = struct{}{}
	}
	return nil
}

// Submit hands the selected parts to the submitter.
func (f *MultiPartFlow) Submit(opts domain.ProcessOptions) error {
	if f.phase != CheckMulti {
		return errpkg.ErrNotMultiPart
	}
	ids := f.Selection()
	if len(ids) == 0 {
		return &errpkg.ValidationError{Field: "selected_parts", Reason: "select at least one part"}
	}

	parts := make([]int, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			return &errpkg.ValidationError{Field: "selected_parts", Reason: fmt.Sprintf("invalid part %q", id)}
		}
		parts = append(parts, n)
	}

	return f.submitter.SubmitMultiPart(domain.MultiPartRequest{
		VideoURL:       strings.TrimSpace(f.url),
		SelectedParts:  parts,
		ProcessOptions: opts,
	})
}
