// Package state models the persisted orchestration document: per-phase
// state, retry bookkeeping, pending user decisions and the overall run
// status. It also owns loading, validating and atomically saving the
// document.
package state

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/symphony/internal/backoff"
	"github.com/Iron-Ham/symphony/internal/classify"
	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/plan"
)

// ArtifactType categorizes what a phase produced.
type ArtifactType string

const (
	ArtifactFileCreated  ArtifactType = "file_created"
	ArtifactFileModified ArtifactType = "file_modified"
	ArtifactFileDeleted  ArtifactType = "file_deleted"
	ArtifactExport       ArtifactType = "export"
	ArtifactNote         ArtifactType = "note"
)

// ArtifactTypes returns every artifact type.
func ArtifactTypes() []ArtifactType {
	return []ArtifactType{ArtifactFileCreated, ArtifactFileModified, ArtifactFileDeleted, ArtifactExport, ArtifactNote}
}

// Valid reports whether t is a known artifact type.
func (t ArtifactType) Valid() bool {
	return slices.Contains(ArtifactTypes(), t)
}

// Artifact is an output recorded when a phase completes.
type Artifact struct {
	Type     ArtifactType   `json:"type" yaml:"type"`
	Path     string         `json:"path,omitempty" yaml:"path,omitempty"`
	Content  string         `json:"content,omitempty" yaml:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ValidateArtifacts checks runner-supplied artifacts.
func ValidateArtifacts(artifacts []Artifact) error {
	var errs errors.ValidationErrors
	for i, a := range artifacts {
		if !a.Type.Valid() {
			names := make([]string, 0, len(ArtifactTypes()))
			for _, t := range ArtifactTypes() {
				names = append(names, string(t))
			}
			errs = append(errs, errors.NewValidationError(
				fmt.Sprintf("Artifact type must be one of: %s", strings.Join(names, ", ")),
			).WithField(fmt.Sprintf("artifacts[%d].type", i)).WithValue(a.Type))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RetryAttempt records one failed execution. History is append-only.
type RetryAttempt struct {
	AttemptNumber int               `json:"attemptNumber" yaml:"attempt_number"`
	StartedAt     time.Time         `json:"startedAt" yaml:"started_at"`
	FailedAt      time.Time         `json:"failedAt" yaml:"failed_at"`
	Error         string            `json:"error" yaml:"error"`
	ErrorCategory classify.Category `json:"errorCategory" yaml:"error_category"`
	DurationMs    int64             `json:"durationMs" yaml:"duration_ms"`
}

// Decision is a user's resolution of a phase awaiting a decision.
type Decision string

const (
	DecisionRetryOnceMore Decision = "retry_once_more"
	DecisionSkipPhase     Decision = "skip_phase"
	DecisionAbortBranch   Decision = "abort_branch"
	DecisionAbortAll      Decision = "abort_all"
)

// Decisions returns the options offered for every pending decision.
func Decisions() []Decision {
	return []Decision{DecisionRetryOnceMore, DecisionSkipPhase, DecisionAbortBranch, DecisionAbortAll}
}

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return slices.Contains(Decisions(), d)
}

// PendingDecision is a failure waiting on the user. At most one exists per
// phase.
type PendingDecision struct {
	PhaseID       string            `json:"phaseId" yaml:"phase_id"`
	Error         string            `json:"error" yaml:"error"`
	ErrorCategory classify.Category `json:"errorCategory" yaml:"error_category"`
	RetryCount    int               `json:"retryCount" yaml:"retry_count"`
	Options       []Decision        `json:"options" yaml:"options"`
	AskedAt       time.Time         `json:"askedAt" yaml:"asked_at"`
}

// RetryPolicy decides whether and when a failed phase is retried.
type RetryPolicy struct {
	MaxRetries          int                 `json:"maxRetries" yaml:"max_retries"`
	BackoffStrategy     backoff.Strategy    `json:"backoffStrategy" yaml:"backoff_strategy"`
	InitialDelayMs      int64               `json:"initialDelayMs" yaml:"initial_delay_ms"`
	MaxDelayMs          int64               `json:"maxDelayMs" yaml:"max_delay_ms"`
	RetryableCategories []classify.Category `json:"retryableCategories" yaml:"retryable_categories"`
}

// DefaultRetryPolicy returns three retries with exponential-jitter backoff
// from 1s to 30s, retrying transient, resource, timeout and unknown errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		BackoffStrategy: backoff.ExponentialJitter,
		InitialDelayMs:  1000,
		MaxDelayMs:      30000,
		RetryableCategories: []classify.Category{
			classify.Transient, classify.Resource, classify.Timeout, classify.Unknown,
		},
	}
}

// Retryable reports whether the policy retries errors of category c.
func (p RetryPolicy) Retryable(c classify.Category) bool {
	return classify.Retryable(c, p.RetryableCategories)
}

// Validate checks the policy's fields.
func (p RetryPolicy) Validate() error {
	var errs errors.ValidationErrors
	add := func(field, msg string, v any) {
		errs = append(errs, errors.NewValidationError(msg).WithField("retryPolicy."+field).WithValue(v))
	}
	if p.MaxRetries < 0 {
		add("maxRetries", "must be non-negative", p.MaxRetries)
	}
	if !p.BackoffStrategy.Valid() {
		add("backoffStrategy", "must be one of: fixed, exponential, exponential-jitter", p.BackoffStrategy)
	}
	if p.InitialDelayMs < 0 {
		add("initialDelayMs", "must be non-negative", p.InitialDelayMs)
	}
	if p.MaxDelayMs < p.InitialDelayMs {
		add("maxDelayMs", "must be at least initialDelayMs", p.MaxDelayMs)
	}
	for i, c := range p.RetryableCategories {
		if !c.Valid() {
			add(fmt.Sprintf("retryableCategories[%d]", i), "unknown error category", c)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PhaseState is the mutable runtime record of one phase. One exists per
// plan phase from init onwards and is never deleted.
type PhaseState struct {
	Status            Status            `json:"status" yaml:"status"`
	StartedAt         *time.Time        `json:"startedAt,omitempty" yaml:"started_at,omitempty"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
	Error             string            `json:"error,omitempty" yaml:"error,omitempty"`
	Artifacts         []Artifact        `json:"artifacts" yaml:"artifacts"`
	RetryCount        int               `json:"retryCount" yaml:"retry_count"`
	RetryHistory      []RetryAttempt    `json:"retryHistory,omitempty" yaml:"retry_history,omitempty"`
	LastErrorCategory classify.Category `json:"lastErrorCategory,omitempty" yaml:"last_error_category,omitempty"`
	NextRetryAt       *time.Time        `json:"nextRetryAt,omitempty" yaml:"next_retry_at,omitempty"`
}

// PlanSnapshot embeds the phase definitions so every operation can rebuild
// the dependency graph without the original plan file.
type PlanSnapshot struct {
	Phases []plan.Phase `json:"phases" yaml:"phases"`
}

// Document is the persisted orchestration aggregate.
type Document struct {
	PlanPath         string                 `json:"planPath" yaml:"plan_path"`
	RunID            string                 `json:"runId,omitempty" yaml:"run_id,omitempty"`
	StartedAt        time.Time              `json:"startedAt" yaml:"started_at"`
	UpdatedAt        *time.Time             `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
	CompletedAt      *time.Time             `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
	Phases           map[string]*PhaseState `json:"phases" yaml:"phases"`
	Plan             PlanSnapshot           `json:"plan" yaml:"plan"`
	CompletedCount   int                    `json:"completedCount" yaml:"completed_count"`
	FailedCount      int                    `json:"failedCount" yaml:"failed_count"`
	Status           RunStatus              `json:"status" yaml:"status"`
	RetryPolicy      *RetryPolicy           `json:"retryPolicy,omitempty" yaml:"retry_policy,omitempty"`
	PendingDecisions []PendingDecision      `json:"pendingDecisions,omitempty" yaml:"pending_decisions,omitempty"`
}

// New builds a fresh document for phases: every phase pending, overall
// status running.
func New(planPath, runID string, phases []plan.Phase, policy RetryPolicy, now time.Time) *Document {
	doc := &Document{
		PlanPath:    planPath,
		RunID:       runID,
		StartedAt:   now,
		Phases:      make(map[string]*PhaseState, len(phases)),
		Plan:        PlanSnapshot{Phases: phases},
		Status:      RunRunning,
		RetryPolicy: &policy,
	}
	for _, p := range phases {
		doc.Phases[p.ID] = &PhaseState{Status: StatusPending, Artifacts: []Artifact{}}
	}
	return doc
}

// Policy returns the document's retry policy, or the default for documents
// written without one.
func (d *Document) Policy() RetryPolicy {
	if d.RetryPolicy == nil {
		return DefaultRetryPolicy()
	}
	return *d.RetryPolicy
}

// PhaseIDs returns phase ids in plan order.
func (d *Document) PhaseIDs() []string {
	ids := make([]string, 0, len(d.Plan.Phases))
	for _, p := range d.Plan.Phases {
		ids = append(ids, p.ID)
	}
	return ids
}

// Phase returns the state of phase id or a StateError wrapping
// ErrPhaseNotFound that lists the known ids.
func (d *Document) Phase(id string) (*PhaseState, error) {
	ps, ok := d.Phases[id]
	if !ok {
		known := make([]string, 0, len(d.Phases))
		for k := range d.Phases {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, errors.NewStateError(
			fmt.Sprintf("phase %q not found (available phases: %s)", id, strings.Join(known, ", ")),
			errors.ErrPhaseNotFound,
		).WithPhaseID(id)
	}
	return ps, nil
}

// Definition returns the plan definition of phase id.
func (d *Document) Definition(id string) (plan.Phase, bool) {
	for _, p := range d.Plan.Phases {
		if p.ID == id {
			return p, true
		}
	}
	return plan.Phase{}, false
}

// Counts returns the number of phases in each status.
func (d *Document) Counts() map[Status]int {
	counts := make(map[Status]int, len(Statuses()))
	for _, s := range Statuses() {
		counts[s] = 0
	}
	for _, ps := range d.Phases {
		counts[ps.Status]++
	}
	return counts
}

// Recount sets CompletedCount and FailedCount from phase statuses.
func (d *Document) Recount() {
	counts := d.Counts()
	d.CompletedCount = counts[StatusComplete]
	d.FailedCount = counts[StatusFailed]
}

// AllComplete reports whether every phase is complete.
func (d *Document) AllComplete() bool {
	for _, ps := range d.Phases {
		if ps.Status != StatusComplete {
			return false
		}
	}
	return len(d.Phases) > 0
}

// AllTerminal reports whether every phase is in a terminal status.
func (d *Document) AllTerminal() bool {
	for _, ps := range d.Phases {
		if !ps.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// DeriveStatus recomputes the overall status from the phases and pending
// decisions and stamps CompletedAt when the run becomes terminal:
//   - awaiting_user_decision while any decision is pending
//   - completed when every phase is complete
//   - failed when any phase failed, or when every phase is terminal and
//     some were aborted or blocked
//   - running in all other cases
//
// The run is only ever aborted by an abort_all decision, which sets the
// status itself.
func (d *Document) DeriveStatus(now time.Time) RunStatus {
	switch {
	case len(d.PendingDecisions) > 0:
		d.Status = RunAwaitingUserDecision
	case d.AllComplete():
		d.Status = RunCompleted
	case d.Counts()[StatusFailed] > 0, d.AllTerminal():
		d.Status = RunFailed
	default:
		d.Status = RunRunning
	}
	if d.Status.IsTerminal() && d.AllTerminal() && d.CompletedAt == nil {
		d.CompletedAt = &now
	}
	return d.Status
}

// Decision returns the pending decision for phase id.
func (d *Document) Decision(id string) (PendingDecision, bool) {
	for _, pd := range d.PendingDecisions {
		if pd.PhaseID == id {
			return pd, true
		}
	}
	return PendingDecision{}, false
}

// SetDecision registers pd, replacing any existing decision for its phase.
func (d *Document) SetDecision(pd PendingDecision) {
	d.RemoveDecision(pd.PhaseID)
	d.PendingDecisions = append(d.PendingDecisions, pd)
}

// RemoveDecision drops the pending decision for phase id, if any.
func (d *Document) RemoveDecision(id string) bool {
	before := len(d.PendingDecisions)
	d.PendingDecisions = slices.DeleteFunc(d.PendingDecisions, func(pd PendingDecision) bool {
		return pd.PhaseID == id
	})
	return len(d.PendingDecisions) != before
}

// ClearDecisions drops every pending decision.
func (d *Document) ClearDecisions() {
	d.PendingDecisions = nil
}
