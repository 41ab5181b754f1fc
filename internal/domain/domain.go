package domain

import (
	"fmt"
	"time"
)

// Role is the closed set of user roles. Values keep the labels used by the
// quality team, so they appear as-is in JSON and audit output.
type Role string

const (
	RoleTeamLeader    Role = "Team Leader"
	RoleSupervisor    Role = "Supervisor"
	RoleManager       Role = "Gerente"
	RoleAdministrator Role = "Administrador"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTeamLeader, RoleSupervisor, RoleManager, RoleAdministrator:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Queue identifies which desk currently owns responsibility for an element.
type Queue string

const (
	QueueGeneral     Queue = "General"
	QueuePriority    Queue = "Prioridad"
	QueueSupervision Queue = "Supervisión"
	QueueManagement  Queue = "Gerencia"
)

func ParseQueue(s string) (Queue, error) {
	switch Queue(s) {
	case QueueGeneral, QueuePriority, QueueSupervision, QueueManagement:
		return Queue(s), nil
	}
	return "", fmt.Errorf("unknown queue %q", s)
}

// TagLevel is the graded quality outcome assigned per evaluation dimension.
type TagLevel string

const (
	TagLow     TagLevel = "Bajo"
	TagMedLow  TagLevel = "Medio Bajo"
	TagMedHigh TagLevel = "Medio Alto"
	TagHigh    TagLevel = "Alto"
)

// TagLevels lists all levels from lowest to highest severity.
var TagLevels = []TagLevel{TagLow, TagMedLow, TagMedHigh, TagHigh}

func ParseTagLevel(s string) (TagLevel, error) {
	switch TagLevel(s) {
	case TagLow, TagMedLow, TagMedHigh, TagHigh:
		return TagLevel(s), nil
	}
	return "", fmt.Errorf("unknown tag level %q", s)
}

// Rank orders levels for severity comparisons. Higher is more severe.
func (l TagLevel) Rank() int {
	switch l {
	case TagLow:
		return 0
	case TagMedLow:
		return 1
	case TagMedHigh:
		return 2
	case TagHigh:
		return 3
	}
	return -1
}

// Status is the review lifecycle state.
type Status string

const (
	StatusPending    Status = "Pendiente"
	StatusInProgress Status = "En Proceso"
	StatusCompleted  Status = "Completado"
	StatusRejected   Status = "Rechazado"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusRejected:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no further lifecycle transitions are allowed
// without an administrator override.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Dimension names one of the five evaluated aspects of a case.
// DimensionOverall is the one transition rules key on.
type Dimension string

const (
	DimensionWelcome     Dimension = "bienvenida"
	DimensionExploration Dimension = "exploracion"
	DimensionGuidance    Dimension = "guiaAsesoramiento"
	DimensionClosing     Dimension = "cierre"
	DimensionOverall     Dimension = "adhesionGeneral"
)

func ParseDimension(s string) (Dimension, error) {
	switch Dimension(s) {
	case DimensionWelcome, DimensionExploration, DimensionGuidance, DimensionClosing, DimensionOverall:
		return Dimension(s), nil
	}
	return "", fmt.Errorf("unknown evaluation dimension %q", s)
}

// CalibrationType is the calibration track an element belongs to.
type CalibrationType string

const (
	CalibrationSupervisors CalibrationType = "Calibración Supervisores"
	CalibrationManagers    CalibrationType = "Calibración Managers"
)

func ParseCalibrationType(s string) (CalibrationType, error) {
	switch CalibrationType(s) {
	case CalibrationSupervisors, CalibrationManagers:
		return CalibrationType(s), nil
	}
	return "", fmt.Errorf("unknown calibration type %q", s)
}

// CalibrationStatus is the calibration session lifecycle.
type CalibrationStatus string

const (
	CalibrationPending   CalibrationStatus = "Pendiente"
	CalibrationInReview  CalibrationStatus = "En Revisión"
	CalibrationCompleted CalibrationStatus = "Completado"
)

// Priority is the coarse urgency label elements carry through queues.
type Priority string

const (
	PriorityHigh   Priority = "alta"
	PriorityMedium Priority = "media"
	PriorityLow    Priority = "baja"
)

// Team is the business unit a user belongs to.
type Team string

const (
	TeamMercadoEnvios  Team = "Mercado Envíos"
	TeamMktplVendedor  Team = "Mktpl Vendedor"
	TeamMktplComprador Team = "Mktpl Comprador"
	TeamFintechSellers Team = "Fintech Sellers"
	TeamFintechPagos   Team = "Fintech Pagos"
	TeamFintechCredits Team = "Fintech Credits"
	TeamMediacionesPDD Team = "Mediaciones PDD"
	TeamMediacionesPNR Team = "Mediaciones PNR"
)

// Center is the operating site.
type Center string

const (
	CenterHSP Center = "HSP"
	CenterBR  Center = "BR"
)

// ActionType classifies audit ledger entries.
type ActionType string

const (
	ActionCreate             ActionType = "Creacion"
	ActionUpdate             ActionType = "Actualizacion"
	ActionTag                ActionType = "Taggeo"
	ActionStatusChange       ActionType = "Cambio Estado"
	ActionReassign           ActionType = "Reasignacion"
	ActionComment            ActionType = "Comentario"
	ActionMarkForCalibration ActionType = "Marcado para Calibración"
	ActionQueueChange        ActionType = "Cambio Cola"
	ActionDeniedAttempt      ActionType = "Intento Denegado"
	ActionAdminOverride      ActionType = "Anulación Administrador"
)

// User is immutable reference data; elements hold users by id only.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Team   Team   `json:"team"`
	Center Center `json:"center"`
	// Position duplicates Role for display surfaces.
	Position string `json:"position,omitempty"`
}

// CalibrationMark records that a review was flagged for a calibration track.
type CalibrationMark struct {
	Type     CalibrationType `json:"type"`
	MarkedBy string          `json:"marked_by"`
	MarkedAt time.Time       `json:"marked_at"`
}

// TransitionRecord is one immutable entry of the queue-movement ledger.
type TransitionRecord struct {
	Timestamp        time.Time `json:"timestamp"`
	SourceQueue      Queue     `json:"source_queue"`
	DestinationQueue Queue     `json:"destination_queue"`
	PreviousOwner    string    `json:"previous_owner"`
	NewOwner         string    `json:"new_owner"`
	ActingUser       string    `json:"acting_user"`
	Reason           string    `json:"reason,omitempty"`
	AppliedRuleID    string    `json:"applied_rule_id,omitempty"`
}

// AuditEntry is one immutable entry of the mutation ledger. Details carries
// before/after values of whichever fields changed.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     ActionType     `json:"action"`
	Timestamp  time.Time      `json:"timestamp"`
	ActingUser string         `json:"acting_user"`
	Details    map[string]any `json:"details,omitempty"`
}

// Review is a single quality-evaluation case (a "monitoreo") moving through
// queues. Owner and ledger users are id references into the user set.
type Review struct {
	ID          string   `json:"id"`
	CaseNumber  string   `json:"case_number"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Queue       Queue    `json:"current_queue"`
	OwnerID     string   `json:"owner_id"`
	Priority    Priority `json:"priority,omitempty"`

	// Tags holds one level per evaluated dimension. Rules key on
	// DimensionOverall only.
	Tags map[Dimension]TagLevel `json:"tags,omitempty"`

	PrideCase       bool             `json:"pride_case"`
	CalibrationMark *CalibrationMark `json:"calibration_mark,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Transitions []TransitionRecord `json:"transition_history"`
	Audit       []AuditEntry       `json:"action_history"`
}

// TagLevel returns the overall adherence level, the value rule conditions
// evaluate against.
func (r *Review) TagLevel() (TagLevel, bool) {
	l, ok := r.Tags[DimensionOverall]
	return l, ok
}

// Clone returns a deep copy so readers never observe in-place mutation.
func (r *Review) Clone() *Review {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Tags != nil {
		cp.Tags = make(map[Dimension]TagLevel, len(r.Tags))
		for k, v := range r.Tags {
			cp.Tags[k] = v
		}
	}
	if r.CalibrationMark != nil {
		m := *r.CalibrationMark
		cp.CalibrationMark = &m
	}
	cp.Transitions = append([]TransitionRecord(nil), r.Transitions...)
	cp.Audit = make([]AuditEntry, len(r.Audit))
	for i, a := range r.Audit {
		cp.Audit[i] = a.clone()
	}
	return &cp
}

func (a AuditEntry) clone() AuditEntry {
	if a.Details == nil {
		return a
	}
	details := make(map[string]any, len(a.Details))
	for k, v := range a.Details {
		details[k] = v
	}
	a.Details = details
	return a
}

// RuleConditions is the conjunction a review must satisfy for a rule to fire.
// Empty slices mean "any"; SourceQueue is mandatory.
type RuleConditions struct {
	TagLevels   []TagLevel `json:"tag_levels,omitempty" yaml:"tag_levels"`
	SourceQueue Queue      `json:"source_queue" yaml:"source_queue"`
	Statuses    []Status   `json:"statuses,omitempty" yaml:"statuses"`
	// WaitMinutes is the minimum time spent in the source queue, in minutes.
	WaitMinutes int `json:"wait_minutes,omitempty" yaml:"wait_minutes"`
}

// RuleAction is what a fired rule does to a review.
type RuleAction struct {
	DestinationQueue Queue    `json:"destination_queue" yaml:"destination_queue"`
	Notify           []Role   `json:"notify,omitempty" yaml:"notify"`
	Priority         Priority `json:"priority,omitempty" yaml:"priority"`
}

// TransitionRule is a data-declared condition -> action mapping. Rules are
// evaluated in collection order, never re-sorted.
type TransitionRule struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Conditions RuleConditions `json:"conditions" yaml:"conditions"`
	Action     RuleAction     `json:"action" yaml:"action"`
	Active     bool           `json:"active" yaml:"active"`
}

// Validate checks enum fields so malformed rules are rejected at the edge
// instead of silently never matching.
func (r TransitionRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if _, err := ParseQueue(string(r.Conditions.SourceQueue)); err != nil {
		return fmt.Errorf("rule %s: source queue: %w", r.Name, err)
	}
	if _, err := ParseQueue(string(r.Action.DestinationQueue)); err != nil {
		return fmt.Errorf("rule %s: destination queue: %w", r.Name, err)
	}
	for _, l := range r.Conditions.TagLevels {
		if _, err := ParseTagLevel(string(l)); err != nil {
			return fmt.Errorf("rule %s: %w", r.Name, err)
		}
	}
	for _, s := range r.Conditions.Statuses {
		if _, err := ParseStatus(string(s)); err != nil {
			return fmt.Errorf("rule %s: %w", r.Name, err)
		}
	}
	for _, role := range r.Action.Notify {
		if _, err := ParseRole(string(role)); err != nil {
			return fmt.Errorf("rule %s: notify: %w", r.Name, err)
		}
	}
	return nil
}

// Comment is one entry of a calibration discussion thread.
type Comment struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// CalibrationRecord is a cross-check session over a group of reviews. It is
// queue-routable and keeps the same two ledgers a Review does.
type CalibrationRecord struct {
	ID          string            `json:"id"`
	Type        CalibrationType   `json:"calibration_type"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      CalibrationStatus `json:"status"`
	Queue       Queue             `json:"current_queue"`
	OwnerID     string            `json:"owner_id"`

	ResponsibleID  string     `json:"responsible_id"`
	ParticipantIDs []string   `json:"participant_ids,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Comments       []Comment  `json:"comments,omitempty"`
	LinkedReviews  []string   `json:"linked_reviews,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Transitions []TransitionRecord `json:"transition_history"`
	Audit       []AuditEntry       `json:"action_history"`
}

// Clone returns a deep copy of the calibration session.
func (c *CalibrationRecord) Clone() *CalibrationRecord {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ScheduledAt != nil {
		t := *c.ScheduledAt
		cp.ScheduledAt = &t
	}
	cp.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	cp.Comments = append([]Comment(nil), c.Comments...)
	cp.LinkedReviews = append([]string(nil), c.LinkedReviews...)
	cp.Transitions = append([]TransitionRecord(nil), c.Transitions...)
	cp.Audit = make([]AuditEntry, len(c.Audit))
	for i, a := range c.Audit {
		cp.Audit[i] = a.clone()
	}
	return &cp
}
