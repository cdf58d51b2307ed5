package linking

import (
	"fmt"
	"slices"

	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/registry"
	dErrors "ulp-gateway/pkg/domain-errors"
)

// Step names one collaborator call (or local stage) of an orchestration.
type Step string

const (
	StepValidate          Step = "validate"
	StepExchange          Step = "exchange"
	StepDerive            Step = "derive"
	StepSearchAccount     Step = "search_account"
	StepSearchProfile     Step = "search_profile"
	StepSearchSchool      Step = "search_school"
	StepServiceToken      Step = "service_token"
	StepCreateUser        Step = "create_user"
	StepGenerateDID       Step = "generate_did"
	StepGenerateSchoolDID Step = "generate_school_did"
	StepInviteAccount     Step = "invite_account"
	StepUpdateAccount     Step = "update_account"
	StepInviteProfile     Step = "invite_profile"
	StepUpdateProfile     Step = "update_profile"
	StepInviteSchool      Step = "invite_school"
	StepLogin             Step = "login"
	StepIntrospect        Step = "introspect"
	StepSearchRecord      Step = "search_record"
	StepFetchSchema       Step = "fetch_schema"
	StepSearchCredentials Step = "search_credentials"
	StepIssueCredential   Step = "issue_credential"
)

// Steps lists every step in declaration order.
var Steps = []Step{
	StepValidate, StepExchange, StepDerive,
	StepSearchAccount, StepSearchProfile, StepSearchSchool,
	StepServiceToken, StepCreateUser,
	StepGenerateDID, StepGenerateSchoolDID,
	StepInviteAccount, StepUpdateAccount, StepInviteProfile, StepUpdateProfile, StepInviteSchool,
	StepLogin, StepIntrospect, StepSearchRecord,
	StepFetchSchema, StepSearchCredentials, StepIssueCredential,
}

// ErrorKind classifies why an orchestration stopped.
type ErrorKind string

const (
	KindTransportFailure ErrorKind = "transport_failure"
	KindRejected         ErrorKind = "rejected"
	KindNotFound         ErrorKind = "not_found"
	KindAmbiguous        ErrorKind = "ambiguous"
	KindAlreadyLinked    ErrorKind = "already_linked"
	KindTokenExpired     ErrorKind = "token_expired"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindInvalidRequest   ErrorKind = "invalid_request"
)

// Kinds lists every error kind.
var Kinds = []ErrorKind{
	KindTransportFailure, KindRejected, KindNotFound, KindAmbiguous,
	KindAlreadyLinked, KindTokenExpired, KindUnauthorized, KindInvalidRequest,
}

// Failure is the terminal error of an orchestration: what kind, at which
// step, and the vocabulary status reported to callers.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Step    Step      `json:"step"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s at %s: %s", f.Kind, f.Step, f.Message)
}

// Code maps the failure onto the transport error code used for the HTTP status.
func (f *Failure) Code() dErrors.Code {
	switch f.Kind {
	case KindInvalidRequest:
		return dErrors.CodeInvalidRequest
	case KindUnauthorized, KindTokenExpired:
		return dErrors.CodeUnauthorized
	case KindNotFound:
		return dErrors.CodeNotFound
	case KindAmbiguous, KindAlreadyLinked:
		return dErrors.CodeConflict
	case KindRejected:
		if f.Step == StepExchange {
			return dErrors.CodeBadRequest
		}
		return dErrors.CodeBadGateway
	default:
		return dErrors.CodeBadGateway
	}
}

func newFailure(kind ErrorKind, step Step, message string) *Failure {
	return &Failure{Kind: kind, Step: step, Status: StatusFor(kind, step), Message: message}
}

// LinkState is the variant of a LinkResult.
type LinkState string

const (
	LinkResolved LinkState = "resolved"
	LinkUnlinked LinkState = "unlinked"
	LinkFailed   LinkState = "failed"
)

// LinkResult is the outcome of LinkExternalIdentity.
//
//   - resolved: SessionToken, Record and, for private learners, Detail.
//   - unlinked: Claims and the derived Username; the caller registers next.
//   - failed:   Failure.
type LinkResult struct {
	State        LinkState        `json:"state"`
	Status       string           `json:"status"`
	Role         identity.Role    `json:"role"`
	SessionToken string           `json:"session_token,omitempty"`
	Record       *registry.Record `json:"record,omitempty"`
	Detail       *registry.Record `json:"detail,omitempty"`
	Claims       *identity.Claims `json:"claims,omitempty"`
	Username     string           `json:"username,omitempty"`
	Failure      *Failure         `json:"failure,omitempty"`
}

func linkResolved(role identity.Role, token string, record registry.Record, detail *registry.Record) LinkResult {
	return LinkResult{
		State:        LinkResolved,
		Status:       StatusLoginSuccess,
		Role:         role,
		SessionToken: token,
		Record:       &record,
		Detail:       detail,
	}
}

func linkUnlinked(role identity.Role, claims identity.Claims, username string) LinkResult {
	return LinkResult{
		State:    LinkUnlinked,
		Status:   StatusSearchNotFound,
		Role:     role,
		Claims:   &claims,
		Username: username,
	}
}

func linkFailed(role identity.Role, f *Failure) LinkResult {
	return LinkResult{State: LinkFailed, Status: f.Status, Role: role, Failure: f}
}

// PartialState records the upstream writes that committed before a
// registration stopped, plus the osids they minted or matched.
type PartialState struct {
	Completed   []Step `json:"completed"`
	PrimaryOSID string `json:"primary_osid,omitempty"`
	DetailOSID  string `json:"detail_osid,omitempty"`
}

func (p *PartialState) complete(step Step) {
	if !slices.Contains(p.Completed, step) {
		p.Completed = append(p.Completed, step)
	}
}

// Has reports whether step committed.
func (p PartialState) Has(step Step) bool {
	return slices.Contains(p.Completed, step)
}

// Empty reports whether nothing was written upstream.
func (p PartialState) Empty() bool {
	return len(p.Completed) == 0
}

// RegistrationState is the variant of a RegistrationOutcome.
type RegistrationState string

const (
	RegistrationCreated       RegistrationState = "created"
	RegistrationAlreadyExists RegistrationState = "already_exists"
	RegistrationFailed        RegistrationState = "failed"
)

// RegistrationOutcome is the outcome of RegisterLinkedIdentity. Resumed is
// set when an existing primary record was updated instead of created.
type RegistrationOutcome struct {
	State         RegistrationState `json:"state"`
	Status        string            `json:"status"`
	Role          identity.Role     `json:"role"`
	Username      string            `json:"username,omitempty"`
	Record        *registry.Record  `json:"record,omitempty"`
	Detail        *registry.Record  `json:"detail,omitempty"`
	Partial       PartialState      `json:"partial_state"`
	Resumed       bool              `json:"resumed,omitempty"`
	SessionToken  string            `json:"session_token,omitempty"`
	SessionMinted bool              `json:"session_minted"`
	Failure       *Failure          `json:"failure,omitempty"`
}

// LookupState is the variant of a LookupResult.
type LookupState string

const (
	LookupFound        LookupState = "found"
	LookupNotFound     LookupState = "not_found"
	LookupAmbiguous    LookupState = "ambiguous"
	LookupUnauthorized LookupState = "unauthorized"
	LookupFailed       LookupState = "failed"
)

// LookupResult is the outcome of ResolveSession and ResolveRecord.
type LookupResult struct {
	State    LookupState      `json:"state"`
	Status   string           `json:"status"`
	Username string           `json:"username,omitempty"`
	Role     identity.Role    `json:"role,omitempty"`
	Record   *registry.Record `json:"record,omitempty"`
	Detail   *registry.Record `json:"detail,omitempty"`
	Failure  *Failure         `json:"failure,omitempty"`
}

// SessionResult is the LookupResult of ResolveSession.
type SessionResult = LookupResult

func lookupFailed(f *Failure) LookupResult {
	state := LookupFailed
	switch f.Kind {
	case KindUnauthorized, KindTokenExpired:
		state = LookupUnauthorized
	case KindAmbiguous:
		state = LookupAmbiguous
	case KindNotFound:
		state = LookupNotFound
	}
	return LookupResult{State: state, Status: f.Status, Failure: f}
}

// RegistrationPayload carries the role-specific registry shapes. Students
// send Student and Profile; staff send Teacher and School.
type RegistrationPayload struct {
	Student *registry.StudentAccount `json:"student,omitempty"`
	Profile *registry.StudentProfile `json:"studentdetail,omitempty"`
	Teacher *registry.TeacherAccount `json:"teacher,omitempty"`
	School  *registry.SchoolProfile  `json:"school,omitempty"`
}
