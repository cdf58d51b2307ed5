package enrollment

import (
	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/registry"
)

// Batch statuses reported alongside the linking vocabulary.
const (
	StatusBulkRegisterSuccess = "student_register_bulk_api_success"
	StatusBulkRegisterError   = "student_register_bulk_api_error"
	StatusBulkIssueSuccess    = "student_cred_bulk_api_success"
	StatusBulkIssueError      = "student_cred_bulk_api_error"
)

// ItemState is the outcome of one roster item.
type ItemState string

const (
	ItemCreated ItemState = "created"
	ItemResumed ItemState = "resumed"
	ItemSkipped ItemState = "skipped"
	ItemIssued  ItemState = "issued"
	ItemFailed  ItemState = "failed"
)

// outcome is the metrics label of an item state.
func (s ItemState) outcome() string {
	switch s {
	case ItemFailed:
		return "failed"
	case ItemSkipped:
		return "skipped"
	default:
		return "ok"
	}
}

// SchoolDetails are shared by every student of a bulk registration. Empty
// school fields fall back to the staff member's own school.
type SchoolDetails struct {
	SchoolUdise  string `json:"schoolUdise"`
	SchoolName   string `json:"school_name"`
	Grade        string `json:"grade"`
	AcademicYear string `json:"academic-year"`
	SchoolType   string `json:"school_type"`
}

// StudentEntry is one learner of a bulk registration.
type StudentEntry struct {
	StudentID    string `json:"student_id"`
	StudentName  string `json:"studentName"`
	DOB          string `json:"dob"`
	AadharToken  string `json:"aadhar_token,omitempty"`
	Mobile       string `json:"mobile,omitempty"`
	GuardianName string `json:"gaurdian_name,omitempty"`
}

// BulkRegistration is the input of BulkRegister.
type BulkRegistration struct {
	School   SchoolDetails  `json:"schoolDetails"`
	Students []StudentEntry `json:"studentDetails"`
}

// SubjectCommon holds the credential subject fields shared by a batch.
type SubjectCommon struct {
	Grade        string `json:"grade"`
	AcademicYear string `json:"academicYear"`
}

// IssuerDetail names the issuing school and the schema to issue against.
type IssuerDetail struct {
	DID        string `json:"did"`
	SchoolName string `json:"schoolName"`
	SchemaID   string `json:"schemaId"`
}

// CredentialSubject is one learner to issue a credential to.
type CredentialSubject struct {
	ID             string `json:"id"`
	EnrolledOn     string `json:"enrolledOn,omitempty"`
	StudentName    string `json:"studentName"`
	GuardianName   string `json:"guardianName,omitempty"`
	IssuanceDate   string `json:"issuanceDate,omitempty"`
	ExpirationDate string `json:"expirationDate,omitempty"`
}

// BulkIssuance is the input of BulkIssue.
type BulkIssuance struct {
	Common   SubjectCommon       `json:"credentialSubjectCommon"`
	Issuer   IssuerDetail        `json:"issuerDetail"`
	Subjects []CredentialSubject `json:"credentialSubject"`
}

// ItemResult reports one roster item. Key is the student id or the
// credential subject id.
type ItemResult struct {
	Index   int              `json:"index"`
	Key     string           `json:"key"`
	State   ItemState        `json:"state"`
	OSID    string           `json:"osid,omitempty"`
	Failure *linking.Failure `json:"failure,omitempty"`
}

// BatchResult is the outcome of a bulk operation. Failure is set when the
// batch could not start (session, schema); item failures stay in Items.
type BatchResult struct {
	Status  string           `json:"status"`
	Items   []ItemResult     `json:"items,omitempty"`
	Failed  int              `json:"failed"`
	Failure *linking.Failure `json:"failure,omitempty"`
}

// OK reports whether the batch ran and every item succeeded or was skipped.
func (b BatchResult) OK() bool {
	return b.Failure == nil && b.Failed == 0
}

// RosterEntry pairs a learner account with its enrolment detail.
type RosterEntry struct {
	Student registry.Record `json:"student"`
	Detail  registry.Record `json:"studentdetail"`
}

// ClassList is the outcome of ListStudents.
type ClassList struct {
	State    linking.LookupState `json:"state"`
	Status   string              `json:"status"`
	Students []RosterEntry       `json:"students,omitempty"`
	Failure  *linking.Failure    `json:"failure,omitempty"`
}
