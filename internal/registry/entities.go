package registry

// StudentAccount is the learner's primary registry record (StudentV2).
type StudentAccount struct {
	OSID          string `json:"osid,omitempty"`
	StudentID     string `json:"student_id,omitempty"`
	DID           string `json:"DID,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	AadharToken   string `json:"aadhar_token,omitempty"`
	StudentName   string `json:"student_name,omitempty"`
	DOB           string `json:"dob,omitempty"`
	SchoolType    string `json:"school_type,omitempty"`
	MeripehchanID string `json:"meripehchan_id"`
	Username      string `json:"username,omitempty"`
}

// StudentProfile is the learner's enrolment detail (StudentDetailV2),
// linked to its account through StudentID = account osid.
type StudentProfile struct {
	OSID            string `json:"osid,omitempty"`
	StudentDetailID string `json:"student_detail_id,omitempty"`
	StudentID       string `json:"student_id,omitempty"`
	Mobile          string `json:"mobile,omitempty"`
	GuardianName    string `json:"gaurdian_name,omitempty"`
	SchoolUdise     string `json:"school_udise,omitempty"`
	SchoolName      string `json:"school_name,omitempty"`
	Grade           string `json:"grade,omitempty"`
	AcademicYear    string `json:"acdemic_year,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	ClaimStatus     string `json:"claim_status,omitempty"`
}

// TeacherAccount is a staff member's registry record (TeacherV1).
type TeacherAccount struct {
	OSID               string `json:"osid,omitempty"`
	Name               string `json:"name,omitempty"`
	Gender             string `json:"gender,omitempty"`
	Mobile             string `json:"mobile,omitempty"`
	MeripehchanLoginID string `json:"meripehchanLoginId,omitempty"`
	DID                string `json:"did,omitempty"`
	Username           string `json:"username,omitempty"`
	SchoolUdise        string `json:"schoolUdise,omitempty"`
	SchoolName         string `json:"schoolName,omitempty"`
}

// SchoolProfile is a school's registry record (SchoolDetail), keyed by UDISE code.
type SchoolProfile struct {
	OSID       string `json:"osid,omitempty"`
	UdiseCode  string `json:"udiseCode,omitempty"`
	SchoolName string `json:"schoolName,omitempty"`
	DID        string `json:"did,omitempty"`
	State      string `json:"state,omitempty"`
	District   string `json:"district,omitempty"`
}

// Claim states of a StudentProfile.
const (
	ClaimPending  = "pending"
	ClaimApproved = "approved"
)

// SchoolTypePrivate marks learners who self-registered through the wallet.
const SchoolTypePrivate = "private"

// Business-key fields used in searches.
const (
	FieldOSID               = "osid"
	FieldUsername           = "username"
	FieldStudentName        = "student_name"
	FieldDOB                = "dob"
	FieldMeripehchanID      = "meripehchan_id"
	FieldMeripehchanLoginID = "meripehchanLoginId"
	FieldStudentID          = "student_id"
	FieldUdiseCode          = "udiseCode"
	FieldSchoolUdise        = "school_udise"
	FieldGrade              = "grade"
	FieldAcademicYear       = "acdemic_year"
	FieldClaimStatus        = "claim_status"
)
