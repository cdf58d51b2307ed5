package linking

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"ulp-gateway/internal/audit"
	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/registry"
)

const referencePrefix = "ULP_"

// studentLinkage is the update applied to an existing StudentAccount when a
// registration resumes it.
type studentLinkage struct {
	MeripehchanID string `json:"meripehchan_id"`
	Username      string `json:"username"`
	AadharToken   string `json:"aadhar_token,omitempty"`
	StudentID     string `json:"student_id,omitempty"`
}

type profileUpdate struct {
	AcademicYear string `json:"acdemic_year,omitempty"`
	SchoolName   string `json:"school_name,omitempty"`
	SchoolUdise  string `json:"school_udise,omitempty"`
	GuardianName string `json:"gaurdian_name,omitempty"`
	Mobile       string `json:"mobile,omitempty"`
	Grade        string `json:"grade,omitempty"`
}

type teacherUpdate struct {
	Name        string `json:"name,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Mobile      string `json:"mobile,omitempty"`
	Username    string `json:"username"`
	SchoolUdise string `json:"schoolUdise,omitempty"`
	SchoolName  string `json:"schoolName,omitempty"`
}

// registration carries one RegisterLinkedIdentity call through its chain.
type registration struct {
	role    identity.Role
	claims  identity.Claims
	ident   identity.CanonicalIdentity
	payload RegistrationPayload
	out     RegistrationOutcome
}

func (r *registration) fail(f *Failure) RegistrationOutcome {
	r.out.State = RegistrationFailed
	r.out.Status = f.Status
	r.out.Failure = f
	return r.out
}

func (r *registration) alreadyExists(record, detail *registry.Record) RegistrationOutcome {
	r.out.State = RegistrationAlreadyExists
	r.out.Status = StatusRegisterDuplicate
	if record != nil {
		r.out.Record = record
	}
	if detail != nil {
		r.out.Detail = detail
	}
	return r.out
}

func validatePayload(role identity.Role, claims identity.Claims, p RegistrationPayload) error {
	errs := validation.Errors{
		"subject_id": validation.Validate(claims.SubjectID, validation.Required),
	}
	switch role {
	case identity.RoleStudent:
		errs["student"] = validation.Validate(p.Student, validation.NotNil)
		errs["studentdetail"] = validation.Validate(p.Profile, validation.NotNil)
	case identity.RoleStaff:
		errs["teacher"] = validation.Validate(p.Teacher, validation.NotNil)
		errs["school"] = validation.Validate(p.School, validation.NotNil)
		if p.School != nil {
			errs["school.udiseCode"] = validation.Validate(p.School.UdiseCode, validation.Required)
		}
	default:
		errs["role"] = errors.New("must be student or staff")
	}
	return errs.Filter()
}

// withPayloadFallbacks fills claims the provider left empty from the payload.
func withPayloadFallbacks(role identity.Role, claims identity.Claims, p RegistrationPayload) identity.Claims {
	switch role {
	case identity.RoleStudent:
		if claims.DisplayName == "" {
			claims.DisplayName = p.Student.StudentName
		}
		if claims.BirthDate == "" {
			claims.BirthDate = identity.NormalizeBirthDate(p.Student.DOB)
		}
	case identity.RoleStaff:
		if claims.DisplayName == "" {
			claims.DisplayName = p.Teacher.Name
		}
	}
	return claims
}

// RegisterLinkedIdentity creates, resumes or confirms the directory account
// and registry records for claims under role, then mints a session.
func (s *Service) RegisterLinkedIdentity(ctx context.Context, role identity.Role, claims identity.Claims, payload RegistrationPayload) RegistrationOutcome {
	out := s.register(ctx, role, claims, payload)
	detail := map[string]string{"completed": joinSteps(out.Partial.Completed)}
	if out.Failure != nil {
		detail["step"] = string(out.Failure.Step)
		detail["kind"] = string(out.Failure.Kind)
	}
	s.record(ctx, "register", audit.ActionRegister, role, claims.SubjectID, string(out.State), out.Status, detail)
	return out
}

func (s *Service) register(ctx context.Context, role identity.Role, claims identity.Claims, payload RegistrationPayload) RegistrationOutcome {
	r := &registration{
		role:    role,
		payload: payload,
		out:     RegistrationOutcome{Role: role, Partial: PartialState{Completed: []Step{}}},
	}
	if err := validatePayload(role, claims, payload); err != nil {
		return r.fail(newFailure(KindInvalidRequest, StepValidate, err.Error()))
	}
	r.claims = withPayloadFallbacks(role, claims, payload)

	ident, err := s.deriver.Derive(role, r.claims)
	if err != nil {
		return r.fail(newFailure(KindInvalidRequest, StepDerive, err.Error()))
	}
	r.ident = ident
	r.out.Username = ident.Username

	var done bool
	if role == identity.RoleStaff {
		done = s.registerStaff(ctx, r)
	} else {
		done = s.registerStudent(ctx, r)
	}
	if !done {
		return r.out
	}
	return s.mintSession(ctx, r)
}

// ensureDirectoryUser creates the directory account. An account that already
// exists is the expected state of a resumed registration and is not an error.
func (s *Service) ensureDirectoryUser(ctx context.Context, r *registration) bool {
	token, err := call(ctx, s, StepServiceToken, s.directory.ServiceToken)
	if err != nil {
		r.fail(s.failure(ctx, StepServiceToken, err))
		return false
	}
	err = run(ctx, s, StepCreateUser, func(ctx context.Context) error {
		return s.directory.CreateUser(ctx, token, r.ident.Username, r.ident.Password)
	})
	if err != nil && !isBenignDuplicate(err) {
		r.fail(s.failure(ctx, StepCreateUser, err))
		return false
	}
	if err != nil {
		s.logger.InfoContext(ctx, "directory account already provisioned",
			"username", r.ident.Username,
		)
	}
	r.out.Partial.complete(StepCreateUser)
	return true
}

// directoryAccountMissing reports whether the directory refuses the derived
// credential of an identity whose registry chain is complete. Any other
// login failure leaves the chain as it is.
func (s *Service) directoryAccountMissing(ctx context.Context, r *registration) bool {
	_, err := call(ctx, s, StepLogin, func(ctx context.Context) (string, error) {
		return s.directory.Login(ctx, r.ident.Username, r.ident.Password)
	})
	if err == nil {
		return false
	}
	if kindOf(err) != KindRejected {
		s.logger.WarnContext(ctx, "directory check failed for registered identity",
			"username", r.ident.Username,
			"error", err.Error(),
		)
		return false
	}
	return true
}

// reprovision resumes a complete registry chain at the directory step.
func (s *Service) reprovision(ctx context.Context, r *registration, osid string) bool {
	s.logger.InfoContext(ctx, "registry chain complete but directory login rejected",
		"role", r.role.String(),
		"osid", osid,
		"username", r.ident.Username,
	)
	r.out.Resumed = true
	return s.ensureDirectoryUser(ctx, r)
}

// invite creates a record at step. A duplicate rejection ends the chain as
// AlreadyExists; any other error fails it.
func (s *Service) invite(ctx context.Context, r *registration, step Step, kind registry.Kind, shape any) (registry.Record, bool) {
	rec, err := call(ctx, s, step, func(ctx context.Context) (registry.Record, error) {
		return s.registry.Invite(ctx, kind, shape)
	})
	if err == nil {
		r.out.Partial.complete(step)
		return rec, true
	}
	if kindOf(err) == KindAlreadyLinked {
		s.logger.InfoContext(ctx, "registry refused duplicate record",
			"kind", kind.String(),
			"step", string(step),
		)
		r.alreadyExists(r.out.Record, nil)
		return registry.Record{}, false
	}
	r.fail(s.failure(ctx, step, err))
	return registry.Record{}, false
}

// update applies partial to osid at step. A non-SUCCESSFUL status is the
// registry refusing a conflicting write and fails the chain as AlreadyLinked.
func (s *Service) update(ctx context.Context, r *registration, step Step, kind registry.Kind, osid string, partial any) bool {
	res, err := call(ctx, s, step, func(ctx context.Context) (registry.UpdateResult, error) {
		return s.registry.Update(ctx, kind, osid, partial)
	})
	if err != nil {
		r.fail(s.failure(ctx, step, err))
		return false
	}
	if !res.Successful() {
		s.logger.WarnContext(ctx, "registry refused update",
			"kind", kind.String(),
			"osid", osid,
			"status", res.Status,
		)
		r.fail(newFailure(KindAlreadyLinked, step, kind.String()+" update status "+res.Status))
		return false
	}
	r.out.Partial.complete(step)
	return true
}

func (s *Service) registerStudent(ctx context.Context, r *registration) bool {
	student := r.payload.Student
	name := firstNonEmpty(student.StudentName, r.claims.DisplayName)
	dob := firstNonEmpty(student.DOB, r.claims.BirthDate)

	accounts, err := s.search(ctx, StepSearchAccount, registry.KindStudentAccount,
		registry.Filter{registry.FieldStudentName: name, registry.FieldDOB: dob})
	if err != nil {
		r.fail(s.failure(ctx, StepSearchAccount, err))
		return false
	}

	switch len(accounts) {
	case 0:
		return s.createStudent(ctx, r, name, dob)
	case 1:
		return s.resumeStudent(ctx, r, accounts[0])
	default:
		r.fail(s.ambiguous(ctx, StepSearchAccount, registry.KindStudentAccount, len(accounts)))
		return false
	}
}

func (s *Service) createStudent(ctx context.Context, r *registration, name, dob string) bool {
	if !s.ensureDirectoryUser(ctx, r) {
		return false
	}

	shape := *r.payload.Student
	shape.OSID = ""
	shape.StudentName = name
	shape.DOB = dob
	shape.Username = r.ident.Username
	shape.MeripehchanID = r.claims.SubjectID
	shape.SchoolType = registry.SchoolTypePrivate
	if shape.StudentID != "" {
		shape.ReferenceID = referencePrefix + shape.StudentID
	}

	account, ok := s.invite(ctx, r, StepInviteAccount, registry.KindStudentAccount, shape)
	if !ok {
		return false
	}
	r.out.Record = &account
	r.out.Partial.PrimaryOSID = account.OSID
	s.logger.InfoContext(ctx, "student account created",
		"osid", account.OSID,
		"username", r.ident.Username,
	)

	profiles, err := s.search(ctx, StepSearchProfile, registry.KindStudentProfile,
		registry.Filter{registry.FieldStudentID: account.OSID})
	if err != nil {
		r.fail(s.failure(ctx, StepSearchProfile, err))
		return false
	}
	return s.settleProfile(ctx, r, account.OSID, profiles)
}

func (s *Service) resumeStudent(ctx context.Context, r *registration, account registry.Record) bool {
	var existing registry.StudentAccount
	if err := account.Decode(&existing); err != nil {
		r.fail(newFailure(KindRejected, StepSearchAccount, "undecodable StudentV2 record: "+err.Error()))
		return false
	}
	r.out.Record = &account
	r.out.Partial.PrimaryOSID = account.OSID

	if existing.MeripehchanID != "" && existing.MeripehchanID != r.claims.SubjectID {
		s.logger.WarnContext(ctx, "student account linked to another subject",
			"osid", account.OSID,
		)
		r.fail(newFailure(KindAlreadyLinked, StepSearchAccount, "StudentV2 record is linked to another identity"))
		return false
	}

	profiles, err := s.search(ctx, StepSearchProfile, registry.KindStudentProfile,
		registry.Filter{registry.FieldStudentID: account.OSID})
	if err != nil {
		r.fail(s.failure(ctx, StepSearchProfile, err))
		return false
	}
	if len(profiles) > 1 {
		r.fail(s.ambiguous(ctx, StepSearchProfile, registry.KindStudentProfile, len(profiles)))
		return false
	}
	if len(profiles) == 1 && existing.MeripehchanID == r.claims.SubjectID && existing.Username == r.ident.Username {
		r.out.Partial.DetailOSID = profiles[0].OSID
		if !s.directoryAccountMissing(ctx, r) {
			r.alreadyExists(&account, &profiles[0])
			return false
		}
		r.out.Detail = &profiles[0]
		return s.reprovision(ctx, r, account.OSID)
	}

	s.logger.InfoContext(ctx, "resuming student registration",
		"osid", account.OSID,
		"profile_present", len(profiles) == 1,
	)
	r.out.Resumed = true
	if !s.ensureDirectoryUser(ctx, r) {
		return false
	}
	linkage := studentLinkage{
		MeripehchanID: r.claims.SubjectID,
		Username:      r.ident.Username,
		AadharToken:   r.payload.Student.AadharToken,
		StudentID:     r.payload.Student.StudentID,
	}
	if !s.update(ctx, r, StepUpdateAccount, registry.KindStudentAccount, account.OSID, linkage) {
		return false
	}
	return s.settleProfile(ctx, r, account.OSID, profiles)
}

// settleProfile updates the learner's profile when one exists and invites it
// otherwise.
func (s *Service) settleProfile(ctx context.Context, r *registration, accountOSID string, profiles []registry.Record) bool {
	p := r.payload.Profile
	switch len(profiles) {
	case 0:
	case 1:
		upd := profileUpdate{
			AcademicYear: p.AcademicYear,
			SchoolName:   p.SchoolName,
			SchoolUdise:  p.SchoolUdise,
			GuardianName: p.GuardianName,
			Mobile:       firstNonEmpty(p.Mobile, r.claims.PhoneNumber),
			Grade:        p.Grade,
		}
		if !s.update(ctx, r, StepUpdateProfile, registry.KindStudentProfile, profiles[0].OSID, upd) {
			return false
		}
		r.out.Detail = &profiles[0]
		r.out.Partial.DetailOSID = profiles[0].OSID
		return true
	default:
		r.fail(s.ambiguous(ctx, StepSearchProfile, registry.KindStudentProfile, len(profiles)))
		return false
	}

	shape := *p
	shape.OSID = ""
	shape.StudentID = accountOSID
	shape.ClaimStatus = registry.ClaimPending
	shape.Mobile = firstNonEmpty(shape.Mobile, r.claims.PhoneNumber)

	profile, ok := s.invite(ctx, r, StepInviteProfile, registry.KindStudentProfile, shape)
	if !ok {
		return false
	}
	r.out.Detail = &profile
	r.out.Partial.DetailOSID = profile.OSID
	return true
}

func (s *Service) registerStaff(ctx context.Context, r *registration) bool {
	teachers, err := s.search(ctx, StepSearchAccount, registry.KindTeacherAccount,
		registry.Filter{registry.FieldMeripehchanLoginID: r.claims.SubjectID})
	if err != nil {
		r.fail(s.failure(ctx, StepSearchAccount, err))
		return false
	}

	switch len(teachers) {
	case 0:
		return s.createStaff(ctx, r)
	case 1:
		return s.resumeStaff(ctx, r, teachers[0])
	default:
		r.fail(s.ambiguous(ctx, StepSearchAccount, registry.KindTeacherAccount, len(teachers)))
		return false
	}
}

func teacherShape(r *registration, did string) registry.TeacherAccount {
	shape := *r.payload.Teacher
	shape.OSID = ""
	shape.MeripehchanLoginID = r.claims.SubjectID
	shape.DID = did
	shape.Username = r.ident.Username
	shape.Name = firstNonEmpty(shape.Name, r.claims.DisplayName)
	shape.Mobile = firstNonEmpty(shape.Mobile, r.claims.PhoneNumber)
	shape.SchoolUdise = firstNonEmpty(shape.SchoolUdise, r.payload.School.UdiseCode)
	shape.SchoolName = firstNonEmpty(shape.SchoolName, r.payload.School.SchoolName)
	return shape
}

func (s *Service) createStaff(ctx context.Context, r *registration) bool {
	did, err := call(ctx, s, StepGenerateDID, func(ctx context.Context) (string, error) {
		return s.dids.Generate(ctx, r.claims.SubjectID)
	})
	if err != nil {
		r.fail(s.failure(ctx, StepGenerateDID, err))
		return false
	}
	if !s.ensureDirectoryUser(ctx, r) {
		return false
	}

	teacher, ok := s.invite(ctx, r, StepInviteAccount, registry.KindTeacherAccount, teacherShape(r, did))
	if !ok {
		return false
	}
	r.out.Record = &teacher
	r.out.Partial.PrimaryOSID = teacher.OSID
	s.logger.InfoContext(ctx, "teacher account created",
		"osid", teacher.OSID,
		"username", r.ident.Username,
	)

	schools, ok := s.searchSchool(ctx, r)
	if !ok {
		return false
	}
	if len(schools) == 1 {
		r.out.Detail = &schools[0]
		r.out.Partial.DetailOSID = schools[0].OSID
		return true
	}
	return s.createSchool(ctx, r)
}

func (s *Service) resumeStaff(ctx context.Context, r *registration, teacher registry.Record) bool {
	r.out.Record = &teacher
	r.out.Partial.PrimaryOSID = teacher.OSID

	schools, ok := s.searchSchool(ctx, r)
	if !ok {
		return false
	}
	if len(schools) == 1 {
		r.out.Partial.DetailOSID = schools[0].OSID
		if !s.directoryAccountMissing(ctx, r) {
			r.alreadyExists(&teacher, &schools[0])
			return false
		}
		r.out.Detail = &schools[0]
		return s.reprovision(ctx, r, teacher.OSID)
	}

	s.logger.InfoContext(ctx, "resuming staff registration",
		"osid", teacher.OSID,
		"udise", r.payload.School.UdiseCode,
	)
	r.out.Resumed = true
	if !s.ensureDirectoryUser(ctx, r) {
		return false
	}
	shape := teacherShape(r, "")
	upd := teacherUpdate{
		Name:        shape.Name,
		Gender:      shape.Gender,
		Mobile:      shape.Mobile,
		Username:    shape.Username,
		SchoolUdise: shape.SchoolUdise,
		SchoolName:  shape.SchoolName,
	}
	if !s.update(ctx, r, StepUpdateAccount, registry.KindTeacherAccount, teacher.OSID, upd) {
		return false
	}
	return s.createSchool(ctx, r)
}

// searchSchool returns zero or one SchoolProfile for the payload's UDISE code.
func (s *Service) searchSchool(ctx context.Context, r *registration) ([]registry.Record, bool) {
	schools, err := s.search(ctx, StepSearchSchool, registry.KindSchoolProfile,
		registry.Filter{registry.FieldUdiseCode: r.payload.School.UdiseCode})
	if err != nil {
		r.fail(s.failure(ctx, StepSearchSchool, err))
		return nil, false
	}
	if len(schools) > 1 {
		r.fail(s.ambiguous(ctx, StepSearchSchool, registry.KindSchoolProfile, len(schools)))
		return nil, false
	}
	return schools, true
}

func (s *Service) createSchool(ctx context.Context, r *registration) bool {
	udise := r.payload.School.UdiseCode
	did, err := call(ctx, s, StepGenerateSchoolDID, func(ctx context.Context) (string, error) {
		return s.dids.Generate(ctx, udise)
	})
	if err != nil {
		r.fail(s.failure(ctx, StepGenerateSchoolDID, err))
		return false
	}

	shape := *r.payload.School
	shape.OSID = ""
	shape.DID = did
	school, ok := s.invite(ctx, r, StepInviteSchool, registry.KindSchoolProfile, shape)
	if !ok {
		return false
	}
	r.out.Detail = &school
	r.out.Partial.DetailOSID = school.OSID
	return true
}

// mintSession logs in with the derived credential. Registration has already
// succeeded; a failed login only means no session was minted.
func (s *Service) mintSession(ctx context.Context, r *registration) RegistrationOutcome {
	r.out.State = RegistrationCreated
	token, err := call(ctx, s, StepLogin, func(ctx context.Context) (string, error) {
		return s.directory.Login(ctx, r.ident.Username, r.ident.Password)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "registered but session login failed",
			"username", r.ident.Username,
			"error", err.Error(),
		)
		r.out.Status = StatusRegisteredLoginPending
		return r.out
	}
	r.out.Status = StatusRegistered
	r.out.SessionToken = token
	r.out.SessionMinted = true
	return r.out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func joinSteps(steps []Step) string {
	parts := make([]string, len(steps))
	for i, st := range steps {
		parts[i] = string(st)
	}
	return strings.Join(parts, ",")
}
