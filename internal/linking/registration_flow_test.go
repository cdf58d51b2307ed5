package linking

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ulp-gateway/internal/directory"
	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/linking/mocks"
	"ulp-gateway/internal/registry"
	"ulp-gateway/internal/registry/registrytest"
	"ulp-gateway/internal/upstream"
)

// memoryDirectory is a directory holding username/password pairs.
type memoryDirectory struct {
	mu    sync.Mutex
	users map[string]string
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{users: map[string]string{}}
}

func (d *memoryDirectory) ServiceToken(context.Context) (string, error) {
	return "svc-token", nil
}

func (d *memoryDirectory) CreateUser(_ context.Context, _, username, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[username]; ok {
		return directory.ErrUserExists
	}
	d.users[username] = password
	return nil
}

func (d *memoryDirectory) Login(_ context.Context, username, password string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.users[username] != password {
		return "", upstream.NewError(upstream.CategoryRejected, "directory", "login", "invalid_grant", nil)
	}
	return "token-" + username, nil
}

func (d *memoryDirectory) remove(username string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, username)
}

func (d *memoryDirectory) has(username string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.users[username]
	return ok
}

func (d *memoryDirectory) Introspect(context.Context, string) (directory.UserInfo, error) {
	return directory.UserInfo{}, nil
}

// RegistrationFlowSuite drives registration against an in-memory registry
// speaking the real wire format.
type RegistrationFlowSuite struct {
	suite.Suite
	ctx  context.Context
	fake *registrytest.Server
	dir  *memoryDirectory
	idp  *mocks.MockIdentityProvider
	dids *mocks.MockDIDGenerator
	svc  *Service
}

func TestRegistrationFlowSuite(t *testing.T) {
	suite.Run(t, new(RegistrationFlowSuite))
}

func (s *RegistrationFlowSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.ctx = context.Background()
	s.fake = registrytest.NewServer()
	s.T().Cleanup(s.fake.Close)
	s.dir = newMemoryDirectory()
	s.idp = mocks.NewMockIdentityProvider(ctrl)
	s.dids = mocks.NewMockDIDGenerator(ctrl)
	s.dids.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, subject string) (string, error) {
			return "did:ulp:" + subject, nil
		}).AnyTimes()

	reg := registry.New(s.fake.URL,
		registry.WithUpstream(upstream.NewClient("registry", upstream.WithHTTPClient(s.fake.Client()))))
	s.svc = New(s.idp, s.dir, reg, s.dids, identity.NewDeriver(salt),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *RegistrationFlowSuite) TestStudentRegistrationIsIdempotent() {
	first := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStudent, ashaClaims, ashaPayload())
	s.Require().Equal(RegistrationCreated, first.State, "%+v", first.Failure)
	s.Equal(StatusRegistered, first.Status)
	s.Equal("token-"+ashaUsername, first.SessionToken)

	accounts := s.fake.Records("StudentV2")
	s.Require().Len(accounts, 1)
	s.Equal(ashaUsername, accounts[0]["username"])
	s.Equal("dl-asha", accounts[0]["meripehchan_id"])
	s.Equal("ULP_S-1", accounts[0]["reference_id"])
	s.Equal("private", accounts[0]["school_type"])

	profiles := s.fake.Records("StudentDetailV2")
	s.Require().Len(profiles, 1)
	s.Equal(accounts[0]["osid"], profiles[0]["student_id"])
	s.Equal("pending", profiles[0]["claim_status"])
	s.Equal("+919876543210", profiles[0]["mobile"])

	writes := s.fake.CountCalls("invite", "StudentV2") + s.fake.CountCalls("invite", "StudentDetailV2")

	second := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStudent, ashaClaims, ashaPayload())
	s.Equal(RegistrationAlreadyExists, second.State)
	s.Equal(StatusRegisterDuplicate, second.Status)
	s.True(second.Partial.Empty())
	s.Len(s.fake.Records("StudentV2"), 1)
	s.Len(s.fake.Records("StudentDetailV2"), 1)
	s.Equal(writes, s.fake.CountCalls("invite", "StudentV2")+s.fake.CountCalls("invite", "StudentDetailV2"))
	s.Zero(s.fake.CountCalls("update", "StudentV2"))
}

func (s *RegistrationFlowSuite) TestStudentRegistrationResumesAfterProfileFailure() {
	s.fake.FailNext("invite", "StudentDetailV2", http.StatusServiceUnavailable)

	first := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStudent, ashaClaims, ashaPayload())
	s.Require().Equal(RegistrationFailed, first.State)
	s.Equal(KindTransportFailure, first.Failure.Kind)
	s.Equal(StepInviteProfile, first.Failure.Step)
	s.Equal(StatusRegisterError, first.Status)
	s.Equal([]Step{StepCreateUser, StepInviteAccount}, first.Partial.Completed)
	s.NotEmpty(first.Partial.PrimaryOSID)
	s.Empty(s.fake.Records("StudentDetailV2"))

	second := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStudent, ashaClaims, ashaPayload())
	s.Require().Equal(RegistrationCreated, second.State, "%+v", second.Failure)
	s.True(second.Resumed)
	s.True(second.SessionMinted)
	s.Equal(first.Partial.PrimaryOSID, second.Partial.PrimaryOSID)
	s.Equal([]Step{StepCreateUser, StepUpdateAccount, StepInviteProfile}, second.Partial.Completed)

	s.Equal(1, s.fake.CountCalls("invite", "StudentV2"))
	s.Equal(1, s.fake.CountCalls("update", "StudentV2"))
	s.Len(s.fake.Records("StudentV2"), 1)
	profiles := s.fake.Records("StudentDetailV2")
	s.Require().Len(profiles, 1)
	s.Equal(first.Partial.PrimaryOSID, profiles[0]["student_id"])
}

func (s *RegistrationFlowSuite) TestStudentResumeUpdatesExistingProfile() {
	osid := s.fake.Seed("StudentV2", map[string]any{"student_name": "Asha Kumar", "dob": "02/04/2010"})
	s.fake.Seed("StudentDetailV2", map[string]any{"student_id": osid, "grade": "6", "claim_status": "approved"})

	out := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStudent, ashaClaims, ashaPayload())

	s.Require().Equal(RegistrationCreated, out.State, "%+v", out.Failure)
	s.True(out.Resumed)
	s.Equal(1, s.fake.CountCalls("update", "StudentDetailV2"))
	s.Zero(s.fake.CountCalls("invite", "StudentDetailV2"))
	profile := s.fake.Records("StudentDetailV2")[0]
	s.Equal("7", profile["grade"])
	s.Equal("approved", profile["claim_status"])
	account := s.fake.Records("StudentV2")[0]
	s.Equal(ashaUsername, account["username"])
	s.Equal("dl-asha", account["meripehchan_id"])
}

func (s *RegistrationFlowSuite) TestSearchFailureIsNotTreatedAsEmpty() {
	s.fake.FailNext("search", "StudentV2", http.StatusBadGateway)

	out := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStudent, ashaClaims, ashaPayload())

	s.Equal(RegistrationFailed, out.State)
	s.Equal(KindTransportFailure, out.Failure.Kind)
	s.Equal(StatusSearchError, out.Status)
	s.Zero(s.fake.CountCalls("invite", "StudentV2"))
	s.Empty(s.dir.users)
}

func (s *RegistrationFlowSuite) TestStaffRegistrationIsIdempotent() {
	first := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStaff, staffClaims, staffPayload())
	s.Require().Equal(RegistrationCreated, first.State, "%+v", first.Failure)

	teachers := s.fake.Records("TeacherV1")
	s.Require().Len(teachers, 1)
	s.Equal("did:ulp:"+staffSubject, teachers[0]["did"])
	s.Equal(staffUsername, teachers[0]["username"])
	schools := s.fake.Records("SchoolDetail")
	s.Require().Len(schools, 1)
	s.Equal("did:ulp:U123", schools[0]["did"])

	second := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStaff, staffClaims, staffPayload())
	s.Equal(RegistrationAlreadyExists, second.State)
	s.Len(s.fake.Records("TeacherV1"), 1)
	s.Len(s.fake.Records("SchoolDetail"), 1)
}

func (s *RegistrationFlowSuite) TestStaffRegistrationResumesSchool() {
	s.fake.FailNext("invite", "SchoolDetail", http.StatusInternalServerError)

	first := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStaff, staffClaims, staffPayload())
	s.Require().Equal(RegistrationFailed, first.State)
	s.Equal(StepInviteSchool, first.Failure.Step)
	s.Equal([]Step{StepCreateUser, StepInviteAccount}, first.Partial.Completed)

	second := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStaff, staffClaims, staffPayload())
	s.Require().Equal(RegistrationCreated, second.State, "%+v", second.Failure)
	s.True(second.Resumed)
	s.Equal(1, s.fake.CountCalls("invite", "TeacherV1"))
	s.Equal(1, s.fake.CountCalls("update", "TeacherV1"))
	s.Len(s.fake.Records("SchoolDetail"), 1)
}

func (s *RegistrationFlowSuite) TestStudentRegistrationRecreatesMissingDirectoryAccount() {
	s.idp.EXPECT().Exchange(gomock.Any(), identity.RoleStudent, "code").Return(ashaClaims, nil).Times(2)

	first := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStudent, ashaClaims, ashaPayload())
	s.Require().Equal(RegistrationCreated, first.State, "%+v", first.Failure)
	s.dir.remove(ashaUsername)

	before := s.svc.LinkExternalIdentity(s.ctx, "code", identity.RoleStudent)
	s.Equal(LinkUnlinked, before.State)

	again := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStudent, ashaClaims, ashaPayload())
	s.Require().Equal(RegistrationCreated, again.State, "%+v", again.Failure)
	s.Equal(StatusRegistered, again.Status)
	s.True(again.Resumed)
	s.True(again.SessionMinted)
	s.Equal("token-"+ashaUsername, again.SessionToken)
	s.Equal([]Step{StepCreateUser}, again.Partial.Completed)
	s.Equal(first.Partial.PrimaryOSID, again.Partial.PrimaryOSID)
	s.Equal(first.Partial.DetailOSID, again.Partial.DetailOSID)
	s.True(s.dir.has(ashaUsername))

	s.Equal(1, s.fake.CountCalls("invite", "StudentV2"))
	s.Equal(1, s.fake.CountCalls("invite", "StudentDetailV2"))
	s.Zero(s.fake.CountCalls("update", "StudentV2"))

	after := s.svc.LinkExternalIdentity(s.ctx, "code", identity.RoleStudent)
	s.Equal(LinkResolved, after.State)
	s.Equal("token-"+ashaUsername, after.SessionToken)
}

func (s *RegistrationFlowSuite) TestStaffRegistrationRecreatesMissingDirectoryAccount() {
	s.idp.EXPECT().Exchange(gomock.Any(), identity.RoleStaff, "code").Return(staffClaims, nil)

	first := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStaff, staffClaims, staffPayload())
	s.Require().Equal(RegistrationCreated, first.State, "%+v", first.Failure)
	s.dir.remove(staffUsername)

	again := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStaff, staffClaims, staffPayload())
	s.Require().Equal(RegistrationCreated, again.State, "%+v", again.Failure)
	s.True(again.Resumed)
	s.True(again.SessionMinted)
	s.Equal([]Step{StepCreateUser}, again.Partial.Completed)
	s.True(s.dir.has(staffUsername))
	s.Equal(1, s.fake.CountCalls("invite", "TeacherV1"))
	s.Equal(1, s.fake.CountCalls("invite", "SchoolDetail"))

	res := s.svc.LinkExternalIdentity(s.ctx, "code", identity.RoleStaff)
	s.Equal(LinkResolved, res.State)
}

func (s *RegistrationFlowSuite) TestUnsuccessfulUpdateIsAlreadyLinked() {
	s.fake.Seed("StudentV2", map[string]any{"student_name": "Asha Kumar", "dob": "02/04/2010"})
	s.fake.RespondNext("update", "StudentV2", http.StatusOK,
		`{"params":{"status":"UNSUCCESSFUL","errmsg":"duplicate username"}}`)

	out := s.svc.RegisterLinkedIdentity(s.ctx, identity.RoleStudent, ashaClaims, ashaPayload())

	s.Require().Equal(RegistrationFailed, out.State)
	s.Equal(KindAlreadyLinked, out.Failure.Kind)
	s.Equal(StepUpdateAccount, out.Failure.Step)
	s.Equal(StatusUpdateError, out.Status)
	s.Equal([]Step{StepCreateUser}, out.Partial.Completed)
	s.False(out.SessionMinted)
	s.Empty(s.fake.Records("StudentDetailV2"))
}
