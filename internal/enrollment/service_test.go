package enrollment

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks SessionResolver,Registry,DIDGenerator,CredentialIssuer,AuditPublisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ulp-gateway/internal/audit"
	"ulp-gateway/internal/credential"
	"ulp-gateway/internal/enrollment/mocks"
	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/registry"
	"ulp-gateway/internal/registry/registrytest"
	"ulp-gateway/internal/upstream"
)

const (
	staffToken    = "staff-token"
	staffUsername = "abc123_teacher"
)

func staffSession() linking.SessionResult {
	return linking.SessionResult{
		State:    linking.LookupFound,
		Status:   linking.StatusSearchFound,
		Role:     identity.RoleStaff,
		Username: staffUsername,
		Record: &registry.Record{OSID: "1-teacher", Raw: json.RawMessage(
			`{"osid":"1-teacher","username":"abc123_teacher","schoolUdise":"U123","schoolName":"Govt School","did":"did:ulp:ABC123"}`)},
	}
}

// EnrollmentSuite drives roster operations against an in-memory registry.
type EnrollmentSuite struct {
	suite.Suite
	ctx      context.Context
	fake     *registrytest.Server
	sessions *mocks.MockSessionResolver
	dids     *mocks.MockDIDGenerator
	issuer   *mocks.MockCredentialIssuer
	sink     *audit.MemorySink
	svc      *Service
}

func TestEnrollmentSuite(t *testing.T) {
	suite.Run(t, new(EnrollmentSuite))
}

func (s *EnrollmentSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.fake = registrytest.NewServer()
	s.T().Cleanup(s.fake.Close)
	s.sessions = mocks.NewMockSessionResolver(ctrl)
	s.dids = mocks.NewMockDIDGenerator(ctrl)
	s.issuer = mocks.NewMockCredentialIssuer(ctrl)
	s.sink = audit.NewMemorySink(16)

	reg := registry.New(s.fake.URL,
		registry.WithUpstream(upstream.NewClient("registry", upstream.WithHTTPClient(s.fake.Client()))))
	s.svc = New(s.sessions, reg, s.dids, s.issuer,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(audit.NewPublisher(s.sink)),
		WithConcurrency(1),
	)
}

func (s *EnrollmentSuite) expectStaff() {
	s.sessions.EXPECT().ResolveSession(gomock.Any(), staffToken).Return(staffSession())
}

func (s *EnrollmentSuite) expectDIDs() {
	s.dids.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, subject string) (string, error) {
			return "did:ulp:" + subject, nil
		}).AnyTimes()
}

func roster() BulkRegistration {
	return BulkRegistration{
		School: SchoolDetails{Grade: "7", AcademicYear: "2024-25", SchoolType: "public"},
		Students: []StudentEntry{
			{StudentID: "S-1", StudentName: "Asha Kumar", DOB: "02/04/2010", Mobile: "98765 43210", GuardianName: "R Kumar"},
			{StudentID: "S-2", StudentName: "Ravi Singh", DOB: "15/08/2010"},
		},
	}
}

func (s *EnrollmentSuite) TestBulkRegisterCreatesAccountsAndApprovedProfiles() {
	s.expectStaff()
	s.expectDIDs()

	res := s.svc.BulkRegister(s.ctx, staffToken, roster())

	s.Require().True(res.OK(), "%+v", res)
	s.Equal(StatusBulkRegisterSuccess, res.Status)
	s.Require().Len(res.Items, 2)
	s.Equal(ItemCreated, res.Items[0].State)
	s.Equal(ItemCreated, res.Items[1].State)

	accounts := s.fake.Records("StudentV2")
	s.Require().Len(accounts, 2)
	s.Equal("asha@02042010", accounts[0]["username"])
	s.Equal("did:ulp:S-1", accounts[0]["DID"])
	s.Equal("ULP_S-1", accounts[0]["reference_id"])
	s.Equal("public", accounts[0]["school_type"])
	s.Equal("", accounts[0]["meripehchan_id"])

	profiles := s.fake.Records("StudentDetailV2")
	s.Require().Len(profiles, 2)
	s.Equal(accounts[0]["osid"], profiles[0]["student_id"])
	s.Equal("approved", profiles[0]["claim_status"])
	s.Equal("U123", profiles[0]["school_udise"])
	s.Equal("Govt School", profiles[0]["school_name"])
	s.Equal("+919876543210", profiles[0]["mobile"])

	events := s.sink.Drain()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionBulkRegister, events[0].Action)
	s.Equal(staffUsername, events[0].Subject)
	s.Equal("ok", events[0].Outcome)
}

func (s *EnrollmentSuite) TestBulkRegisterIsIdempotent() {
	s.sessions.EXPECT().ResolveSession(gomock.Any(), staffToken).Return(staffSession()).Times(2)
	s.expectDIDs()

	s.Require().True(s.svc.BulkRegister(s.ctx, staffToken, roster()).OK())
	second := s.svc.BulkRegister(s.ctx, staffToken, roster())

	s.True(second.OK())
	s.Equal(ItemSkipped, second.Items[0].State)
	s.Equal(ItemSkipped, second.Items[1].State)
	s.Equal(2, s.fake.CountCalls("invite", "StudentV2"))
	s.Equal(2, s.fake.CountCalls("invite", "StudentDetailV2"))
}

func (s *EnrollmentSuite) TestBulkRegisterResumesMissingProfile() {
	s.sessions.EXPECT().ResolveSession(gomock.Any(), staffToken).Return(staffSession()).Times(2)
	s.expectDIDs()
	s.fake.FailNext("invite", "StudentDetailV2", http.StatusServiceUnavailable)

	first := s.svc.BulkRegister(s.ctx, staffToken, roster())
	s.False(first.OK())
	s.Equal(StatusBulkRegisterError, first.Status)
	s.Equal(1, first.Failed)
	s.Equal(ItemFailed, first.Items[0].State)
	s.Equal(linking.StepInviteProfile, first.Items[0].Failure.Step)
	s.Equal(linking.KindTransportFailure, first.Items[0].Failure.Kind)
	s.NotEmpty(first.Items[0].OSID)
	s.Equal(ItemCreated, first.Items[1].State)

	second := s.svc.BulkRegister(s.ctx, staffToken, roster())
	s.True(second.OK(), "%+v", second)
	s.Equal(ItemResumed, second.Items[0].State)
	s.Equal(first.Items[0].OSID, second.Items[0].OSID)
	s.Equal(ItemSkipped, second.Items[1].State)
	s.Len(s.fake.Records("StudentV2"), 2)
	s.Len(s.fake.Records("StudentDetailV2"), 2)
}

func (s *EnrollmentSuite) TestBulkRegisterItemFailuresDoNotStopBatch() {
	s.expectStaff()
	s.dids.EXPECT().Generate(gomock.Any(), "S-1").Return("", upstream.NewError(upstream.CategoryTransport, "did", "generate", "down", nil))
	s.dids.EXPECT().Generate(gomock.Any(), "S-2").Return("did:ulp:S-2", nil)

	batch := roster()
	batch.Students = append(batch.Students, StudentEntry{StudentID: "S-3", DOB: "01/01/2010"})
	res := s.svc.BulkRegister(s.ctx, staffToken, batch)

	s.Equal(2, res.Failed)
	s.Equal(linking.StepGenerateDID, res.Items[0].Failure.Step)
	s.Equal(linking.StatusDIDGenerateError, res.Items[0].Failure.Status)
	s.Equal(ItemCreated, res.Items[1].State)
	s.Equal(linking.KindInvalidRequest, res.Items[2].Failure.Kind)
	s.Len(s.fake.Records("StudentV2"), 1)
}

func (s *EnrollmentSuite) TestBulkRegisterSearchFailureWritesNothing() {
	s.expectStaff()
	s.fake.FailNext("search", "StudentV2", http.StatusBadGateway)

	batch := roster()
	batch.Students = batch.Students[:1]
	res := s.svc.BulkRegister(s.ctx, staffToken, batch)

	s.Equal(1, res.Failed)
	s.Equal(linking.StatusSearchError, res.Items[0].Failure.Status)
	s.Zero(s.fake.CountCalls("invite", "StudentV2"))
}

func (s *EnrollmentSuite) TestRosterRequiresStaffSession() {
	learner := staffSession()
	learner.Role = identity.RoleStudent
	expired := linking.SessionResult{
		State:   linking.LookupUnauthorized,
		Status:  linking.StatusUserTokenBadRequest,
		Failure: linking.NewFailure(linking.KindTokenExpired, linking.StepIntrospect, "expired"),
	}

	for name, sess := range map[string]linking.SessionResult{"learner": learner, "expired": expired} {
		s.Run(name, func() {
			s.sessions.EXPECT().ResolveSession(gomock.Any(), staffToken).Return(sess)

			res := s.svc.BulkRegister(s.ctx, staffToken, roster())

			s.Require().NotNil(res.Failure)
			s.Contains([]linking.ErrorKind{linking.KindUnauthorized, linking.KindTokenExpired}, res.Failure.Kind)
			s.Equal(linking.StatusUserTokenBadRequest, res.Status)
			s.Empty(res.Items)
		})
	}
	s.Zero(s.fake.CountCalls("search", "StudentV2"))
}

func (s *EnrollmentSuite) TestListStudents() {
	accountA := s.fake.Seed("StudentV2", map[string]any{"student_name": "Asha Kumar", "username": "asha@02042010"})
	accountB := s.fake.Seed("StudentV2", map[string]any{"student_name": "Ravi Singh"})
	s.fake.Seed("StudentDetailV2", map[string]any{"student_id": accountA, "school_udise": "U123", "grade": "7", "acdemic_year": "2024-25", "claim_status": "approved"})
	s.fake.Seed("StudentDetailV2", map[string]any{"student_id": accountB, "school_udise": "U123", "grade": "7", "acdemic_year": "2024-25", "claim_status": "pending"})
	s.fake.Seed("StudentDetailV2", map[string]any{"student_id": accountB, "school_udise": "U999", "grade": "7", "acdemic_year": "2024-25", "claim_status": "approved"})
	s.expectStaff()

	list := s.svc.ListStudents(s.ctx, staffToken, "7", "2024-25")

	s.Require().Equal(linking.LookupFound, list.State, "%+v", list.Failure)
	s.Equal(linking.StatusSearchFound, list.Status)
	s.Require().Len(list.Students, 1)
	s.Equal(accountA, list.Students[0].Student.OSID)
	s.Equal("asha@02042010", list.Students[0].Student.Field("username"))
	s.Equal("approved", list.Students[0].Detail.Field("claim_status"))
}

func (s *EnrollmentSuite) TestListStudentsEmptyClass() {
	s.expectStaff()

	list := s.svc.ListStudents(s.ctx, staffToken, "7", "2024-25")

	s.Equal(linking.LookupNotFound, list.State)
	s.Equal(linking.StatusSearchNotFound, list.Status)
}

func (s *EnrollmentSuite) TestListStudentsAccountSearchFailure() {
	account := s.fake.Seed("StudentV2", map[string]any{"student_name": "Asha Kumar"})
	s.fake.Seed("StudentDetailV2", map[string]any{"student_id": account, "school_udise": "U123", "grade": "7", "acdemic_year": "2024-25", "claim_status": "approved"})
	s.fake.FailNext("search", "StudentV2", http.StatusInternalServerError)
	s.expectStaff()

	list := s.svc.ListStudents(s.ctx, staffToken, "7", "2024-25")

	s.Equal(linking.LookupFailed, list.State)
	s.Equal(linking.StatusSearchError, list.Status)
}

func (s *EnrollmentSuite) TestListStudentsRequiresFilters() {
	list := s.svc.ListStudents(s.ctx, staffToken, "", "2024-25")

	s.Equal(linking.LookupFailed, list.State)
	s.Equal(linking.StatusInvalidRequest, list.Status)
}

func (s *EnrollmentSuite) TestBulkIssueFetchesSchemaOnce() {
	s.expectStaff()
	schema := credential.Schema{ID: "schema-1", Raw: json.RawMessage(`{"id":"schema-1"}`)}
	s.issuer.EXPECT().Schema(gomock.Any(), "schema-1").Return(schema, nil).Times(1)

	var issued []credential.IssueRequest
	s.issuer.EXPECT().Issue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req credential.IssueRequest) (json.RawMessage, error) {
			issued = append(issued, req)
			if req.Subject["id"] == "did:ulp:S-2" {
				return nil, upstream.NewError(upstream.CategoryRejected, "credentials", "issue", "bad subject", nil)
			}
			return json.RawMessage(`{"id":"cred"}`), nil
		}).Times(2)

	res := s.svc.BulkIssue(s.ctx, staffToken, BulkIssuance{
		Common: SubjectCommon{Grade: "7", AcademicYear: "2024-25"},
		Issuer: IssuerDetail{SchemaID: "schema-1"},
		Subjects: []CredentialSubject{
			{ID: "did:ulp:S-1", StudentName: "Asha Kumar"},
			{ID: "did:ulp:S-2", StudentName: "Ravi Singh"},
		},
	})

	s.Equal(StatusBulkIssueError, res.Status)
	s.Equal(1, res.Failed)
	s.Equal(ItemIssued, res.Items[0].State)
	s.Equal(linking.StatusCredentialIssueError, res.Items[1].Failure.Status)
	s.Require().Len(issued, 2)
	s.Equal("did:ulp:ABC123", issued[0].IssuerDID)
	s.Equal("schema-1", issued[0].SchemaID)
	s.Equal("Govt School", issued[0].Subject["schoolName"])
	s.Equal("7", issued[0].Subject["grade"])
}

func (s *EnrollmentSuite) TestBulkIssueSchemaFailureStopsBatch() {
	s.expectStaff()
	s.issuer.EXPECT().Schema(gomock.Any(), "schema-1").Return(credential.Schema{}, errors.New("dial tcp: refused"))

	res := s.svc.BulkIssue(s.ctx, staffToken, BulkIssuance{
		Issuer:   IssuerDetail{SchemaID: "schema-1"},
		Subjects: []CredentialSubject{{ID: "did:ulp:S-1"}},
	})

	s.Require().NotNil(res.Failure)
	s.Equal(linking.StepFetchSchema, res.Failure.Step)
	s.Equal(linking.StatusCredentialIssueError, res.Status)
	s.Empty(res.Items)
}
