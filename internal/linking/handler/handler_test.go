package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/linking/handler/mocks"
	"ulp-gateway/internal/registry"
	"ulp-gateway/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(s.service, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(req *http.Request) (testutil.Envelope, int) {
	rr := testutil.DoRequest(s.router, req)
	return testutil.UnmarshalEnvelope(s.T(), rr), rr.Code
}

func record(raw string) *registry.Record {
	return &registry.Record{OSID: "1-a", Raw: json.RawMessage(raw)}
}

func (s *HandlerSuite) TestAuthorizeReturnsProviderURL() {
	s.service.EXPECT().AuthorizationURL(identity.RoleStudent, "ewallet").
		Return("https://provider/authorize?client_id=wallet&state=ewallet", nil)

	env, code := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/identity/authorize?role=ewallet&state=ewallet"))

	s.Equal(http.StatusOK, code)
	s.True(env.Success)
	s.Equal(linking.StatusAuthorizeURL, env.Status)
	res := testutil.UnmarshalResult[AuthorizeResponse](s.T(), env)
	s.Equal("https://provider/authorize?client_id=wallet&state=ewallet", res.URL)
}

func (s *HandlerSuite) TestAuthorizeUnknownRole() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/identity/authorize?role=admin"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_request")
}

func (s *HandlerSuite) TestAuthorizeUnconfiguredRole() {
	s.service.EXPECT().AuthorizationURL(identity.RoleStaff, "").
		Return("", &linking.Failure{Kind: linking.KindInvalidRequest, Step: linking.StepValidate, Status: linking.StatusInvalidRequest})

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/identity/authorize?role=portal"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, linking.StatusInvalidRequest)
}

func (s *HandlerSuite) TestLinkResolved() {
	s.service.EXPECT().LinkExternalIdentity(gomock.Any(), "code-1", identity.RoleStudent).
		Return(linking.LinkResult{
			State:        linking.LinkResolved,
			Status:       linking.StatusLoginSuccess,
			Role:         identity.RoleStudent,
			SessionToken: "tok",
			Record:       record(`{"osid":"1-a","username":"asha@02042010"}`),
		})

	env, code := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identity/link",
		map[string]string{"auth_code": " code-1 ", "role": "ewallet"}))

	s.Equal(http.StatusOK, code)
	s.True(env.Success)
	s.Equal(linking.StatusLoginSuccess, env.Status)
	res := testutil.UnmarshalResult[map[string]any](s.T(), env)
	s.Equal("tok", (*res)["session_token"])
	s.Equal("resolved", (*res)["state"])
}

func (s *HandlerSuite) TestLinkUnlinkedIsSuccessful() {
	s.service.EXPECT().LinkExternalIdentity(gomock.Any(), "code-1", identity.RoleStaff).
		Return(linking.LinkResult{
			State:    linking.LinkUnlinked,
			Status:   linking.StatusSearchNotFound,
			Role:     identity.RoleStaff,
			Claims:   &identity.Claims{SubjectID: "ABC123"},
			Username: "abc123_teacher",
		})

	env, code := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identity/link",
		map[string]string{"auth_code": "code-1", "role": "portal"}))

	s.Equal(http.StatusOK, code)
	s.True(env.Success)
	s.Equal(linking.StatusSearchNotFound, env.Status)
}

func (s *HandlerSuite) TestLinkFailureMapsStatus() {
	cases := []struct {
		name     string
		failure  linking.Failure
		wantCode int
	}{
		{"exchange rejected", linking.Failure{Kind: linking.KindRejected, Step: linking.StepExchange, Status: linking.StatusTokenBadRequest}, http.StatusBadRequest},
		{"registry down", linking.Failure{Kind: linking.KindTransportFailure, Step: linking.StepSearchAccount, Status: linking.StatusSearchError}, http.StatusBadGateway},
		{"ambiguous", linking.Failure{Kind: linking.KindAmbiguous, Step: linking.StepSearchAccount, Status: linking.StatusSearchAmbiguous}, http.StatusConflict},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			f := tc.failure
			s.service.EXPECT().LinkExternalIdentity(gomock.Any(), "code-1", identity.RoleStudent).
				Return(linking.LinkResult{State: linking.LinkFailed, Status: f.Status, Failure: &f})

			env, code := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identity/link",
				map[string]string{"auth_code": "code-1", "role": "student"}))

			s.Equal(tc.wantCode, code)
			s.False(env.Success)
			s.Equal(f.Status, env.Status)
			s.NotEmpty(env.Message)
		})
	}
}

func (s *HandlerSuite) TestLinkValidation() {
	cases := map[string]map[string]string{
		"missing code": {"role": "student"},
		"missing role": {"auth_code": "code-1"},
		"unknown role": {"auth_code": "code-1", "role": "admin"},
	}
	for name, body := range cases {
		s.Run(name, func() {
			rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identity/link", body))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_request")
		})
	}

	s.Run("malformed body", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/identity/link", "{"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_request")
	})
}

func (s *HandlerSuite) TestRegisterCreated() {
	claims := identity.Claims{SubjectID: "dl-asha", DisplayName: "Asha Kumar", BirthDate: "02/04/2010"}
	s.service.EXPECT().RegisterLinkedIdentity(gomock.Any(), identity.RoleStudent, claims, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ identity.Role, _ identity.Claims, p linking.RegistrationPayload) linking.RegistrationOutcome {
			s.Require().NotNil(p.Student)
			s.Equal("S-1", p.Student.StudentID)
			s.Require().NotNil(p.Profile)
			s.Equal("7", p.Profile.Grade)
			return linking.RegistrationOutcome{
				State:         linking.RegistrationCreated,
				Status:        linking.StatusRegistered,
				SessionToken:  "tok",
				SessionMinted: true,
			}
		})

	body := map[string]any{
		"role":   "student",
		"claims": map[string]string{"subject_id": " dl-asha ", "display_name": "Asha Kumar", "birth_date": "02/04/2010"},
		"payload": map[string]any{
			"student":       map[string]string{"student_id": "S-1"},
			"studentdetail": map[string]string{"grade": "7"},
		},
	}
	env, code := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identity/register", body))

	s.Equal(http.StatusCreated, code)
	s.True(env.Success)
	s.Equal(linking.StatusRegistered, env.Status)
}

func (s *HandlerSuite) TestRegisterAlreadyExists() {
	s.service.EXPECT().RegisterLinkedIdentity(gomock.Any(), identity.RoleStaff, gomock.Any(), gomock.Any()).
		Return(linking.RegistrationOutcome{State: linking.RegistrationAlreadyExists, Status: linking.StatusRegisterDuplicate})

	env, code := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identity/register", map[string]any{
		"role":   "staff",
		"claims": map[string]string{"subject_id": "ABC123"},
	}))

	s.Equal(http.StatusOK, code)
	s.True(env.Success)
	s.Equal(linking.StatusRegisterDuplicate, env.Status)
}

func (s *HandlerSuite) TestRegisterFailureEchoesPartialState() {
	f := &linking.Failure{Kind: linking.KindTransportFailure, Step: linking.StepInviteProfile, Status: linking.StatusRegisterError}
	s.service.EXPECT().RegisterLinkedIdentity(gomock.Any(), identity.RoleStudent, gomock.Any(), gomock.Any()).
		Return(linking.RegistrationOutcome{
			State:   linking.RegistrationFailed,
			Status:  f.Status,
			Failure: f,
			Partial: linking.PartialState{Completed: []linking.Step{linking.StepCreateUser, linking.StepInviteAccount}, PrimaryOSID: "1-a"},
		})

	env, code := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identity/register", map[string]any{
		"role":   "student",
		"claims": map[string]string{"subject_id": "dl-asha"},
	}))

	s.Equal(http.StatusBadGateway, code)
	s.False(env.Success)
	s.Equal(linking.StatusRegisterError, env.Status)
	out := testutil.UnmarshalResult[linking.RegistrationOutcome](s.T(), env)
	s.Equal([]linking.Step{linking.StepCreateUser, linking.StepInviteAccount}, out.Partial.Completed)
	s.Equal("1-a", out.Partial.PrimaryOSID)
}

func (s *HandlerSuite) TestRegisterRequiresSubject() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identity/register",
		map[string]any{"role": "student", "claims": map[string]string{}}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_request")
}

func (s *HandlerSuite) TestSessionRequiresBearer() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/identity/session"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *HandlerSuite) TestSessionFound() {
	s.service.EXPECT().ResolveSession(gomock.Any(), "tok").Return(linking.SessionResult{
		State:    linking.LookupFound,
		Status:   linking.StatusSearchFound,
		Username: "asha@02042010",
		Role:     identity.RoleStudent,
		Record:   record(`{"osid":"1-a"}`),
	})

	req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/identity/session")
	req.Header.Set("Authorization", "Bearer tok")
	env, code := s.do(req)

	s.Equal(http.StatusOK, code)
	s.True(env.Success)
	res := testutil.UnmarshalResult[map[string]any](s.T(), env)
	s.Equal("asha@02042010", (*res)["username"])
}

func (s *HandlerSuite) TestSessionOutcomes() {
	cases := []struct {
		name     string
		result   linking.SessionResult
		wantCode int
	}{
		{"not linked", linking.SessionResult{State: linking.LookupNotFound, Status: linking.StatusSearchNotFound}, http.StatusNotFound},
		{"expired", linking.SessionResult{
			State:   linking.LookupUnauthorized,
			Status:  linking.StatusUserTokenBadRequest,
			Failure: &linking.Failure{Kind: linking.KindTokenExpired, Step: linking.StepIntrospect, Status: linking.StatusUserTokenBadRequest},
		}, http.StatusUnauthorized},
		{"ambiguous", linking.SessionResult{
			State:   linking.LookupAmbiguous,
			Status:  linking.StatusSearchAmbiguous,
			Failure: &linking.Failure{Kind: linking.KindAmbiguous, Step: linking.StepSearchAccount, Status: linking.StatusSearchAmbiguous},
		}, http.StatusConflict},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().ResolveSession(gomock.Any(), "tok").Return(tc.result)
			req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/identity/session")
			req.Header.Set("Authorization", "Bearer tok")

			env, code := s.do(req)

			s.Equal(tc.wantCode, code)
			s.False(env.Success)
			s.Equal(tc.result.Status, env.Status)
		})
	}
}

func (s *HandlerSuite) TestSchoolLookup() {
	s.service.EXPECT().
		ResolveRecord(gomock.Any(), "tok", registry.KindSchoolProfile, registry.FieldUdiseCode, "U123").
		Return(linking.LookupResult{State: linking.LookupFound, Status: linking.StatusSearchFound, Record: record(`{"udiseCode":"U123"}`)})

	req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/schools/U123")
	req.Header.Set("Authorization", "Bearer tok")
	env, code := s.do(req)

	s.Equal(http.StatusOK, code)
	res := testutil.UnmarshalResult[map[string]any](s.T(), env)
	s.Equal(map[string]any{"udiseCode": "U123"}, (*res)["record"])
}
