package registry_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"ulp-gateway/internal/registry"
	"ulp-gateway/internal/registry/registrytest"
	"ulp-gateway/internal/upstream"
)

type RegistrySuite struct {
	suite.Suite
	fake   *registrytest.Server
	client *registry.Client
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.fake = registrytest.NewServer()
	s.client = registry.New(s.fake.URL+"/",
		registry.WithUpstream(upstream.NewClient("registry", upstream.WithHTTPClient(s.fake.Client()))))
}

func (s *RegistrySuite) TearDownTest() {
	s.fake.Close()
}

func (s *RegistrySuite) TestSearchEmptyIsNotAnError() {
	records, err := s.client.Search(context.Background(), registry.KindStudentAccount,
		registry.Filter{registry.FieldUsername: "asha@02042010"})
	s.Require().NoError(err)
	s.NotNil(records)
	s.Empty(records)
}

func (s *RegistrySuite) TestSearchMatchesEveryField() {
	osid := s.fake.Seed("StudentV2", map[string]any{"student_name": "Asha Kumar", "dob": "02/04/2010"})
	s.fake.Seed("StudentV2", map[string]any{"student_name": "Asha Kumar", "dob": "03/04/2010"})

	records, err := s.client.Search(context.Background(), registry.KindStudentAccount, registry.Filter{
		registry.FieldStudentName: "Asha Kumar",
		registry.FieldDOB:         "02/04/2010",
	})
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(osid, records[0].OSID)
	s.Equal("Asha Kumar", records[0].Field("student_name"))

	var acct registry.StudentAccount
	s.Require().NoError(records[0].Decode(&acct))
	s.Equal(osid, acct.OSID)
	s.Equal("02/04/2010", acct.DOB)
}

func (s *RegistrySuite) TestSearchFailureIsTransport() {
	s.fake.FailNext("search", "StudentV2", http.StatusInternalServerError)
	records, err := s.client.Search(context.Background(), registry.KindStudentAccount, registry.Filter{"x": "y"})
	s.Nil(records)
	s.Equal(upstream.CategoryTransport, upstream.CategoryOf(err))
}

func (s *RegistrySuite) TestSearchValidationFailureIsRejected() {
	s.fake.FailNext("search", "StudentV2", http.StatusBadRequest)
	_, err := s.client.Search(context.Background(), registry.KindStudentAccount, registry.Filter{"x": "y"})
	s.Equal(upstream.CategoryRejected, upstream.CategoryOf(err))
}

func (s *RegistrySuite) TestInviteReturnsShapeWithOSID() {
	rec, err := s.client.Invite(context.Background(), registry.KindSchoolProfile, registry.SchoolProfile{
		UdiseCode:  "29000000001",
		SchoolName: "GHS Hebbal",
		DID:        "did:ulp:school",
	})
	s.Require().NoError(err)
	s.NotEmpty(rec.OSID)
	s.Equal("29000000001", rec.Field("udiseCode"))
	s.Equal(rec.OSID, rec.Field("osid"))

	stored := s.fake.Records("SchoolDetail")
	s.Require().Len(stored, 1)
	s.Equal(rec.OSID, stored[0]["osid"])
}

func (s *RegistrySuite) TestInviteDuplicateIsConflict() {
	s.fake.Unique("SchoolDetail", "udiseCode")
	s.fake.Seed("SchoolDetail", map[string]any{"udiseCode": "29000000001"})

	_, err := s.client.Invite(context.Background(), registry.KindSchoolProfile, registry.SchoolProfile{UdiseCode: "29000000001"})
	s.True(upstream.IsConflict(err))
}

func (s *RegistrySuite) TestInviteHTTPConflict() {
	s.fake.FailNext("invite", "TeacherV1", http.StatusConflict)
	_, err := s.client.Invite(context.Background(), registry.KindTeacherAccount, registry.TeacherAccount{Username: "t"})
	s.True(upstream.IsConflict(err))
}

func (s *RegistrySuite) TestUpdate() {
	osid := s.fake.Seed("StudentV2", map[string]any{"username": "old"})

	res, err := s.client.Update(context.Background(), registry.KindStudentAccount, osid, map[string]string{"username": "new"})
	s.Require().NoError(err)
	s.True(res.Successful())
	s.Equal("new", s.fake.Records("StudentV2")[0]["username"])
	s.Equal(1, s.fake.CountCalls("update", "StudentV2"))
}

func (s *RegistrySuite) TestInviteMalformedResultIsBadData() {
	s.fake.RespondNext("invite", "SchoolDetail", http.StatusOK,
		`{"params":{"status":"SUCCESSFUL"},"result":{"SchoolDetail":"1-abc"}}`)

	_, err := s.client.Invite(context.Background(), registry.KindSchoolProfile, registry.SchoolProfile{UdiseCode: "29000000001"})
	s.Require().Error(err)
	s.Equal(upstream.CategoryBadData, upstream.CategoryOf(err))
	s.Contains(err.Error(), "decode SchoolDetail invite result")
	s.Contains(err.Error(), "cannot unmarshal")
}

func (s *RegistrySuite) TestUpdateUnsuccessfulStatusIsReturned() {
	osid := s.fake.Seed("StudentV2", map[string]any{"username": "old"})
	s.fake.RespondNext("update", "StudentV2", http.StatusOK,
		`{"params":{"status":"UNSUCCESSFUL","errmsg":"duplicate username"}}`)

	res, err := s.client.Update(context.Background(), registry.KindStudentAccount, osid, map[string]string{"username": "new"})
	s.Require().NoError(err)
	s.False(res.Successful())
	s.Equal("UNSUCCESSFUL", res.Status)
	s.Equal("old", s.fake.Records("StudentV2")[0]["username"])
}

func (s *RegistrySuite) TestUpdateUnknownRecordIsRejected() {
	_, err := s.client.Update(context.Background(), registry.KindStudentAccount, "missing", map[string]string{})
	s.Equal(upstream.CategoryRejected, upstream.CategoryOf(err))
}

func (s *RegistrySuite) TestUpdateRequiresOSID() {
	_, err := s.client.Update(context.Background(), registry.KindStudentAccount, "", map[string]string{})
	s.Equal(upstream.CategoryRejected, upstream.CategoryOf(err))
	s.Zero(s.fake.CountCalls("update", "StudentV2"))
}

func TestUpdateResultSuccessful(t *testing.T) {
	assert.True(t, registry.UpdateResult{Status: "SUCCESSFUL"}.Successful())
	assert.False(t, registry.UpdateResult{Status: "UNSUCCESSFUL"}.Successful())
	assert.False(t, registry.UpdateResult{}.Successful())
}
