package enrollment

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/sync/errgroup"

	"ulp-gateway/internal/audit"
	"ulp-gateway/internal/credential"
	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/registry"
)

const referencePrefix = "ULP_"

// BulkRegister registers each learner of batch for the staff member's
// school. Every item searches before it writes: a learner whose account
// exists is skipped, or resumed when its enrolment detail is missing.
// Item failures never stop the batch.
func (s *Service) BulkRegister(ctx context.Context, token string, batch BulkRegistration) BatchResult {
	sess, f := s.staffSession(ctx, token)
	if f != nil {
		res := BatchResult{Status: f.Status, Failure: f}
		s.finish(ctx, audit.ActionBulkRegister, sess.Username, res)
		return res
	}

	school := batch.School
	school.SchoolUdise = firstNonEmpty(school.SchoolUdise, sess.Record.Field("schoolUdise"))
	school.SchoolName = firstNonEmpty(school.SchoolName, sess.Record.Field("schoolName"))

	items := make([]ItemResult, len(batch.Students))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, entry := range batch.Students {
		g.Go(func() error {
			items[i] = s.registerOne(ctx, i, school, entry)
			s.metrics.ObserveBulkItem("register", items[i].State.outcome())
			return nil
		})
	}
	_ = g.Wait()

	res := tally(items, StatusBulkRegisterSuccess, StatusBulkRegisterError)
	s.logger.InfoContext(ctx, "bulk registration finished",
		"staff", sess.Username,
		"items", len(items),
		"failed", res.Failed,
	)
	s.finish(ctx, audit.ActionBulkRegister, sess.Username, res)
	return res
}

func (s *Service) registerOne(ctx context.Context, index int, school SchoolDetails, entry StudentEntry) ItemResult {
	item := ItemResult{Index: index, Key: entry.StudentID}
	fail := func(step linking.Step, err error) ItemResult {
		item.State = ItemFailed
		item.Failure = s.itemFailure(ctx, "register", index, step, err)
		return item
	}

	entry.StudentName = strings.TrimSpace(entry.StudentName)
	entry.DOB = identity.NormalizeBirthDate(entry.DOB)
	username, err := identity.StudentUsername(entry.StudentName, entry.DOB)
	if err != nil || strings.TrimSpace(entry.StudentID) == "" {
		item.State = ItemFailed
		item.Failure = linking.NewFailure(linking.KindInvalidRequest, linking.StepValidate,
			"student_id, studentName and dob are required")
		return item
	}

	accounts, err := s.search(ctx, linking.StepSearchAccount, registry.KindStudentAccount, registry.Filter{
		registry.FieldStudentName: entry.StudentName,
		registry.FieldDOB:         entry.DOB,
	})
	if err != nil {
		return fail(linking.StepSearchAccount, err)
	}

	var account registry.Record
	switch len(accounts) {
	case 0:
		did, err := call(ctx, s, linking.StepGenerateDID, func(ctx context.Context) (string, error) {
			return s.dids.Generate(ctx, entry.StudentID)
		})
		if err != nil {
			return fail(linking.StepGenerateDID, err)
		}
		account, err = call(ctx, s, linking.StepInviteAccount, func(ctx context.Context) (registry.Record, error) {
			return s.registry.Invite(ctx, registry.KindStudentAccount, registry.StudentAccount{
				StudentID:   entry.StudentID,
				DID:         did,
				ReferenceID: referencePrefix + entry.StudentID,
				AadharToken: entry.AadharToken,
				StudentName: entry.StudentName,
				DOB:         entry.DOB,
				SchoolType:  school.SchoolType,
				Username:    username,
			})
		})
		if err != nil {
			return fail(linking.StepInviteAccount, err)
		}
		item.State = ItemCreated
	case 1:
		account = accounts[0]
		profiles, err := s.search(ctx, linking.StepSearchProfile, registry.KindStudentProfile,
			registry.Filter{registry.FieldStudentID: account.OSID})
		if err != nil {
			return fail(linking.StepSearchProfile, err)
		}
		item.OSID = account.OSID
		if len(profiles) > 0 {
			item.State = ItemSkipped
			return item
		}
		item.State = ItemResumed
	default:
		item.State = ItemFailed
		item.Failure = linking.NewFailure(linking.KindAmbiguous, linking.StepSearchAccount,
			"student name and birth date matched more than one account")
		return item
	}
	item.OSID = account.OSID

	_, err = call(ctx, s, linking.StepInviteProfile, func(ctx context.Context) (registry.Record, error) {
		return s.registry.Invite(ctx, registry.KindStudentProfile, registry.StudentProfile{
			StudentID:    account.OSID,
			Mobile:       identity.NormalizePhone(entry.Mobile),
			GuardianName: entry.GuardianName,
			SchoolUdise:  school.SchoolUdise,
			SchoolName:   school.SchoolName,
			Grade:        school.Grade,
			AcademicYear: school.AcademicYear,
			ClaimStatus:  registry.ClaimApproved,
		})
	})
	if err != nil {
		return fail(linking.StepInviteProfile, err)
	}
	return item
}

// BulkIssue issues one credential per subject of batch. The schema is
// resolved once for the whole batch.
func (s *Service) BulkIssue(ctx context.Context, token string, batch BulkIssuance) BatchResult {
	sess, f := s.staffSession(ctx, token)
	if f != nil {
		res := BatchResult{Status: f.Status, Failure: f}
		s.finish(ctx, audit.ActionBulkIssue, sess.Username, res)
		return res
	}

	issuerDID := firstNonEmpty(batch.Issuer.DID, sess.Record.Field("did"))
	schoolName := firstNonEmpty(batch.Issuer.SchoolName, sess.Record.Field("schoolName"))
	if issuerDID == "" || strings.TrimSpace(batch.Issuer.SchemaID) == "" {
		res := BatchResult{Failure: linking.NewFailure(linking.KindInvalidRequest, linking.StepValidate,
			"issuer did and schema id are required")}
		res.Status = res.Failure.Status
		s.finish(ctx, audit.ActionBulkIssue, sess.Username, res)
		return res
	}

	schema, err := call(ctx, s, linking.StepFetchSchema, func(ctx context.Context) (credential.Schema, error) {
		return s.issuer.Schema(ctx, batch.Issuer.SchemaID)
	})
	if err != nil {
		fail := s.itemFailure(ctx, "issue", 0, linking.StepFetchSchema, err)
		res := BatchResult{Status: fail.Status, Failure: fail}
		s.finish(ctx, audit.ActionBulkIssue, sess.Username, res)
		return res
	}

	items := make([]ItemResult, len(batch.Subjects))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, subject := range batch.Subjects {
		g.Go(func() error {
			items[i] = s.issueOne(ctx, i, issuerDID, schoolName, schema, batch.Common, subject)
			s.metrics.ObserveBulkItem("issue", items[i].State.outcome())
			return nil
		})
	}
	_ = g.Wait()

	res := tally(items, StatusBulkIssueSuccess, StatusBulkIssueError)
	s.logger.InfoContext(ctx, "bulk issuance finished",
		"staff", sess.Username,
		"schema_id", schema.ID,
		"items", len(items),
		"failed", res.Failed,
	)
	s.finish(ctx, audit.ActionBulkIssue, sess.Username, res)
	return res
}

func (s *Service) issueOne(ctx context.Context, index int, issuerDID, schoolName string, schema credential.Schema, common SubjectCommon, subject CredentialSubject) ItemResult {
	item := ItemResult{Index: index, Key: subject.ID}
	if strings.TrimSpace(subject.ID) == "" {
		item.State = ItemFailed
		item.Failure = linking.NewFailure(linking.KindInvalidRequest, linking.StepValidate, "credential subject id is required")
		return item
	}

	_, err := call(ctx, s, linking.StepIssueCredential, func(ctx context.Context) (json.RawMessage, error) {
		return s.issuer.Issue(ctx, credential.IssueRequest{
			IssuerDID: issuerDID,
			SchemaID:  schema.ID,
			Subject: map[string]any{
				"id":           subject.ID,
				"enrolledOn":   subject.EnrolledOn,
				"studentName":  subject.StudentName,
				"guardianName": subject.GuardianName,
				"grade":        common.Grade,
				"schoolName":   schoolName,
				"academicYear": common.AcademicYear,
			},
			IssuanceDate:   subject.IssuanceDate,
			ExpirationDate: subject.ExpirationDate,
		})
	})
	if err != nil {
		item.State = ItemFailed
		item.Failure = s.itemFailure(ctx, "issue", index, linking.StepIssueCredential, err)
		return item
	}
	item.State = ItemIssued
	return item
}

func tally(items []ItemResult, ok, failed string) BatchResult {
	res := BatchResult{Status: ok, Items: items}
	for _, item := range items {
		if item.State == ItemFailed {
			res.Failed++
		}
	}
	if res.Failed > 0 {
		res.Status = failed
	}
	return res
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
