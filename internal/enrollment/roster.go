package enrollment

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"ulp-gateway/internal/linking"
	"ulp-gateway/internal/registry"
)

// ListStudents returns the approved learners of the staff member's school
// for grade and academic year, each with its account record.
func (s *Service) ListStudents(ctx context.Context, token, grade, academicYear string) ClassList {
	grade = strings.TrimSpace(grade)
	academicYear = strings.TrimSpace(academicYear)
	if grade == "" || academicYear == "" {
		return classFailed(linking.NewFailure(linking.KindInvalidRequest, linking.StepValidate, "grade and academic_year are required"))
	}

	sess, f := s.staffSession(ctx, token)
	if f != nil {
		return classFailed(f)
	}
	udise := sess.Record.Field("schoolUdise")
	if udise == "" {
		return classFailed(linking.NewFailure(linking.KindNotFound, linking.StepSearchAccount, "staff account has no school"))
	}

	profiles, err := s.search(ctx, linking.StepSearchProfile, registry.KindStudentProfile, registry.Filter{
		registry.FieldSchoolUdise:  udise,
		registry.FieldGrade:        grade,
		registry.FieldAcademicYear: academicYear,
		registry.FieldClaimStatus:  registry.ClaimApproved,
	})
	if err != nil {
		return classFailed(s.itemFailure(ctx, "list", 0, linking.StepSearchProfile, err))
	}
	if len(profiles) == 0 {
		return ClassList{State: linking.LookupNotFound, Status: linking.StatusSearchNotFound}
	}

	accounts := make([]*registry.Record, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, profile := range profiles {
		g.Go(func() error {
			records, err := s.search(gctx, linking.StepSearchAccount, registry.KindStudentAccount,
				registry.Filter{registry.FieldOSID: profile.Field(registry.FieldStudentID)})
			if err != nil {
				return err
			}
			if len(records) == 1 {
				accounts[i] = &records[0]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return classFailed(s.itemFailure(ctx, "list", 0, linking.StepSearchAccount, err))
	}

	students := make([]RosterEntry, 0, len(profiles))
	for i, account := range accounts {
		if account == nil {
			s.logger.WarnContext(ctx, "enrolment detail without a learner account",
				"detail_osid", profiles[i].OSID,
			)
			continue
		}
		students = append(students, RosterEntry{Student: *account, Detail: profiles[i]})
	}
	if len(students) == 0 {
		return ClassList{State: linking.LookupNotFound, Status: linking.StatusSearchNotFound}
	}
	return ClassList{State: linking.LookupFound, Status: linking.StatusSearchFound, Students: students}
}

func classFailed(f *linking.Failure) ClassList {
	state := linking.LookupFailed
	switch f.Kind {
	case linking.KindUnauthorized, linking.KindTokenExpired:
		state = linking.LookupUnauthorized
	case linking.KindNotFound:
		state = linking.LookupNotFound
	case linking.KindAmbiguous:
		state = linking.LookupAmbiguous
	}
	return ClassList{State: state, Status: f.Status, Failure: f}
}
