package linking

import (
	"context"
	"strings"

	"ulp-gateway/internal/audit"
	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/registry"
)

// accountKey returns the account kind of role and the filter that finds it
// by provider subject id.
func accountKey(role identity.Role, subjectID string) (registry.Kind, registry.Filter) {
	if role == identity.RoleStaff {
		return registry.KindTeacherAccount, registry.Filter{registry.FieldMeripehchanLoginID: subjectID}
	}
	return registry.KindStudentAccount, registry.Filter{registry.FieldMeripehchanID: subjectID}
}

// AuthorizationURL returns the provider URL that starts sign-in for role.
// The provider echoes state back with the authorization code; it defaults
// to the role name.
func (s *Service) AuthorizationURL(role identity.Role, state string) (string, *Failure) {
	if !role.Valid() {
		return "", newFailure(KindInvalidRequest, StepValidate, "a supported role is required")
	}
	if strings.TrimSpace(state) == "" {
		state = role.String()
	}
	u, err := s.idp.AuthCodeURL(role, state)
	if err != nil {
		s.logger.Warn("no provider application for role", "role", role.String(), "error", err.Error())
		return "", newFailure(KindInvalidRequest, StepValidate, err.Error())
	}
	return u, nil
}

// LinkExternalIdentity exchanges an authorization code and decides whether
// the person behind it already has a provisioned local account.
func (s *Service) LinkExternalIdentity(ctx context.Context, authCode string, role identity.Role) LinkResult {
	res, subject := s.link(ctx, authCode, role)
	detail := map[string]string{}
	if res.Failure != nil {
		detail["step"] = string(res.Failure.Step)
		detail["kind"] = string(res.Failure.Kind)
	}
	s.record(ctx, "link", audit.ActionLink, role, subject, string(res.State), res.Status, detail)
	return res
}

func (s *Service) link(ctx context.Context, authCode string, role identity.Role) (LinkResult, string) {
	if strings.TrimSpace(authCode) == "" || !role.Valid() {
		return linkFailed(role, newFailure(KindInvalidRequest, StepValidate, "auth code and a supported role are required")), ""
	}

	claims, err := call(ctx, s, StepExchange, func(ctx context.Context) (identity.Claims, error) {
		return s.idp.Exchange(ctx, role, authCode)
	})
	if err != nil {
		return linkFailed(role, s.failure(ctx, StepExchange, err)), ""
	}

	ident, err := s.deriver.Derive(role, claims)
	if err != nil {
		return linkFailed(role, newFailure(KindInvalidRequest, StepDerive, err.Error())), claims.SubjectID
	}

	kind, filter := accountKey(role, claims.SubjectID)
	accounts, err := s.search(ctx, StepSearchAccount, kind, filter)
	if err != nil {
		return linkFailed(role, s.failure(ctx, StepSearchAccount, err)), claims.SubjectID
	}
	switch {
	case len(accounts) == 0:
		s.logger.InfoContext(ctx, "no linked account for subject",
			"role", role.String(),
			"username", ident.Username,
		)
		return linkUnlinked(role, claims, ident.Username), claims.SubjectID
	case len(accounts) > 1:
		return linkFailed(role, s.ambiguous(ctx, StepSearchAccount, kind, len(accounts))), claims.SubjectID
	}
	account := accounts[0]

	token, err := call(ctx, s, StepLogin, func(ctx context.Context) (string, error) {
		return s.directory.Login(ctx, ident.Username, ident.Password)
	})
	if err != nil {
		if kindOf(err) == KindRejected {
			// Registry record without a directory account: registration resumes it.
			s.logger.InfoContext(ctx, "registry record found but directory login rejected",
				"role", role.String(),
				"username", ident.Username,
				"osid", account.OSID,
			)
			return linkUnlinked(role, claims, ident.Username), claims.SubjectID
		}
		return linkFailed(role, s.failure(ctx, StepLogin, err)), claims.SubjectID
	}

	if role != identity.RoleStudent || account.Field("school_type") != registry.SchoolTypePrivate {
		return linkResolved(role, token, account, nil), claims.SubjectID
	}

	profiles, err := s.search(ctx, StepSearchProfile, registry.KindStudentProfile,
		registry.Filter{registry.FieldStudentID: account.OSID})
	if err != nil {
		return linkFailed(role, s.failure(ctx, StepSearchProfile, err)), claims.SubjectID
	}
	switch len(profiles) {
	case 0:
		return linkUnlinked(role, claims, ident.Username), claims.SubjectID
	case 1:
		return linkResolved(role, token, account, &profiles[0]), claims.SubjectID
	default:
		return linkFailed(role, s.ambiguous(ctx, StepSearchProfile, registry.KindStudentProfile, len(profiles))), claims.SubjectID
	}
}
