package linking

import (
	"context"
	"strings"

	"ulp-gateway/internal/audit"
	"ulp-gateway/internal/directory"
	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/registry"
)

// ResolveSession validates a directory access token and returns the single
// registry account it belongs to.
func (s *Service) ResolveSession(ctx context.Context, token string) SessionResult {
	res := s.resolveSession(ctx, token)
	s.record(ctx, "session", audit.ActionResolveSession, res.Role, res.Username, string(res.State), res.Status, nil)
	return res
}

func (s *Service) resolveSession(ctx context.Context, token string) SessionResult {
	info, f := s.introspect(ctx, token)
	if f != nil {
		return lookupFailed(f)
	}

	username := strings.ToLower(info.PreferredUsername)
	role := identity.RoleForUsername(username)
	kind := registry.KindStudentAccount
	if role == identity.RoleStaff {
		kind = registry.KindTeacherAccount
	}

	res := s.lookup(ctx, StepSearchAccount, kind, registry.Filter{registry.FieldUsername: username})
	res.Username = username
	res.Role = role
	if res.State != LookupFound || role != identity.RoleStudent {
		return res
	}
	if res.Record.Field("school_type") != registry.SchoolTypePrivate {
		return res
	}

	profiles, err := s.search(ctx, StepSearchProfile, registry.KindStudentProfile,
		registry.Filter{registry.FieldStudentID: res.Record.OSID})
	if err != nil {
		return withIdentity(lookupFailed(s.failure(ctx, StepSearchProfile, err)), username, role)
	}
	switch len(profiles) {
	case 0:
	case 1:
		res.Detail = &profiles[0]
	default:
		return withIdentity(lookupFailed(s.ambiguous(ctx, StepSearchProfile, registry.KindStudentProfile, len(profiles))), username, role)
	}
	return res
}

// ResolveRecord returns the single record of kind whose field equals value,
// on behalf of a valid session.
func (s *Service) ResolveRecord(ctx context.Context, token string, kind registry.Kind, field, value string) LookupResult {
	info, f := s.introspect(ctx, token)
	if f != nil {
		return lookupFailed(f)
	}
	if strings.TrimSpace(value) == "" {
		return lookupFailed(newFailure(KindInvalidRequest, StepValidate, field+" is required"))
	}
	res := s.lookup(ctx, StepSearchRecord, kind, registry.Filter{field: value})
	res.Username = info.PreferredUsername
	res.Role = identity.RoleForUsername(info.PreferredUsername)
	return res
}

// introspect validates token. An absent or refused token is Unauthorized;
// an answer without a subject is TokenExpired.
func (s *Service) introspect(ctx context.Context, token string) (directory.UserInfo, *Failure) {
	if strings.TrimSpace(token) == "" {
		return directory.UserInfo{}, newFailure(KindUnauthorized, StepIntrospect, "bearer token is required")
	}
	info, err := call(ctx, s, StepIntrospect, func(ctx context.Context) (directory.UserInfo, error) {
		return s.directory.Introspect(ctx, token)
	})
	if err != nil {
		f := s.failure(ctx, StepIntrospect, err)
		if f.Kind == KindRejected {
			f = newFailure(KindUnauthorized, StepIntrospect, f.Message)
		}
		return directory.UserInfo{}, f
	}
	if info.Subject == "" || info.PreferredUsername == "" {
		return directory.UserInfo{}, newFailure(KindTokenExpired, StepIntrospect, "token carries no subject")
	}
	return info, nil
}

// lookup searches kind and applies the zero / one / many discipline.
func (s *Service) lookup(ctx context.Context, step Step, kind registry.Kind, filter registry.Filter) LookupResult {
	records, err := s.search(ctx, step, kind, filter)
	if err != nil {
		return lookupFailed(s.failure(ctx, step, err))
	}
	switch len(records) {
	case 0:
		return LookupResult{State: LookupNotFound, Status: StatusSearchNotFound}
	case 1:
		return LookupResult{State: LookupFound, Status: StatusSearchFound, Record: &records[0]}
	default:
		return lookupFailed(s.ambiguous(ctx, step, kind, len(records)))
	}
}

func withIdentity(res LookupResult, username string, role identity.Role) LookupResult {
	res.Username = username
	res.Role = role
	return res
}
