package handler

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"ulp-gateway/internal/identity"
	"ulp-gateway/internal/linking"
	dErrors "ulp-gateway/pkg/domain-errors"
)

const maxAuthCodeLength = 512

// LinkRequest is the body of POST /v1/identity/link.
type LinkRequest struct {
	AuthCode string `json:"auth_code"`
	Role     string `json:"role"`

	role identity.Role
}

// Validate trims and checks the request and parses its role.
func (r *LinkRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "request body is required")
	}
	r.AuthCode = strings.TrimSpace(r.AuthCode)
	if err := validation.ValidateStruct(r,
		validation.Field(&r.AuthCode, validation.Required, validation.Length(1, maxAuthCodeLength)),
		validation.Field(&r.Role, validation.Required),
	); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidRequest, err.Error())
	}
	role, err := parseRole(r.Role)
	if err != nil {
		return err
	}
	r.role = role
	return nil
}

// RegisterRequest is the body of POST /v1/identity/register. Claims are the
// ones returned by an unlinked LinkExternalIdentity.
type RegisterRequest struct {
	Role    string                      `json:"role"`
	Claims  identity.Claims             `json:"claims"`
	Payload linking.RegistrationPayload `json:"payload"`

	role identity.Role
}

// Validate checks the role and the claim subject. Payload shapes are
// validated by the service against the parsed role.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "request body is required")
	}
	r.Claims.SubjectID = strings.TrimSpace(r.Claims.SubjectID)
	r.Claims.DisplayName = strings.TrimSpace(r.Claims.DisplayName)
	if err := validation.Validate(r.Role, validation.Required); err != nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "role: "+err.Error())
	}
	if err := validation.Validate(r.Claims.SubjectID, validation.Required); err != nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "claims.subject_id: "+err.Error())
	}
	role, err := parseRole(r.Role)
	if err != nil {
		return err
	}
	r.role = role
	return nil
}

// AuthorizeResponse is the result of GET /v1/identity/authorize.
type AuthorizeResponse struct {
	URL string `json:"url"`
}

func parseRole(s string) (identity.Role, error) {
	role, err := identity.ParseRole(s)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidRequest, err.Error())
	}
	return role, nil
}
