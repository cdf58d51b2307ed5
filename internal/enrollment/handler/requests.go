package handler

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"

	"ulp-gateway/internal/enrollment"
	dErrors "ulp-gateway/pkg/domain-errors"
)

// maxBatchItems bounds the learners or subjects of one bulk request.
const maxBatchItems = 500

// BulkRegisterRequest is the body of POST /v1/roster/students/bulk.
type BulkRegisterRequest struct {
	enrollment.BulkRegistration
}

func (r *BulkRegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "request body is required")
	}
	return validateBatch("studentDetails", len(r.Students), validation.Errors{
		"schoolDetails.grade":         validation.Validate(r.School.Grade, validation.Required),
		"schoolDetails.academic-year": validation.Validate(r.School.AcademicYear, validation.Required),
	})
}

// BulkIssueRequest is the body of POST /v1/roster/credentials/bulk.
type BulkIssueRequest struct {
	enrollment.BulkIssuance
}

func (r *BulkIssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidRequest, "request body is required")
	}
	return validateBatch("credentialSubject", len(r.Subjects), validation.Errors{
		"issuerDetail.schemaId": validation.Validate(r.Issuer.SchemaID, validation.Required),
	})
}

func validateBatch(field string, n int, fields validation.Errors) error {
	if n == 0 {
		return dErrors.New(dErrors.CodeInvalidRequest, field+" must not be empty")
	}
	if n > maxBatchItems {
		return dErrors.New(dErrors.CodeInvalidRequest, fmt.Sprintf("%s accepts at most %d items", field, maxBatchItems))
	}
	if err := fields.Filter(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidRequest, err.Error())
	}
	return nil
}
