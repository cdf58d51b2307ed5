package registry

import (
	"encoding/json"
	"fmt"
)

// Kind names a registry entity schema.
type Kind string

const (
	KindStudentAccount Kind = "StudentV2"
	KindStudentProfile Kind = "StudentDetailV2"
	KindTeacherAccount Kind = "TeacherV1"
	KindSchoolProfile  Kind = "SchoolDetail"
)

func (k Kind) String() string {
	return string(k)
}

// Filter is an equality filter: every field must equal its value.
type Filter map[string]string

func (f Filter) body() map[string]any {
	filters := make(map[string]any, len(f))
	for field, value := range f {
		filters[field] = map[string]string{"eq": value}
	}
	return map[string]any{"filters": filters}
}

// Record is one registry document. The registry owns it; callers never keep
// a copy beyond the request that read it.
type Record struct {
	OSID string
	Raw  json.RawMessage
}

// Decode unmarshals the document into v.
func (r Record) Decode(v any) error {
	if len(r.Raw) == 0 {
		return fmt.Errorf("empty registry record")
	}
	return json.Unmarshal(r.Raw, v)
}

// Field returns a top-level string field, or "" when absent or not a string.
func (r Record) Field(name string) string {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(r.Raw, &doc); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(doc[name], &s); err != nil {
		return ""
	}
	return s
}

// MarshalJSON renders the document as the registry returned it.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

// UnmarshalJSON keeps the document verbatim and lifts its osid.
func (r *Record) UnmarshalJSON(data []byte) error {
	r.Raw = append(json.RawMessage(nil), data...)
	r.OSID = r.Field(FieldOSID)
	return nil
}

const statusSuccessful = "SUCCESSFUL"

// UpdateResult is the registry's confirmation of an update.
type UpdateResult struct {
	Status string `json:"status"`
}

// Successful reports whether the registry applied the update.
func (u UpdateResult) Successful() bool {
	return u.Status == statusSuccessful
}

type envelope struct {
	Params struct {
		Status string `json:"status"`
		ErrMsg string `json:"errmsg"`
	} `json:"params"`
	Result map[string]json.RawMessage `json:"result"`
}
