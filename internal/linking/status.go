package linking

// Status vocabulary shared with the wallet and portal front ends.
const (
	StatusAuthorizeURL            = "digilocker_authorize_url"
	StatusLoginSuccess            = "digilocker_login_success"
	StatusTokenBadRequest         = "digilocker_token_bad_request"
	StatusInvalidRequest          = "invalid_request"
	StatusClientTokenError        = "keycloak_client_token_error"
	StatusRegisterUserError       = "keycloak_register_error"
	StatusInvalidCredentials      = "keycloak_invalid_credentials"
	StatusUserTokenBadRequest     = "keycloak_user_token_bad_request"
	StatusUserTokenError          = "keycloak_user_token_error"
	StatusSearchError             = "sb_rc_search_error"
	StatusSearchNotFound          = "sb_rc_search_no_found"
	StatusSearchFound             = "sb_rc_search_found"
	StatusSearchAmbiguous         = "sb_rc_search_ambiguous"
	StatusRegisterError           = "sb_rc_register_error"
	StatusRegisterDuplicate       = "sb_rc_register_duplicate"
	StatusUpdateError             = "sb_rc_update_error"
	StatusDIDGenerateError        = "did_generate_error"
	StatusRegistered              = "registered"
	StatusRegisteredLoginPending  = "registered_login_pending"
	StatusCredentialSearchError   = "cred_search_error"
	StatusCredentialSearchMissing = "cred_search_no_found"
	StatusCredentialSuccess       = "cred_success"
	StatusCredentialIssueError    = "cred_issue_error"
)

// Vocabulary lists every status a response may carry.
var Vocabulary = []string{
	StatusAuthorizeURL, StatusLoginSuccess, StatusTokenBadRequest, StatusInvalidRequest,
	StatusClientTokenError, StatusRegisterUserError, StatusInvalidCredentials,
	StatusUserTokenBadRequest, StatusUserTokenError,
	StatusSearchError, StatusSearchNotFound, StatusSearchFound, StatusSearchAmbiguous,
	StatusRegisterError, StatusRegisterDuplicate, StatusUpdateError,
	StatusDIDGenerateError, StatusRegistered, StatusRegisteredLoginPending,
	StatusCredentialSearchError, StatusCredentialSearchMissing, StatusCredentialSuccess, StatusCredentialIssueError,
}

// StatusFor maps a failure to its vocabulary status. It is total: every
// (kind, step) pair, including unknown steps, yields a status.
func StatusFor(kind ErrorKind, step Step) string {
	if kind == KindInvalidRequest {
		return StatusInvalidRequest
	}

	switch step {
	case StepValidate, StepDerive:
		return StatusInvalidRequest
	case StepExchange:
		return StatusTokenBadRequest
	case StepSearchAccount, StepSearchProfile, StepSearchSchool, StepSearchRecord:
		return searchStatus(kind)
	case StepServiceToken:
		return StatusClientTokenError
	case StepCreateUser:
		return StatusRegisterUserError
	case StepGenerateDID, StepGenerateSchoolDID:
		return StatusDIDGenerateError
	case StepInviteAccount, StepInviteProfile, StepInviteSchool:
		if kind == KindAlreadyLinked {
			return StatusRegisterDuplicate
		}
		return StatusRegisterError
	case StepUpdateAccount, StepUpdateProfile:
		return StatusUpdateError
	case StepLogin:
		switch kind {
		case KindRejected, KindUnauthorized:
			return StatusInvalidCredentials
		default:
			return StatusUserTokenError
		}
	case StepIntrospect:
		switch kind {
		case KindUnauthorized, KindTokenExpired, KindRejected:
			return StatusUserTokenBadRequest
		default:
			return StatusUserTokenError
		}
	case StepSearchCredentials:
		if kind == KindNotFound {
			return StatusCredentialSearchMissing
		}
		return StatusCredentialSearchError
	case StepFetchSchema, StepIssueCredential:
		return StatusCredentialIssueError
	}

	switch kind {
	case KindUnauthorized, KindTokenExpired:
		return StatusUserTokenBadRequest
	case KindAlreadyLinked:
		return StatusRegisterDuplicate
	default:
		return searchStatus(kind)
	}
}

func searchStatus(kind ErrorKind) string {
	switch kind {
	case KindNotFound:
		return StatusSearchNotFound
	case KindAmbiguous:
		return StatusSearchAmbiguous
	case KindAlreadyLinked:
		return StatusRegisterDuplicate
	default:
		return StatusSearchError
	}
}

var messages = map[string]string{
	StatusAuthorizeURL:            "Redirect to the identity provider",
	StatusLoginSuccess:            "Login successful",
	StatusTokenBadRequest:         "Identity provider rejected the authorization code",
	StatusInvalidRequest:          "Request is missing required fields",
	StatusClientTokenError:        "Could not obtain a directory service token",
	StatusRegisterUserError:       "Could not create the directory account",
	StatusInvalidCredentials:      "Directory rejected the derived credentials",
	StatusUserTokenBadRequest:     "Session token is invalid or expired",
	StatusUserTokenError:          "Directory is unavailable",
	StatusSearchError:             "Registry search failed",
	StatusSearchNotFound:          "No matching record",
	StatusSearchFound:             "Record found",
	StatusSearchAmbiguous:         "More than one record matches",
	StatusRegisterError:           "Registry rejected the record",
	StatusRegisterDuplicate:       "Record already exists",
	StatusUpdateError:             "Registry update failed",
	StatusDIDGenerateError:        "DID generation failed",
	StatusRegistered:              "Registration complete",
	StatusRegisteredLoginPending:  "Registration complete; sign in again to start a session",
	StatusCredentialSearchError:   "Credential search failed",
	StatusCredentialSearchMissing: "No credentials found",
	StatusCredentialSuccess:       "Credentials retrieved",
	StatusCredentialIssueError:    "Credential issuance failed",
}

// MessageFor returns the human-readable message for a status.
func MessageFor(status string) string {
	if m, ok := messages[status]; ok {
		return m
	}
	return status
}
