package core

// # Error Codes Reference
//
// User-facing errors carry a code that staff can quote to support. Codes are
// grouped by category:
//
//	STORE001 - Record not found              ("record not found")
//	STORE002 - Duplicate record              ("duplicate key", "unique constraint")
//	STORE003 - Store unreachable             ("connection refused", "connection reset")
//	STORE004 - Store busy or closed          ("database is locked", "pebble: closed")
//	STORE005 - Field cannot be searched      ("field is not indexed")
//
//	VAL001   - Required value missing        ("is required")
//	VAL002   - Value not in allowed list     ("invalid party type", "invalid pricing tier")
//	VAL003   - Unknown import type           ("invalid kind")
//	VAL004   - Malformed request body        ("invalid request body")
//	VAL005   - Invalid number                ("invalid number")
//
//	FILE001  - File too large                ("file too large")
//	FILE002  - Unsupported file type         ("unsupported file type")
//	FILE003  - Unreadable CSV                ("invalid csv", "encoding error")
//	FILE004  - No file                       ("no file provided")
//	FILE005  - No data rows                  ("empty file")
//	FILE006  - Unreadable workbook           ("invalid spreadsheet")
//
//	IMP001   - Import slots busy             ("too many concurrent imports")
//	IMP002   - Import cancelled              ("import cancelled", "context canceled")
//	IMP003   - Import timed out              ("context deadline exceeded", "timeout")
//
//	INV001   - Invoice without items         ("invoice has no items")
//	INV002   - Invoice without party         ("invoice party")
//
//	TBL001   - Unknown table                 ("unknown table")
//	RATE001  - Rate limited                  ("rate limit")
//	ERR000   - Anything else; check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgNotFound     = UserMessage{"Record not found", "Refresh the list; it may have been deleted", "STORE001"}
	msgDuplicate    = UserMessage{"A record with these values already exists", "Remove duplicate rows and try again", "STORE002"}
	msgUnreachable  = UserMessage{"Unable to reach the data store", "Please try again in a few moments", "STORE003"}
	msgStoreBusy    = UserMessage{"The data store is busy or shutting down", "Please try again", "STORE004"}
	msgNotIndexed   = UserMessage{"That field cannot be searched", "Search by one of the listed fields", "STORE005"}
	msgRequired     = UserMessage{"A required value is missing", "Fill in all required fields", "VAL001"}
	msgEnum         = UserMessage{"Value is not in the allowed list", "Check the allowed values for this field", "VAL002"}
	msgKind         = UserMessage{"Unknown import type", "Import as PRODUCT or PARTY", "VAL003"}
	msgBody         = UserMessage{"The request could not be read", "Send a valid JSON body", "VAL004"}
	msgNumber       = UserMessage{"Invalid number format detected", "Use plain digits with an optional decimal point", "VAL005"}
	msgTooLarge     = UserMessage{"File exceeds the maximum upload size", "Split the sheet into smaller files", "FILE001"}
	msgUnsupported  = UserMessage{"Unsupported file type", "Upload an .xlsx or .csv file", "FILE002"}
	msgBadCSV       = UserMessage{"The CSV file could not be read", "Save the sheet as CSV (UTF-8) and try again", "FILE003"}
	msgNoFile       = UserMessage{"No file was selected", "Choose a spreadsheet to import", "FILE004"}
	msgEmptyFile    = UserMessage{"The file has no data rows", "Add a header row followed by data rows", "FILE005"}
	msgBadWorkbook  = UserMessage{"The workbook could not be opened", "Re-save the file from Excel as .xlsx", "FILE006"}
	msgBusy         = UserMessage{"Other imports are still running", "Please wait a moment and try again", "IMP001"}
	msgCancelled    = UserMessage{"The request was cancelled", "Please try again", "IMP002"}
	msgTimeout      = UserMessage{"The operation timed out", "Try a smaller file or try again later", "IMP003"}
	msgNoItems      = UserMessage{"Invoice has no items", "Add at least one product line", "INV001"}
	msgNoParty      = UserMessage{"Invoice has no party", "Select a party before saving", "INV002"}
	msgUnknownTable = UserMessage{"Unknown table", "Use products, parties or invoices", "TBL001"}
	msgRateLimited  = UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}
	defaultMessage  = UserMessage{"An unexpected error occurred", "Please try again or contact support", "ERR000"}
)

var errorPatterns = []errorPattern{
	// Store
	{"record not found", msgNotFound},
	{"duplicate key", msgDuplicate},
	{"unique constraint", msgDuplicate},
	{"connection refused", msgUnreachable},
	{"connection reset", msgUnreachable},
	{"database is locked", msgStoreBusy},
	{"pebble: closed", msgStoreBusy},
	{"field is not indexed", msgNotIndexed},

	// Validation
	{"is required", msgRequired},
	{"invalid party type", msgEnum},
	{"invalid pricing tier", msgEnum},
	{"invalid kind", msgKind},
	{"invalid request body", msgBody},
	{"invalid number", msgNumber},

	// Files
	{"file too large", msgTooLarge},
	{"unsupported file type", msgUnsupported},
	{"invalid csv", msgBadCSV},
	{"encoding error", msgBadCSV},
	{"no file provided", msgNoFile},
	{"empty file", msgEmptyFile},
	{"invalid spreadsheet", msgBadWorkbook},

	// Imports
	{"too many concurrent imports", msgBusy},
	{"import cancelled", msgCancelled},
	{"context canceled", msgCancelled},
	{"context deadline exceeded", msgTimeout},
	{"timeout", msgTimeout},

	// Invoices
	{"invoice has no items", msgNoItems},
	{"invoice party", msgNoParty},

	{"unknown table", msgUnknownTable},
	{"rate limit", msgRateLimited},
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
//
//	msg := MapError(fmt.Errorf("get party 7: %w", ErrNotFound))
//	// msg.Code == "STORE001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown for it.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
