package source

import "context"

// Record is one raw record returned by the remote service. Record shapes vary
// by record type, so the payload stays schemaless.
type Record map[string]any

// Page is one bounded batch of records plus a continuation flag.
type Page struct {
	Records []Record
	HasMore bool
}

// Client is the contract for the third-party record source. Implementations
// validate the token on every call and may fail with the classified errors
// below.
type Client interface {
	Authenticate(ctx context.Context, token string) error
	FetchPage(ctx context.Context, token, recordType string, page, perPage int) (*Page, error)
}

const (
	RecordTypeContacts = "contacts"
	RecordTypeUsers    = "users"
)

// ValidRecordType reports whether the given record type can be extracted.
func ValidRecordType(recordType string) bool {
	return recordType == RecordTypeContacts || recordType == RecordTypeUsers
}
