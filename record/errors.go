// CLAUDE:SUMMARY Sentinel errors for the record store: malformed record, empty snapshot.
package record

import "errors"

// ErrMalformedRecord is returned when a country record fails schema
// validation: required scalars missing, or fields is not a sequence of
// objects carrying at least name and raw_value.
var ErrMalformedRecord = errors.New("record: malformed country record")

// ErrNoRecords is returned when a snapshot directory contains no
// country files at all.
var ErrNoRecords = errors.New("record: no country records found")
