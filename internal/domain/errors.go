package domain

import "errors"

// ErrDuplicateJobNumber is returned when inserting a job whose number
// is already taken.
var ErrDuplicateJobNumber = errors.New("job number already exists")
