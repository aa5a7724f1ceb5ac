package data

import "time"

// TimeProvider supplies the clock used for created_at/updated_at
// stamps. Production code uses time.Now; tests pin it to a fixed
// instant.
type TimeProvider func() time.Time
