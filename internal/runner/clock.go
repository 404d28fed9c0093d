package runner

import "time"

// nowFunc is indirected so tests can pin the clock for deterministic
// timestamp assertions.
var nowFunc = time.Now
