package stage

import "time"

// Result summarises a finished campaign for the clear and fail screens.
type Result struct {
	StageID      int
	State        State
	Cause        Cause
	Elapsed      time.Duration
	Kills        int
	Exp          int
	Remaining    int
	Spawned      int
	DefenseRatio float64
}
