package scheduler

import (
	"errors"

	"github.com/robfig/cron/v3"
)

// cronSchedule is the computed-next-occurrence contract the loop depends
// on; aliased so callers outside this file never import cron/v3 directly.
type cronSchedule = cron.Schedule

// errCronInvalid signals evaluateCron could not parse the live cron
// expression; the caller already logged and slept, so Run just loops.
var errCronInvalid = errors.New("cron expression invalid")

// sixFieldParser requires a leading seconds field; fiveFieldParser
// is the conventional cron(5) layout. parseCron tries 5-field first, then
// 6-field, per spec §4.5.
var (
	fiveFieldParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sixFieldParser  = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

// parseCron parses expr as a 5-field expression, falling back to 6-field
// (leading seconds) on failure.
func parseCron(expr string) (cron.Schedule, error) {
	if sched, err := fiveFieldParser.Parse(expr); err == nil {
		return sched, nil
	}
	return sixFieldParser.Parse(expr)
}
