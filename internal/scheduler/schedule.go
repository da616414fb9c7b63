package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser matches the teacher's internal/cron/schedule.go configuration:
// optional seconds field, standard minute/hour/dom/month/dow, plus the
// "@every"/"@daily"-style descriptors.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// nextRun computes the next fire time for job from "from". A CronExpr, if
// set, takes precedence over PeriodMS.
func nextRun(job Job, from time.Time) time.Time {
	if job.CronExpr != "" {
		sched, err := cronParser.Parse(job.CronExpr)
		if err != nil {
			// An invalid expression never fires again rather than
			// panicking the scheduler loop; callers validate expressions
			// at AddJob time in practice.
			return time.Time{}
		}
		return sched.Next(from)
	}
	if job.PeriodMS <= 0 {
		return time.Time{}
	}
	return from.Add(time.Duration(job.PeriodMS) * time.Millisecond)
}
