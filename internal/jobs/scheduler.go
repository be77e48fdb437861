package jobs

import (
	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
)

// Schedule holds cron specs; an empty spec disables that job.
type Schedule struct {
	Catalog      string `yaml:"catalog"`
	Prices       string `yaml:"prices"`
	Fingerprints string `yaml:"fingerprints"`

	// BackfillLimit caps one scheduled fingerprint run; 0 means DefaultBackfillLimit.
	BackfillLimit int `yaml:"fingerprints_limit"`
}

// Unset reports whether no cron spec is configured at all.
func (s Schedule) Unset() bool {
	return s.Catalog == "" && s.Prices == "" && s.Fingerprints == ""
}

func DefaultSchedule() Schedule {
	return Schedule{
		Catalog:      "0 3 * * *",
		Prices:       "0 */6 * * *",
		Fingerprints: "30 4 * * *",
	}
}

// Register adds every enabled job of s to the scheduler.
func Register(sch *asynq.Scheduler, s Schedule) ([]string, error) {
	entries := []struct{ spec, job string }{
		{s.Catalog, JobCatalog},
		{s.Prices, JobPrices},
		{s.Fingerprints, JobFingerprints},
	}

	var ids []string
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		task, err := NewTask(e.job)
		if e.job == JobFingerprints {
			task, err = NewBackfillTask(s.BackfillLimit)
		}
		if err != nil {
			return ids, err
		}
		id, err := sch.Register(e.spec, task, taskOptions()...)
		if err != nil {
			return ids, errors.Wrapf(err, "register %s %q", e.job, e.spec)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
