package optimizer

import (
	"slices"
	"time"

	"ContentFactory/internal/domain"
)

// collisionOffsets are tried in order when the chosen minute is taken.
var collisionOffsets = []time.Duration{
	30 * time.Minute, -30 * time.Minute,
	60 * time.Minute, -60 * time.Minute,
	90 * time.Minute, -90 * time.Minute,
	120 * time.Minute, -120 * time.Minute,
	180 * time.Minute, -180 * time.Minute,
}

const (
	shiftPenalty  = 0.95
	backupPenalty = 0.9
	randomPenalty = 0.8
	randomTries   = 32
)

// resolveCollision moves the plan off minutes already held by the platform,
// then reserves the final minute. The second result is the index of the
// backup that became the scheduled time, or -1. A chosen backup is removed
// from BackupTimes. Callers must hold o.mu.
func (o *Optimizer) resolveCollision(plan domain.PublicationPlan, now time.Time) (domain.PublicationPlan, int) {
	used := o.reservations(plan.Platform, now)
	at := plan.ScheduledTime.Truncate(time.Minute)
	free := func(t time.Time) bool {
		_, taken := used[t.Unix()]
		return !taken && t.After(now)
	}

	defer func() {
		used[plan.ScheduledTime.Unix()] = struct{}{}
	}()

	if free(at) {
		plan.ScheduledTime = at
		return plan, -1
	}

	for _, off := range collisionOffsets {
		if cand := at.Add(off); free(cand) {
			o.logger.Debug("slot collision shifted", "platform", plan.Platform, "from", at, "to", cand)
			plan.ScheduledTime = cand
			plan.ConfidenceScore *= shiftPenalty
			return plan, -1
		}
	}

	for i, backup := range plan.BackupTimes {
		if cand := backup.Truncate(time.Minute); free(cand) {
			o.logger.Debug("slot collision moved to backup", "platform", plan.Platform, "to", cand)
			plan.ScheduledTime = cand
			plan.ConfidenceScore *= backupPenalty
			plan.BackupTimes = slices.Delete(slices.Clone(plan.BackupTimes), i, i+1)
			return plan, i
		}
	}

	plan.ConfidenceScore *= randomPenalty
	for range randomTries {
		cand := at.Add(time.Duration(60+o.rng.IntN(241)) * time.Minute)
		if free(cand) {
			plan.ScheduledTime = cand
			return plan, -1
		}
	}
	cand := at.Add(time.Hour)
	for !free(cand) {
		cand = cand.Add(time.Minute)
	}
	plan.ScheduledTime = cand
	return plan, -1
}

// reservations returns the platform's held minutes, dropping stale ones.
func (o *Optimizer) reservations(platform string, now time.Time) map[int64]struct{} {
	used, ok := o.reserved[platform]
	if !ok {
		used = map[int64]struct{}{}
		o.reserved[platform] = used
	}
	cutoff := now.Add(-reservationKeep).Unix()
	for ts := range used {
		if ts < cutoff {
			delete(used, ts)
		}
	}
	return used
}

// Reserved reports whether a platform already holds the given minute.
func (o *Optimizer) Reserved(platform string, at time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.reserved[platform][at.Truncate(time.Minute).Unix()]
	return ok
}
