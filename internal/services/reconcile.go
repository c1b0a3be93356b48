package services

import (
	"context"
	"sort"
)

type ReconcileReport struct {
	TasksUnassigned   int64 `json:"tasksUnassigned"`
	UsersRepaired     int   `json:"usersRepaired"`
	OrphanSetsCleared int   `json:"orphanSetsCleared"`
}

// Reconcile rebuilds every pending set from the task table. Pending tasks
// whose assignee no longer exists are unassigned first. Ids that stay in a
// set keep their order; ids that were missing are appended.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	userIDs, err := e.store.ListUserIDs(ctx)
	if err != nil {
		return report, dependencyError(err)
	}
	users := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		users[id] = struct{}{}
	}

	pending, err := e.store.ListPendingTasks(ctx)
	if err != nil {
		return report, dependencyError(err)
	}

	desired := make(map[string][]string)
	orphaned := make(map[string][]string)
	for _, task := range pending {
		if _, ok := users[task.AssignedUser]; ok {
			desired[task.AssignedUser] = append(desired[task.AssignedUser], task.ID)
		} else {
			orphaned[task.AssignedUser] = append(orphaned[task.AssignedUser], task.ID)
		}
	}

	for _, assignee := range sortedKeys(orphaned) {
		n, err := e.store.UnassignTasks(ctx, assignee, orphaned[assignee])
		if err != nil {
			return report, dependencyError(err)
		}
		report.TasksUnassigned += n
	}

	current, err := e.store.ListPendingSets(ctx)
	if err != nil {
		return report, dependencyError(err)
	}

	for _, userID := range userIDs {
		have, want := current[userID], desired[userID]
		if sameMembers(have, want) {
			continue
		}
		if err := e.store.SetPendingTasks(ctx, userID, mergeOrder(have, want)); err != nil {
			return report, dependencyError(err)
		}
		report.UsersRepaired++
	}

	for _, userID := range sortedKeys(current) {
		if _, ok := users[userID]; ok {
			continue
		}
		if err := e.store.SetPendingTasks(ctx, userID, nil); err != nil {
			return report, dependencyError(err)
		}
		report.OrphanSetsCleared++
	}

	if report != (ReconcileReport{}) {
		e.logger.InfoContext(ctx, "pending sets reconciled",
			"tasks_unassigned", report.TasksUnassigned,
			"users_repaired", report.UsersRepaired,
			"orphan_sets_cleared", report.OrphanSetsCleared)
	}
	return report, nil
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// mergeOrder returns want ordered by first appearance in have, followed by
// the ids have did not contain.
func mergeOrder(have, want []string) []string {
	wanted := make(map[string]struct{}, len(want))
	for _, id := range want {
		wanted[id] = struct{}{}
	}

	merged := make([]string, 0, len(want))
	kept := make(map[string]struct{}, len(want))
	for _, id := range have {
		if _, ok := wanted[id]; ok {
			merged = append(merged, id)
			kept[id] = struct{}{}
		}
	}
	for _, id := range want {
		if _, ok := kept[id]; !ok {
			merged = append(merged, id)
		}
	}
	return merged
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
