package service

import (
	"sort"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
)

// noEmailSentinel marks rows without an email on file.
const noEmailSentinel = "0"

// Hierarchy indexes the manager -> direct reports relation of a dataset.
type Hierarchy struct {
	reports map[string][]string
}

// NewHierarchy builds the reporting graph. Emails are compared lower-cased
// and trimmed; rows whose EMAIL_ADDRESS is "0" are skipped.
func NewHierarchy(records []models.EvaluationRecord) *Hierarchy {
	h := &Hierarchy{reports: make(map[string][]string)}
	seen := make(map[[2]string]struct{})
	for _, rec := range records {
		email := models.NormalizeEmail(rec.EmailAddress)
		manager := models.NormalizeEmail(rec.DirectManagerEmail)
		if email == "" || email == noEmailSentinel || manager == "" {
			continue
		}
		edge := [2]string{manager, email}
		if _, ok := seen[edge]; ok {
			continue
		}
		seen[edge] = struct{}{}
		h.reports[manager] = append(h.reports[manager], email)
	}
	return h
}

// DirectReports returns the emails reporting straight to manager.
func (h *Hierarchy) DirectReports(manager string) []string {
	direct := h.reports[models.NormalizeEmail(manager)]
	out := make([]string, len(direct))
	copy(out, direct)
	return out
}

// AllReports returns every direct and indirect report of manager, each
// once, excluding the manager. Nodes are marked visited before expansion so
// cycles terminate.
func (h *Hierarchy) AllReports(manager string) map[string]struct{} {
	root := models.NormalizeEmail(manager)
	visited := map[string]struct{}{root: {}}
	queue := []string{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, report := range h.reports[current] {
			if _, ok := visited[report]; ok {
				continue
			}
			visited[report] = struct{}{}
			queue = append(queue, report)
		}
	}
	delete(visited, root)
	return visited
}

// SortedReports is AllReports as a sorted slice.
func (h *Hierarchy) SortedReports(manager string) []string {
	all := h.AllReports(manager)
	out := make([]string, 0, len(all))
	for email := range all {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}
