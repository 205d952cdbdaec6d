// internal/session/summary.go
package session

import (
	"fmt"
	"strings"

	"jobalert-workers/internal/models"
)

// maxOtherCompanies caps the company list in a batched title so the
// notification text stays short regardless of batch size.
const maxOtherCompanies = 3

// Summarize renders the notification title line and badge count for a
// batch of matched jobs. The title of the first job is always used
// verbatim; batches grow a suffix instead of listing every job.
func Summarize(jobs []models.JobPosting) (string, int) {
	n := len(jobs)
	switch n {
	case 0:
		return "", 0
	case 1:
		return jobs[0].Title, 1
	case 2:
		return jobs[0].Title + " + 1 more position", 2
	}

	others := otherCompanies(jobs)
	if len(others) == 0 {
		// Every job is at the primary job's company.
		return fmt.Sprintf("%s + %d similar positions", jobs[0].Title, n-1), n
	}
	return fmt.Sprintf("%s + %d more at %s...", jobs[0].Title, n-1, strings.Join(others, ", ")), n
}

// otherCompanies lists companies other than the primary job's, deduped
// in job order and capped at maxOtherCompanies.
func otherCompanies(jobs []models.JobPosting) []string {
	primary := jobs[0].Company
	seen := map[string]bool{primary: true}
	var out []string
	for _, job := range jobs[1:] {
		if seen[job.Company] {
			continue
		}
		seen[job.Company] = true
		out = append(out, job.Company)
		if len(out) == maxOtherCompanies {
			break
		}
	}
	return out
}
