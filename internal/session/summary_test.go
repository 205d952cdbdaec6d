// internal/session/summary_test.go
package session

import (
	"testing"

	"jobalert-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func job(title, company string) models.JobPosting {
	return models.JobPosting{Title: title, Company: company}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name      string
		jobs      []models.JobPosting
		wantTitle string
		wantBadge int
	}{
		{
			name:      "single job uses title verbatim",
			jobs:      []models.JobPosting{job("iOS Developer", "Acme")},
			wantTitle: "iOS Developer",
			wantBadge: 1,
		},
		{
			name: "two jobs same company",
			jobs: []models.JobPosting{
				job("iOS Developer", "Acme"),
				job("Senior iOS Developer", "Acme"),
			},
			wantTitle: "iOS Developer + 1 more position",
			wantBadge: 2,
		},
		{
			name: "two jobs different companies still one-more-position",
			jobs: []models.JobPosting{
				job("iOS Developer", "Acme"),
				job("Mobile Engineer", "Globex"),
			},
			wantTitle: "iOS Developer + 1 more position",
			wantBadge: 2,
		},
		{
			name: "four jobs across companies",
			jobs: []models.JobPosting{
				job("iOS Developer", "Acme"),
				job("Mobile Engineer", "Globex"),
				job("Swift Developer", "Initech"),
				job("App Developer", "Acme"),
			},
			wantTitle: "iOS Developer + 3 more at Globex, Initech...",
			wantBadge: 4,
		},
		{
			name: "three jobs single company",
			jobs: []models.JobPosting{
				job("iOS Developer", "Acme"),
				job("Senior iOS Developer", "Acme"),
				job("Lead iOS Developer", "Acme"),
			},
			wantTitle: "iOS Developer + 2 similar positions",
			wantBadge: 3,
		},
		{
			name: "company list capped at three names",
			jobs: []models.JobPosting{
				job("iOS Developer", "Acme"),
				job("A", "Globex"),
				job("B", "Initech"),
				job("C", "Umbrella"),
				job("D", "Hooli"),
			},
			wantTitle: "iOS Developer + 4 more at Globex, Initech, Umbrella...",
			wantBadge: 5,
		},
		{
			name: "repeat companies are listed once",
			jobs: []models.JobPosting{
				job("iOS Developer", "Acme"),
				job("A", "Globex"),
				job("B", "Globex"),
				job("C", "Initech"),
			},
			wantTitle: "iOS Developer + 3 more at Globex, Initech...",
			wantBadge: 4,
		},
		{
			name:      "empty batch",
			jobs:      nil,
			wantTitle: "",
			wantBadge: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, badge := Summarize(tt.jobs)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBadge, badge)
		})
	}
}
