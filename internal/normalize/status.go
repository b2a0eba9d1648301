// Package normalize converts provider-specific values into canonical forms:
// publication statuses, tag slugs, and scraped text fragments.
package normalize

import (
	"strings"

	"github.com/yomihub/yomihub-server/internal/domain"
)

// Status maps a provider's free-form status string onto the canonical enum.
// Matching is substring-based because providers disagree on exact wording
// ("Ongoing", "releasing", "Currently Publishing", ...).
func Status(raw string) domain.Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return domain.StatusUnknown
	case strings.Contains(s, "ongoing"), strings.Contains(s, "releasing"), strings.Contains(s, "publishing"):
		return domain.StatusOngoing
	case strings.Contains(s, "complete"), strings.Contains(s, "finished"):
		return domain.StatusCompleted
	case strings.Contains(s, "hiatus"):
		return domain.StatusHiatus
	case strings.Contains(s, "cancel"), strings.Contains(s, "dropped"):
		return domain.StatusCancelled
	default:
		return domain.StatusUnknown
	}
}
