package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yomihub/yomihub-server/internal/domain"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.Status
	}{
		{"Ongoing", domain.StatusOngoing},
		{"releasing", domain.StatusOngoing},
		{"Currently Publishing", domain.StatusOngoing},
		{"Completed", domain.StatusCompleted},
		{"Finished Airing", domain.StatusCompleted},
		{"on hiatus", domain.StatusHiatus},
		{"Cancelled", domain.StatusCancelled},
		{"dropped", domain.StatusCancelled},
		{"", domain.StatusUnknown},
		{"???", domain.StatusUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.raw), "raw=%q", tt.raw)
	}
}

func TestTag(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Slow Burn", "slow-burn"},
		{"slow_burn", "slow-burn"},
		{"SLOW-BURN", "slow-burn"},
		{"  multi   word ", "multi-word"},
		{"--leading--", "leading"},
		{"Sci-Fi / Fantasy", "sci-fi-fantasy"},
		{"ＦＵＬＬ　ＷＩＤＴＨ", "full-width"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Tag(tt.input), "input=%q", tt.input)
	}
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<p>One<br>Two</p><div>Three &amp; Four</div>")
	assert.Equal(t, "One Two Three & Four", got)
}

func TestDescription(t *testing.T) {
	// Plain text passes through untouched.
	assert.Equal(t, "just text", Description("  just text "))

	// HTML is converted to markdown.
	got := Description("<p>Hello <strong>world</strong></p>")
	assert.Contains(t, got, "**world**")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Tower of God", Title("  Tower   of God "))
	assert.Equal(t, "ABC!", Title("ＡＢＣ！"))
}
