package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	domainerrors "github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/validation"
)

type uploadRequest struct {
	Title    string  `json:"title" validate:"required,min=1,max=512"`
	CoverURL string  `json:"coverUrl" validate:"omitempty,url"`
	Status   string  `json:"status" validate:"omitempty,oneof=ongoing completed hiatus cancelled unknown"`
	Rating   float64 `json:"rating" validate:"gte=0,lte=5"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	req := uploadRequest{
		Title:    "Tower of Dawn",
		CoverURL: "https://example.com/cover.jpg",
		Status:   "ongoing",
		Rating:   4.5,
	}

	err := v.Validate(req)
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name       string
		req        uploadRequest
		wantErrMsg string
	}{
		{
			name:       "missing required title",
			req:        uploadRequest{Status: "ongoing"},
			wantErrMsg: "title",
		},
		{
			name:       "invalid cover url",
			req:        uploadRequest{Title: "X", CoverURL: "not a url"},
			wantErrMsg: "coverUrl",
		},
		{
			name:       "unknown status",
			req:        uploadRequest{Title: "X", Status: "paused"},
			wantErrMsg: "status",
		},
		{
			name:       "rating out of range",
			req:        uploadRequest{Title: "X", Rating: 9.5},
			wantErrMsg: "rating",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			assert.Error(t, err)

			var domainErr *domainerrors.Error
			if assert.True(t, domainerrors.As(err, &domainErr)) {
				assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
				details, ok := domainErr.Details.(map[string]string)
				if assert.True(t, ok) {
					assert.Contains(t, details, tt.wantErrMsg)
				}
			}
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := uploadRequest{CoverURL: "https://example.com/c.jpg"}

	err := v.Validate(req)
	assert.Error(t, err)

	// Error details should surface the JSON tag name, not the Go field name.
	assert.Contains(t, err.Error(), "validation failed")
	var domainErr *domainerrors.Error
	if assert.True(t, domainerrors.As(err, &domainErr)) {
		details, ok := domainErr.Details.(map[string]string)
		if assert.True(t, ok) {
			assert.Contains(t, details, "title")
			assert.NotContains(t, details, "Title")
		}
	}
}
