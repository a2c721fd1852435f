package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gorm.io/gorm"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", ErrValidation, http.StatusBadRequest},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"conflict", ErrConflict, http.StatusConflict},
		{"storage", ErrStorage, http.StatusInternalServerError},
		{"wrapped validation", fmt.Errorf("%w: score must be 1..5", ErrValidation), http.StatusBadRequest},
		{"gorm record not found", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.err); got != tt.want {
				t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
