package slip

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core/admission"
)

func TestGenerator_Generate(t *testing.T) {
	dob := time.Date(2012, 3, 14, 0, 0, 0, 0, time.UTC)
	submitted := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		app     admission.Application
		wantErr bool
	}{
		{
			name: "class VIII",
			app: admission.Application{
				ID: 1, Class: admission.ClassVIII, Category: admission.CategoryCivilian, Name: "Ali Khan",
				FatherName: "Imran Khan", DateOfBirth: &dob, TestCenter: "Lahore", RollNumber: "8-0001",
				SubmissionDate: submitted, UpdatedAt: submitted,
			},
		},
		{
			name: "class XI with missing fields",
			app: admission.Application{
				ID: 2, Class: admission.ClassXI, RollNumber: "11-0042", SubmissionDate: submitted,
			},
		},
		{
			name:    "no roll number",
			app:     admission.Application{ID: 3, Class: admission.ClassXI},
			wantErr: true,
		},
	}

	gen := NewGenerator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			content, err := gen.Generate(tc.app)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
		})
	}
}

func TestGenerator_GenerateIsStable(t *testing.T) {
	updated := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	app := admission.Application{
		ID: 1, Class: admission.ClassXI, Name: "Sara", RollNumber: "11-0001",
		SubmissionDate: updated, UpdatedAt: updated,
	}

	gen := NewGenerator()
	first, err := gen.Generate(app)
	require.NoError(t, err)
	second, err := gen.Generate(app)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
