package admission

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFormatRollNumber(t *testing.T) {
	assert.Equal(t, "8-0001", FormatRollNumber("8", 1))
	assert.Equal(t, "11-0420", FormatRollNumber("11", 420))
	assert.Equal(t, "8-12345", FormatRollNumber("8", 12345))
}

func TestParseRollNumber(t *testing.T) {
	tests := []struct {
		rollNo     string
		wantPrefix string
		wantSeq    int
		wantErr    bool
	}{
		{rollNo: "8-0001", wantPrefix: "8", wantSeq: 1},
		{rollNo: "11-0123", wantPrefix: "11", wantSeq: 123},
		{rollNo: "8-12345", wantPrefix: "8", wantSeq: 12345},
		{rollNo: "8-12", wantErr: true},
		{rollNo: "8-00a1", wantErr: true},
		{rollNo: "x-0001", wantErr: true},
		{rollNo: "-0001", wantErr: true},
		{rollNo: "80001", wantErr: true},
		{rollNo: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.rollNo, func(t *testing.T) {
			prefix, seq, err := ParseRollNumber(tt.rollNo)
			if tt.wantErr {
				assert.Equal(t, ErrMalformedRollNumber, errors.Cause(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, prefix)
			assert.Equal(t, tt.wantSeq, seq)
		})
	}
}

func TestMaxSequence(t *testing.T) {
	issued := []string{"8-0003", "11-0009", "8-0010", "81-0500"}

	tests := []struct {
		name    string
		prefix  string
		rollNos []string
		want    int
		wantErr error
	}{
		{name: "none issued", prefix: "8", want: 0},
		{name: "class VIII", prefix: "8", rollNos: issued, want: 10},
		{name: "class XI", prefix: "11", rollNos: issued, want: 9},
		{name: "malformed in namespace", prefix: "8", rollNos: []string{"8-0003", "8-12"}, wantErr: ErrMalformedRollNumber},
		{name: "malformed elsewhere", prefix: "8", rollNos: []string{"8-0003", "11-x"}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MaxSequence(tt.prefix, tt.rollNos)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
