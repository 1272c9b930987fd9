package fee_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/fee"
	inmemdb "github.com/trezcool/admissions/storage/database/inmem"
	"github.com/trezcool/admissions/tests"
)

func TestService_Quote(t *testing.T) {
	svc := fee.NewService(inmemdb.NewFeeRepository(inmemdb.NewDB()))
	ctx := context.Background()

	_, err := svc.Quote(ctx, "VIII", "civilian", testutil.Date(t, "2026-02-10"))
	assert.Equal(t, fee.ErrNoConfig, errors.Cause(err))

	sched := testutil.CreateSchedule(t, svc, "VIII", "2026-01-31", "2026-02-15", "2026-02-28", true, fee.Fees{Normal: 4000, Late: 6000, Final: 8000})
	_, err = svc.SetCategoryFees(ctx, "VIII", "civilian", fee.Fees{Normal: 5000, Late: 7000, Final: 9000})
	require.NoError(t, err)

	tests := []struct {
		name     string
		category string
		asOf     string
		want     fee.Quote
		wantErr  error
	}{
		{name: "override", category: "civilian", asOf: "2026-02-10", want: fee.Quote{Amount: 7000, Tier: fee.TierLate}},
		{name: "no override", category: "caf", asOf: "2026-02-10", want: fee.Quote{Amount: 6000, Tier: fee.TierLate}},
		{name: "no category", asOf: "2026-02-28", want: fee.Quote{Amount: 8000, Tier: fee.TierFinal}},
		{name: "closed", category: "civilian", asOf: "2026-03-01", wantErr: fee.ErrClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Quote(ctx, "VIII", tt.category, testutil.Date(t, tt.asOf))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// replacing keeps a single schedule and override per key
	sched.Fees = fee.Fees{Normal: 1, Late: 2, Final: 3}
	_, err = svc.Configure(ctx, sched)
	require.NoError(t, err)
	_, err = svc.SetCategoryFees(ctx, "VIII", "civilian", fee.Fees{Normal: 10, Late: 20, Final: 30})
	require.NoError(t, err)

	scheds, err := svc.Schedules(ctx)
	require.NoError(t, err)
	require.Len(t, scheds, 1)
	assert.Equal(t, fee.Fees{Normal: 1, Late: 2, Final: 3}, scheds[0].Fees)

	ovrs, err := svc.CategoryFees(ctx, "VIII")
	require.NoError(t, err)
	require.Len(t, ovrs, 1)
	assert.Equal(t, fee.Fees{Normal: 10, Late: 20, Final: 30}, ovrs[0].Fees)
}

func TestService_Configure(t *testing.T) {
	svc := fee.NewService(inmemdb.NewFeeRepository(inmemdb.NewDB()))
	ctx := context.Background()

	_, err := svc.Configure(ctx, fee.Schedule{
		Class:          "XI",
		NormalDeadline: testutil.Date(t, "2026-02-15"),
		LateDeadline:   testutil.Date(t, "2026-02-15"),
		FinalDeadline:  testutil.Date(t, "2026-02-28"),
	})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, fee.ErrInvalidDeadlines, verr.Err)
	assert.Equal(t, map[string]string{"late_deadline": "must be after the normal deadline"}, verr.FieldMap())

	_, err = svc.SetCategoryFees(ctx, "XI", "civilian", fee.Fees{})
	assert.Equal(t, fee.ErrNoConfig, errors.Cause(err))
	_, err = svc.CategoryFees(ctx, "XI")
	assert.Equal(t, fee.ErrNoConfig, errors.Cause(err))
}

func TestScheduleInput_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	tests := []struct {
		name    string
		in      fee.ScheduleInput
		wantErr bool
	}{
		{
			name: "valid",
			in:   fee.ScheduleInput{Class: " VIII ", NormalDeadline: "2026-01-31", LateDeadline: "2026-02-15", FinalDeadline: "2026-02-28"},
		},
		{name: "missing deadlines", in: fee.ScheduleInput{Class: "VIII"}, wantErr: true},
		{
			name:    "bad date",
			in:      fee.ScheduleInput{Class: "VIII", NormalDeadline: "31/01/2026", LateDeadline: "2026-02-15", FinalDeadline: "2026-02-28"},
			wantErr: true,
		},
		{
			name:    "final before late",
			in:      fee.ScheduleInput{Class: "VIII", NormalDeadline: "2026-01-31", LateDeadline: "2026-02-15", FinalDeadline: "2026-02-01"},
			wantErr: true,
		},
		{
			name:    "negative fee",
			in:      fee.ScheduleInput{Class: "VIII", NormalDeadline: "2026-01-31", LateDeadline: "2026-02-15", FinalDeadline: "2026-02-28", Fees: fee.Fees{Late: -1}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := tt.in.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "VIII", sched.Class)
			assert.Equal(t, testutil.Date(t, "2026-02-15"), sched.LateDeadline)
		})
	}
}

func TestLegacyFee(t *testing.T) {
	assert.Equal(t, 3000, fee.LegacyFee("offr_serving"))
	assert.Equal(t, 2000, fee.LegacyFee("caf"))
	assert.Equal(t, 5000, fee.LegacyFee("civilian"))
	assert.Equal(t, 5000, fee.LegacyFee("unknown"))
}
