package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
)

func (cli *commandLine) setFees(in fee.ScheduleInput) error {
	if !admission.Class(core.CleanString(in.Class)).Valid() {
		return fmt.Errorf("unknown class %q", in.Class)
	}
	sched, err := in.Validate(cli.validate)
	if err != nil {
		return err
	}
	if sched, err = cli.feeSvc.Configure(context.Background(), sched); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "class %s: normal until %s, late until %s, final until %s; fees %d/%d/%d\n",
		sched.Class,
		sched.NormalDeadline.Format(core.DateLayout),
		sched.LateDeadline.Format(core.DateLayout),
		sched.FinalDeadline.Format(core.DateLayout),
		sched.Fees.Normal, sched.Fees.Late, sched.Fees.Final,
	)
	return nil
}

func (cli *commandLine) setCategoryFee(class, category string, fees fee.Fees) error {
	class = core.CleanString(class)
	category = core.CleanString(category, true /* lower */)
	if !isCategory(category) {
		return fmt.Errorf("unknown category %q", category)
	}
	ovr, err := cli.feeSvc.SetCategoryFees(context.Background(), class, category, fees)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "class %s, %s: fees %d/%d/%d\n", class, ovr.Category, ovr.Fees.Normal, ovr.Fees.Late, ovr.Fees.Final)
	return nil
}

func (cli *commandLine) quote(class, category, date string) error {
	class = core.CleanString(class)
	category = core.CleanString(category, true /* lower */)

	asOf := time.Now()
	if date != "" {
		var err error
		if asOf, err = core.ParseDate(date); err != nil {
			return fmt.Errorf("date must be formatted as YYYY-MM-DD (got %q)", date)
		}
	}
	q, err := cli.feeSvc.Quote(context.Background(), class, category, asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d (%s)\n", q.Amount, q.Tier)
	return nil
}

func isCategory(value string) bool {
	for _, c := range admission.Categories {
		if c.Value == value {
			return true
		}
	}
	return false
}
