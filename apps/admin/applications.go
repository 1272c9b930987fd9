package main

import (
	"context"
	"fmt"

	"github.com/trezcool/admissions/core/admission"
)

func (cli *commandLine) bulk(action string, ids []int, yes bool) error {
	if err := cli.confirm(fmt.Sprintf("%s %d application(s)?", action, len(ids)), yes); err != nil {
		return err
	}

	ctx := context.Background()
	opts := admission.VerifyOptions{BaseURL: cli.baseURL}
	var results []admission.BulkResult
	if action == "verify" {
		results = cli.admissionSvc.BulkVerify(ctx, ids, opts)
	} else {
		results = cli.admissionSvc.BulkReject(ctx, ids, opts)
	}

	var failed int
	for _, res := range results {
		switch {
		case !res.OK:
			failed++
			fmt.Fprintf(cli.out, "%d: %s\n", res.ID, res.Error)
		case res.RollNumber != "":
			fmt.Fprintf(cli.out, "%d: ok, roll number %s\n", res.ID, res.RollNumber)
		default:
			fmt.Fprintf(cli.out, "%d: ok\n", res.ID)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d application(s) failed", failed, len(results))
	}
	return nil
}

func (cli *commandLine) repairSlips(limit int) error {
	n, err := cli.admissionSvc.RepairSlips(context.Background(), limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d slip(s) regenerated\n", n)
	return nil
}
