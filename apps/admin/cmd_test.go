package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/tests"
)

var env *testutil.Env

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	conf := core.NewTestConfig()
	env = testutil.NewEnv(conf.Admission.BulkWorkers)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	admission.InitValidators(validate, translator)

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		feeSvc:       env.Fees,
		admissionSvc: env.Admissions,
		validate:     validate,
		baseURL:      conf.Admission.BaseURL,
		out:          &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string // substring of the output, when set
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest, before func(tt cliTest)) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			if before != nil {
				before(tt)
			}
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, want an error")
			}
			if tt.wantOut != "" && !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output = %q; want it to contain %q", out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)

	migrateFunc = func(_ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "add_index", "sql"}},
	}
	runCLITests(t, cli, out, tests, nil)
}

func Test_commandLine_fees(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "setfees: no args", args: []string{"setfees"}, wantErr: errHelp},
		{
			name:       "setfees: two fees",
			args:       []string{"setfees", "-class", "VIII", "-fees", "1,2"},
			wantErrStr: `fees must be of form NORMAL,LATE,FINAL (got "1,2")`,
		},
		{
			name:       "setfees: negative fee",
			args:       []string{"setfees", "-class", "VIII", "-fees", "1,-2,3"},
			wantErrStr: `fee must be a non-negative number (got "-2")`,
		},
		{
			name:       "setfees: unknown class",
			args:       []string{"setfees", "-class", "IX", "-normal", "2026-01-31", "-late", "2026-02-15", "-final", "2026-02-28", "-fees", "1,2,3"},
			wantErrStr: `unknown class "IX"`,
		},
		{
			name:       "setfees: deadlines out of order",
			args:       []string{"setfees", "-class", "VIII", "-normal", "2026-02-15", "-late", "2026-01-31", "-final", "2026-02-28", "-fees", "1,2,3"},
			wantErrStr: fee.ErrInvalidDeadlines.Error(),
		},
		{
			name:       "setcategoryfee: no schedule",
			args:       []string{"setcategoryfee", "-class", "VIII", "-category", "civilian", "-fees", "5,6,7"},
			wantErrStr: fee.ErrNoConfig.Error(),
		},
		{
			name:    "setfees",
			args:    []string{"setfees", "-class", "VIII", "-normal", "2026-01-31", "-late", "2026-02-15", "-final", "2026-02-28", "-stop", "-fees", "4000,6000,8000"},
			wantOut: "class VIII: normal until 2026-01-31, late until 2026-02-15, final until 2026-02-28; fees 4000/6000/8000",
		},
		{name: "setcategoryfee: no args", args: []string{"setcategoryfee", "-class", "VIII"}, wantErr: errHelp},
		{
			name:       "setcategoryfee: unknown category",
			args:       []string{"setcategoryfee", "-class", "VIII", "-category", "nobody", "-fees", "5,6,7"},
			wantErrStr: `unknown category "nobody"`,
		},
		{
			name:    "setcategoryfee",
			args:    []string{"setcategoryfee", "-class", "VIII", "-category", "Civilian", "-fees", "5000,7000,9000"},
			wantOut: "class VIII, civilian: fees 5000/7000/9000",
		},
		{name: "quote: no args", args: []string{"quote"}, wantErr: errHelp},
		{
			name:       "quote: bad date",
			args:       []string{"quote", "-class", "VIII", "-date", "31/01/2026"},
			wantErrStr: `date must be formatted as YYYY-MM-DD (got "31/01/2026")`,
		},
		{name: "quote: flat", args: []string{"quote", "-class", "VIII", "-category", "caf", "-date", "2026-01-31"}, wantOut: "4000 (normal)"},
		{name: "quote: override", args: []string{"quote", "-class", "VIII", "-category", "civilian", "-date", "2026-02-16"}, wantOut: "9000 (final)"},
		{name: "quote: closed", args: []string{"quote", "-class", "VIII", "-date", "2026-03-01"}, wantErrStr: fee.ErrClosed.Error()},
		{name: "quote: no schedule", args: []string{"quote", "-class", "XI"}, wantErrStr: fee.ErrNoConfig.Error()},
	}
	runCLITests(t, cli, out, tests, nil)
}

func Test_commandLine_verifyAndReject(t *testing.T) {
	cli, out := setup(t)
	a1 := testutil.CreateApplication(t, env.Repo, admission.Application{AccountID: 1})
	a2 := testutil.CreateApplication(t, env.Repo, admission.Application{AccountID: 2})
	a3 := testutil.CreateApplication(t, env.Repo, admission.Application{AccountID: 3})

	type extra struct {
		terminal bool
		answer   string
	}
	ids := func(ids ...int) string {
		s := make([]string, len(ids))
		for i, id := range ids {
			s[i] = strconv.Itoa(id)
		}
		return strings.Join(s, ",")
	}

	tests := []cliTest{
		{name: "verify: no ids", args: []string{"verify"}, wantErr: errHelp},
		{name: "verify: bad ids", args: []string{"verify", "-ids", "1,x"}, wantErr: errBadIDList},
		{name: "verify: zero id", args: []string{"verify", "-ids", "0", "-yes"}, wantErr: errBadIDList},
		{name: "verify: no terminal", args: []string{"verify", "-ids", ids(a1.ID)}, wantErr: errNeedsYes},
		{
			name:    "verify: declined",
			args:    []string{"verify", "-ids", ids(a1.ID)},
			extra:   extra{terminal: true, answer: "n\n"},
			wantErr: errAborted,
		},
		{
			name:    "verify: confirmed",
			args:    []string{"verify", "-ids", ids(a1.ID)},
			extra:   extra{terminal: true, answer: "Y\n"},
			wantOut: fmt.Sprintf("%d: ok, roll number 8-", a1.ID),
		},
		{
			name:       "verify: partly unknown",
			args:       []string{"verify", "-ids", ids(a2.ID, 999999), "-yes"},
			wantErrStr: "1 of 2 application(s) failed",
			wantOut:    "999999: application not found",
		},
		{name: "reject: no ids", args: []string{"reject"}, wantErr: errHelp},
		{name: "reject", args: []string{"reject", "-ids", ids(a3.ID), "-yes"}, wantOut: fmt.Sprintf("%d: ok\n", a3.ID)},
		{
			name:       "reject: verified",
			args:       []string{"reject", "-ids", ids(a1.ID), "-yes"},
			wantErrStr: "1 of 1 application(s) failed",
			wantOut:    "invalid status transition",
		},
		{name: "repairslips: bad limit", args: []string{"repairslips", "-limit", "0"}, wantErr: errHelp},
		{name: "repairslips", args: []string{"repairslips"}, wantOut: "0 slip(s) regenerated"},
	}
	runCLITests(t, cli, out, tests, func(tt cliTest) {
		ex, _ := tt.extra.(extra)
		isTerminalFunc = func() bool { return ex.terminal }
		readLineFunc = func() (string, error) { return ex.answer, nil }
	})

	for _, id := range []int{a1.ID, a2.ID} {
		app, err := env.Admissions.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID(%d) failed: %v", id, err)
		}
		if app.Status != admission.StatusVerified || app.RollNumber == "" {
			t.Errorf("application %d: status = %s, roll number = %q; want verified with a roll number", id, app.Status, app.RollNumber)
		}
	}
}
