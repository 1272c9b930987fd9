package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/storage/database"
)

var (
	// mockable
	migrateFunc    = database.Migrate
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	readLineFunc   = func() (string, error) {
		return bufio.NewReader(os.Stdin).ReadString('\n')
	}

	errHelp      = errors.New("help provided")
	errAborted   = errors.New("aborted")
	errNeedsYes  = errors.New("not a terminal: pass -yes to confirm")
	errBadIDList = errors.New("ids must be a comma separated list of positive integers")
)

type commandLine struct {
	db           *sqlx.DB
	feeSvc       *fee.Service
	admissionSvc *admission.Service
	validate     *validator.Validate
	baseURL      string
	out          io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  setfees -class CLASS -normal DATE -late DATE -final DATE [-stop] -fees N,L,F - configure a class fee schedule")
	fmt.Fprintln(cli.out, "  setcategoryfee -class CLASS -category CATEGORY -fees N,L,F - override the fees of a category")
	fmt.Fprintln(cli.out, "  quote -class CLASS [-category CATEGORY] [-date DATE] - print the fee in effect")
	fmt.Fprintln(cli.out, "  verify -ids ID[,ID...] [-yes] - verify payments and issue roll numbers")
	fmt.Fprintln(cli.out, "  reject -ids ID[,ID...] [-yes] - reject payments")
	fmt.Fprintln(cli.out, "  repairslips [-limit N] - regenerate missing roll slips")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	setFeesCmd := flag.NewFlagSet("setfees", flag.ContinueOnError)
	setFeesClass := setFeesCmd.String("class", "", "The class (VIII or XI).")
	setFeesNormal := setFeesCmd.String("normal", "", "The normal deadline, YYYY-MM-DD.")
	setFeesLate := setFeesCmd.String("late", "", "The late deadline, YYYY-MM-DD.")
	setFeesFinal := setFeesCmd.String("final", "", "The final deadline, YYYY-MM-DD.")
	setFeesStop := setFeesCmd.Bool("stop", false, "Close admissions after the final deadline.")
	setFeesFees := setFeesCmd.String("fees", "", "The flat fees of each tier: NORMAL,LATE,FINAL.")

	setCatCmd := flag.NewFlagSet("setcategoryfee", flag.ContinueOnError)
	setCatClass := setCatCmd.String("class", "", "The class (VIII or XI).")
	setCatCategory := setCatCmd.String("category", "", "The applicant category.")
	setCatFees := setCatCmd.String("fees", "", "The fees of each tier: NORMAL,LATE,FINAL.")

	quoteCmd := flag.NewFlagSet("quote", flag.ContinueOnError)
	quoteClass := quoteCmd.String("class", "", "The class (VIII or XI).")
	quoteCategory := quoteCmd.String("category", "", "The applicant category.")
	quoteDate := quoteCmd.String("date", "", "The date to quote on, YYYY-MM-DD. Defaults to today.")

	verifyCmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	verifyIDs := verifyCmd.String("ids", "", "The application IDs, comma separated.")
	verifyYes := verifyCmd.Bool("yes", false, "Do not ask for confirmation.")

	rejectCmd := flag.NewFlagSet("reject", flag.ContinueOnError)
	rejectIDs := rejectCmd.String("ids", "", "The application IDs, comma separated.")
	rejectYes := rejectCmd.Bool("yes", false, "Do not ask for confirmation.")

	repairCmd := flag.NewFlagSet("repairslips", flag.ContinueOnError)
	repairLimit := repairCmd.Int("limit", 100, "The maximum number of slips to regenerate.")

	for _, fs := range []*flag.FlagSet{setFeesCmd, setCatCmd, quoteCmd, verifyCmd, rejectCmd, repairCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "setfees":
		if err := setFeesCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setFeesClass == "" || *setFeesFees == "" {
			setFeesCmd.Usage()
			return errHelp
		}
		fees, err := parseFees(*setFeesFees)
		if err != nil {
			return err
		}
		return cli.setFees(fee.ScheduleInput{
			Class:          *setFeesClass,
			NormalDeadline: *setFeesNormal,
			LateDeadline:   *setFeesLate,
			FinalDeadline:  *setFeesFinal,
			StopAfterFinal: *setFeesStop,
			Fees:           fees,
		})

	case "setcategoryfee":
		if err := setCatCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setCatClass == "" || *setCatCategory == "" || *setCatFees == "" {
			setCatCmd.Usage()
			return errHelp
		}
		fees, err := parseFees(*setCatFees)
		if err != nil {
			return err
		}
		return cli.setCategoryFee(*setCatClass, *setCatCategory, fees)

	case "quote":
		if err := quoteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *quoteClass == "" {
			quoteCmd.Usage()
			return errHelp
		}
		return cli.quote(*quoteClass, *quoteCategory, *quoteDate)

	case "verify":
		if err := verifyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *verifyIDs == "" {
			verifyCmd.Usage()
			return errHelp
		}
		ids, err := parseIDs(*verifyIDs)
		if err != nil {
			return err
		}
		return cli.bulk("verify", ids, *verifyYes)

	case "reject":
		if err := rejectCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rejectIDs == "" {
			rejectCmd.Usage()
			return errHelp
		}
		ids, err := parseIDs(*rejectIDs)
		if err != nil {
			return err
		}
		return cli.bulk("reject", ids, *rejectYes)

	case "repairslips":
		if err := repairCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *repairLimit < 1 {
			repairCmd.Usage()
			return errHelp
		}
		return cli.repairSlips(*repairLimit)

	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks before acting, unless yes is set. Without a terminal, yes is required.
func (cli *commandLine) confirm(prompt string, yes bool) error {
	if yes {
		return nil
	}
	if !isTerminalFunc() {
		return errNeedsYes
	}
	fmt.Fprintf(cli.out, "%s [y/N]: ", prompt)
	answer, err := readLineFunc()
	if err != nil && answer == "" {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errAborted
	}
}

func parseIDs(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id < 1 {
			return nil, errBadIDList
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseFees(s string) (fee.Fees, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fee.Fees{}, fmt.Errorf("fees must be of form NORMAL,LATE,FINAL (got %q)", s)
	}
	amounts := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return fee.Fees{}, fmt.Errorf("fee must be a non-negative number (got %q)", p)
		}
		amounts[i] = n
	}
	return fee.Fees{Normal: amounts[0], Late: amounts[1], Final: amounts[2]}, nil
}
