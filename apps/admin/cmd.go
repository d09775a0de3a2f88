package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/gradebook/core/portal"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	tab *portal.Portal
	out io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  addteacher -username USERNAME - register a teacher")
	fmt.Fprintln(cli.out, "  signup -id ID -name NAME - set a student's password")
	fmt.Fprintln(cli.out, "  addstudent -teacher USERNAME -id ID -name NAME [-branch B] [-year Y] [-section S] [-marks M1,M2,...] - add or update a student")
	fmt.Fprintln(cli.out, "  deletestudent -teacher USERNAME -id ID - remove a student")
	fmt.Fprintln(cli.out, "  roster -teacher USERNAME [-filter all|rankHigh|failed|advanced] [-branch B] [-section S] - list students")
	fmt.Fprintln(cli.out, "  result -id ID - show a student's own result")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addTeacherCmd := flag.NewFlagSet("addteacher", flag.ExitOnError)
	addTeacherUname := addTeacherCmd.String("username", "", "The teacher's username. The password will be prompted next.")

	signupCmd := flag.NewFlagSet("signup", flag.ExitOnError)
	signupID := signupCmd.String("id", "", "The student's ID, as added by a teacher.")
	signupName := signupCmd.String("name", "", "The student's name, as added by a teacher. The password will be prompted next.")

	addStudentCmd := flag.NewFlagSet("addstudent", flag.ExitOnError)
	addStudentTeacher := addStudentCmd.String("teacher", "", "The username of the teacher. Their password will be prompted next.")
	addStudentID := addStudentCmd.String("id", "", "The student's ID.")
	addStudentName := addStudentCmd.String("name", "", "The student's name: letters and single spaces.")
	addStudentBranch := addStudentCmd.String("branch", "", "The student's branch.")
	addStudentYear := addStudentCmd.String("year", "", "The student's year.")
	addStudentSection := addStudentCmd.String("section", "", "The student's section.")
	addStudentMarks := addStudentCmd.String("marks", "", "Comma separated subject marks, out of 100.")

	deleteStudentCmd := flag.NewFlagSet("deletestudent", flag.ExitOnError)
	deleteStudentTeacher := deleteStudentCmd.String("teacher", "", "The username of the teacher. Their password will be prompted next.")
	deleteStudentID := deleteStudentCmd.String("id", "", "The student's ID.")

	rosterCmd := flag.NewFlagSet("roster", flag.ExitOnError)
	rosterTeacher := rosterCmd.String("teacher", "", "The username of the teacher. Their password will be prompted next.")
	rosterFilter := rosterCmd.String("filter", "all", "One of all, rankHigh, failed or advanced.")
	rosterBranch := rosterCmd.String("branch", "", "advanced: the exact branch.")
	rosterSection := rosterCmd.String("section", "", "advanced: the section, ignoring case.")

	resultCmd := flag.NewFlagSet("result", flag.ExitOnError)
	resultID := resultCmd.String("id", "", "The student's ID. The password will be prompted next.")

	switch args[1] {
	case "addteacher":
		if err := addTeacherCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addTeacherUname == "" {
			addTeacherCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("password")
		if err != nil {
			return err
		}
		if pwd == "" {
			addTeacherCmd.Usage()
			return errHelp
		}
		return cli.addTeacher(*addTeacherUname, pwd)

	case "signup":
		if err := signupCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *signupID == "" || *signupName == "" {
			signupCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("password")
		if err != nil {
			return err
		}
		if pwd == "" {
			signupCmd.Usage()
			return errHelp
		}
		return cli.signupStudent(*signupID, *signupName, pwd)

	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStudentTeacher == "" || *addStudentID == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("teacher password")
		if err != nil {
			return err
		}
		return cli.addStudent(*addStudentTeacher, pwd, studentFields{
			id:      *addStudentID,
			name:    *addStudentName,
			branch:  *addStudentBranch,
			year:    *addStudentYear,
			section: *addStudentSection,
			marks:   splitMarks(*addStudentMarks),
		})

	case "deletestudent":
		if err := deleteStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deleteStudentTeacher == "" || *deleteStudentID == "" {
			deleteStudentCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("teacher password")
		if err != nil {
			return err
		}
		return cli.deleteStudent(*deleteStudentTeacher, pwd, *deleteStudentID)

	case "roster":
		if err := rosterCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rosterTeacher == "" {
			rosterCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("teacher password")
		if err != nil {
			return err
		}
		return cli.showRoster(*rosterTeacher, pwd, *rosterFilter, *rosterBranch, *rosterSection)

	case "result":
		if err := resultCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resultID == "" {
			resultCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("password")
		if err != nil {
			return err
		}
		return cli.showResult(*resultID, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword(label string) (string, error) {
	fmt.Fprintf(cli.out, "Enter %s:", label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// splitMarks reads "90, 85,70" as raw mark inputs.
func splitMarks(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
