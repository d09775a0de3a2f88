package main

import (
	"fmt"

	"github.com/trezcool/gradebook/core/portal"
	"github.com/trezcool/gradebook/core/roster"
)

func (cli *commandLine) showRoster(uname, pwd, filter, branch, section string) error {
	return cli.asTeacher(uname, pwd, func() error {
		students, err := cli.tab.QueryRoster(filter, roster.Criteria{Branch: branch, Section: section})
		if err != nil {
			return err
		}
		if len(students) == 0 {
			fmt.Fprintln(cli.out, "No students found.")
			return nil
		}
		for _, s := range students {
			fmt.Fprintln(cli.out, portal.Summary(s))
		}
		return nil
	})
}

func (cli *commandLine) showResult(id, pwd string) error {
	if _, err := cli.tab.Login(portal.RoleStudent, portal.Credentials{ID: id, Password: pwd}); err != nil {
		return err
	}
	defer cli.tab.Logout()

	stud, err := cli.tab.StudentOwnRecord()
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, portal.Summary(stud))
	return nil
}
