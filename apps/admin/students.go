package main

import (
	"context"
	"fmt"

	"github.com/trezcool/gradebook/core/portal"
	"github.com/trezcool/gradebook/core/roster"
)

type studentFields struct {
	id, name, branch, year, section string
	marks                           []string
}

// asTeacher runs fn logged in as the teacher uname.
func (cli *commandLine) asTeacher(uname, pwd string, fn func() error) error {
	if _, err := cli.tab.Login(portal.RoleTeacher, portal.Credentials{Username: uname, Password: pwd}); err != nil {
		return err
	}
	defer cli.tab.Logout()
	return fn()
}

// addStudent updates or creates a roster.Student
func (cli *commandLine) addStudent(uname, pwd string, fields studentFields) error {
	return cli.asTeacher(uname, pwd, func() error {
		stud, err := cli.tab.AddOrUpdateStudent(context.Background(), roster.NewStudent{
			ID:      fields.id,
			Name:    fields.name,
			Branch:  fields.branch,
			Year:    fields.year,
			Section: fields.section,
			Marks:   fields.marks,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Student saved!")
		fmt.Fprintln(cli.out, portal.Summary(stud))
		return nil
	})
}

func (cli *commandLine) deleteStudent(uname, pwd, id string) error {
	return cli.asTeacher(uname, pwd, func() error {
		if err := cli.tab.DeleteStudent(context.Background(), id); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Student %s deleted.\n", id)
		return nil
	})
}

func (cli *commandLine) signupStudent(id, name, pwd string) error {
	err := cli.tab.Signup(context.Background(), portal.RoleStudent, portal.SignupForm{ID: id, Name: name, Password: pwd})
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Password set successfully! You can now log in.")
	return nil
}

func (cli *commandLine) addTeacher(uname, pwd string) error {
	err := cli.tab.Signup(context.Background(), portal.RoleTeacher, portal.SignupForm{Username: uname, Password: pwd})
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Teacher account created!")
	return nil
}
