package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/user"
)

// addUser updates or creates a user.User, keyed by email.
func (cli *commandLine) addUser(name, email, role, schoolUID, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	r := core.Role(core.CleanString(role, true /* lower */))
	if !r.Valid() {
		return fmt.Errorf("%q: no such role", role)
	}

	var schoolID string
	if schoolUID = core.CleanString(schoolUID); schoolUID != "" {
		sch, err := cli.schSvc.GetByUID(ctx, schoolUID)
		if err != nil {
			return err
		}
		schoolID = sch.ID
	} else if r != core.RoleSuperAdmin {
		return fmt.Errorf("role %s requires -school", r)
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{Email: email, CreatedAt: now}
	}
	usr.Name = name
	usr.Role = r
	usr.UpdatedAt = now
	if schoolID != "" {
		usr.SchoolID.SetValid(schoolID)
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}
