package main

import (
	"context"
	"fmt"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/school"
)

func (cli *commandLine) addSchool(name, address, email string) error {
	ctx := context.Background()
	ns := school.NewSchool{
		Name:    core.CleanString(name),
		Address: core.CleanString(address),
		Email:   core.CleanString(email, true /* lower */),
	}

	sch, err := cli.schSvc.Create(ctx, ns)
	if err != nil {
		return err
	}
	fmt.Printf("school %q registered with UID %s\n", sch.Name, sch.UID)
	return nil
}
