package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/violin-academy/academy-back/internal/auth"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

// addUser creates the profile or, when the email is known, resets its
// password and optionally promotes it to admin.
func (cli *commandLine) addUser(ctx context.Context, name, email, pwd string, isAdmin bool) error {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	hash, err := auth.HashPassword(pwd)
	if err != nil {
		return err
	}

	p, err := cli.profiles.GetProfileByEmail(ctx, email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		if name == "" {
			return errors.New("-name is required for a new profile")
		}
		p = &models.Profile{Name: name, Email: email, Role: models.RoleStudent, PasswordHash: hash}
		if isAdmin {
			p.Role = models.RoleAdmin
		}
		if err := cli.profiles.CreateProfile(ctx, p); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created %s profile %s\n", p.Role, p.ID)
		return nil
	case err != nil:
		return err
	}

	p.PasswordHash = hash
	if name != "" {
		p.Name = name
	}
	if isAdmin {
		p.Role = models.RoleAdmin
	}
	if err := cli.profiles.UpdateProfile(ctx, p); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "updated %s profile %s\n", p.Role, p.ID)
	return nil
}
