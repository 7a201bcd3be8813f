// Package testutil provides shared fixtures for service and API tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
	"github.com/shulehub/shule/core/invitation"
	"github.com/shulehub/shule/core/school"
	"github.com/shulehub/shule/core/user"
)

func CreateSchool(t *testing.T, repo school.Repository, name, uid string) school.School {
	t.Helper()
	now := time.Now().UTC()
	sch, err := repo.CreateSchool(context.Background(), school.School{
		Name:      name,
		Address:   "123 Main St",
		Email:     "info@" + uid + ".test",
		UID:       uid,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return sch
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email string,
	role core.Role,
	schoolID string,
	pwd string,
) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if schoolID != "" {
		usr.SchoolID.SetValid(schoolID)
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo classroom.Repository, name string, owner user.User) classroom.Class {
	t.Helper()
	now := time.Now().UTC()
	cls, err := repo.CreateClass(context.Background(), classroom.Class{
		Name:        name,
		Description: name + " description",
		CreatedBy:   classroom.UserRef{ID: owner.ID, Name: owner.Name, Email: owner.Email},
		SchoolID:    owner.SchoolID.String,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateSubject(t *testing.T, repo classroom.Repository, classID, title string, questions ...classroom.QuizQuestion) classroom.Subject {
	t.Helper()
	now := time.Now().UTC()
	if questions == nil {
		questions = []classroom.QuizQuestion{}
	}
	sub, err := repo.CreateSubject(context.Background(), classroom.Subject{
		Title:         title,
		Description:   title + " description",
		QuizQuestions: questions,
		ClassID:       classID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

func EnrollStudent(t *testing.T, repo classroom.Repository, classID, studentID string) {
	t.Helper()
	if _, err := repo.AddClassStudent(context.Background(), classID, studentID); err != nil {
		t.Fatalf("AddClassStudent() failed: %v", err)
	}
}

func CreateInvitation(t *testing.T, repo invitation.Repository, cls classroom.Class, studentID string) invitation.Invitation {
	t.Helper()
	now := time.Now().UTC()
	inv, err := repo.CreateInvitation(context.Background(), invitation.Invitation{
		ClassID:   cls.ID,
		StudentID: studentID,
		InvitedBy: cls.CreatedBy.ID,
		SchoolID:  cls.SchoolID,
		Status:    invitation.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateInvitation() failed: %v", err)
	}
	return inv
}
