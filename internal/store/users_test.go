package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/eatmefirst/internal/db"
	"github.com/erazemk/eatmefirst/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "testuser", "hash123", model.RoleMember)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %q", user.Username)
	}
	if user.Role != model.RoleMember {
		t.Errorf("expected role 'member', got %q", user.Role)
	}

	got, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %q", got.Username)
	}
}

func TestGetUserByUsername(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()

	s.CreateUser(ctx, "alice", "hash", model.RoleAdmin)

	user, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Username != "alice" {
		t.Errorf("expected 'alice', got %q", user.Username)
	}

	missing, err := s.GetUserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListUsers(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()

	s.CreateUser(ctx, "a", "hash", model.RoleMember)
	s.CreateUser(ctx, "b", "hash", model.RoleViewer)

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}
}

func TestDeleteUser(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()

	user, _ := s.CreateUser(ctx, "deleteme", "hash", model.RoleMember)
	s.DeleteUser(ctx, user.ID)

	users, _ := s.ListUsers(ctx)
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}
}

func TestUpdateUserPassword(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()

	user, _ := s.CreateUser(ctx, "pwuser", "oldhash", model.RoleMember)
	s.UpdateUserPassword(ctx, user.ID, "newhash")

	got, _ := s.GetUser(ctx, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "eve", "hash", "manager"); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDeleteMissingUser(t *testing.T) {
	s := New(db.NewTestDB(t))

	if err := s.DeleteUser(context.Background(), 42); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCountUsers(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()

	n, err := s.CountUsers(ctx)
	if err != nil || n != 0 {
		t.Fatalf("CountUsers = %d, %v; want 0", n, err)
	}
	s.CreateUser(ctx, "a", "hash", model.RoleAdmin)
	if n, _ := s.CountUsers(ctx); n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}
}
