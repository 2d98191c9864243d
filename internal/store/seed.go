package store

import (
	"context"
	"fmt"

	"github.com/djarekg/tampa-taffy/pkg/api"
)

// SeedPassword is the password given to every seeded account.
const SeedPassword = "taffy"

var seedUsers = []NewUser{
	{FirstName: "Ada", LastName: "Lovelace", Email: "ada@tampa.test", Job: "Engineer", Role: api.RoleAdmin},
	{FirstName: "Grace", LastName: "Hopper", Email: "grace@tampa.test", Job: "Compiler Lead"},
	{FirstName: "Alan", LastName: "Turing", Email: "alan@tampa.test", Job: "Researcher"},
	{FirstName: "Katherine", LastName: "Johnson", Email: "katherine@tampa.test", Job: "Analyst"},
	{FirstName: "Edsger", LastName: "Dijkstra", Email: "edsger@tampa.test", Job: "Architect"},
	{FirstName: "Barbara", LastName: "Liskov", Email: "barbara@tampa.test", Job: "Engineer"},
	{FirstName: "Donald", LastName: "Knuth", Email: "donald@tampa.test", Job: "Typesetter"},
	{FirstName: "Margaret", LastName: "Hamilton", Email: "margaret@tampa.test", Job: "Flight Software"},
}

// Seed inserts demo users when the users table is empty and returns how many
// were created.
func (s *Store) Seed(ctx context.Context) (int, error) {
	n, err := s.CountUsers(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for i, u := range seedUsers {
		u.Password = SeedPassword
		if _, err := s.CreateUser(ctx, u); err != nil {
			return i, fmt.Errorf("store: seed %s: %w", u.Email, err)
		}
	}
	return len(seedUsers), nil
}
