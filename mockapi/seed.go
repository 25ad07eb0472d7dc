package mockapi

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/core/course"
)

type SeedUser struct {
	Name     string
	Email    string
	Password string
	Role     claims.Role
}

// Seed registers users and, when the first instructor exists, a free and
// a paid demo course owned by them.
func Seed(st *Store, users []SeedUser) error {
	var owner *User

	for _, su := range users {
		u, err := st.AddUser(su.Name, su.Email, su.Password, su.Role)
		if err != nil {
			return fmt.Errorf("seeding user %s: %w", su.Email, err)
		}
		if owner == nil && u.Role == claims.RoleInstructor {
			owner = &u
		}
	}

	if owner == nil {
		return nil
	}
	in := course.Instructor{ID: owner.ID, Name: owner.Name, Email: owner.Email}

	st.PutCourse(course.Course{
		ID:          uuid.NewString(),
		Title:       "Getting Started with Go",
		Description: "Install the toolchain and write your first program.",
		Category:    "programming",
		Level:       "beginner",
		IsPublished: true,
		Instructor:  in,
		Sections: []course.Section{{
			Title: "Basics",
			Order: 1,
			Lessons: []course.Lesson{
				{Title: "Installing Go", Duration: 312, Order: 1, IsPreview: true},
				{Title: "Hello, world", Duration: 427, Order: 2},
			},
		}},
	})

	st.PutCourse(course.Course{
		ID:            uuid.NewString(),
		Title:         "Concurrency in Practice",
		Description:   "Goroutines, channels and the sync package.",
		Category:      "programming",
		Level:         "intermediate",
		Price:         49,
		DiscountPrice: 29,
		IsPublished:   true,
		Instructor:    in,
		Sections: []course.Section{{
			Title: "Goroutines",
			Order: 1,
			Lessons: []course.Lesson{
				{Title: "The go statement", Duration: 540, Order: 1, IsPreview: true},
				{Title: "WaitGroups", Duration: 610, Order: 2},
				{Title: "errgroup", Duration: 701, Order: 3},
			},
		}},
	})

	return nil
}
