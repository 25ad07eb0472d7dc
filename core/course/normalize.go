package course

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// wireCourse is every field name the backend has used for a course over
// its revisions. Normalize is the only reader of it.
type wireCourse struct {
	ID               string          `json:"id"`
	MongoID          string          `json:"_id"`
	Title            string          `json:"title"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Level            string          `json:"level"`
	Price            flexNumber      `json:"price"`
	DiscountPrice    flexNumber      `json:"discountPrice"`
	DiscountedPrice  flexNumber      `json:"discountedPrice"`
	Thumbnail        string          `json:"thumbnail"`
	ThumbnailURL     string          `json:"thumbnailUrl"`
	ImageURL         string          `json:"imageUrl"`
	IsPublished      *bool           `json:"isPublished"`
	Published        *bool           `json:"published"`
	Status           string          `json:"status"`
	Instructor       json.RawMessage `json:"instructor"`
	InstructorName   string          `json:"instructorName"`
	Sections         []wireSection   `json:"sections"`
	Lessons          []wireLesson    `json:"lessons"`
	Videos           []wireLesson    `json:"videos"`
	TotalStudents    flexCount       `json:"totalStudents"`
	Enrollments      flexCount       `json:"enrollments"`
	TotalEnrollments flexCount       `json:"totalEnrollments"`
	StudentsCount    flexCount       `json:"studentsCount"`
	Rating           flexNumber      `json:"rating"`
	AverageRating    flexNumber      `json:"averageRating"`
}

type wireSection struct {
	ID      string       `json:"id"`
	MongoID string       `json:"_id"`
	Title   string       `json:"title"`
	Order   int          `json:"order"`
	Lessons []wireLesson `json:"lessons"`
	Videos  []wireLesson `json:"videos"`
}

type wireLesson struct {
	ID          string     `json:"id"`
	MongoID     string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	VideoURL    string     `json:"videoUrl"`
	URL         string     `json:"url"`
	Duration    flexNumber `json:"duration"`
	Order       int        `json:"order"`
	IsPreview   bool       `json:"isPreview"`
	IsFree      bool       `json:"isFree"`
}

type wireInstructor struct {
	ID        string `json:"id"`
	MongoID   string `json:"_id"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// flexNumber accepts numbers and numeric strings.
type flexNumber struct {
	v   float64
	set bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.v, f.set = v, true
	return nil
}

// flexCount accepts a number or a list, whose length is the count.
type flexCount struct {
	n   int
	set bool
}

func (f *flexCount) UnmarshalJSON(b []byte) error {
	var list []json.RawMessage
	if err := json.Unmarshal(b, &list); err == nil {
		f.n, f.set = len(list), true
		return nil
	}
	var num flexNumber
	if err := num.UnmarshalJSON(b); err != nil || !num.set {
		return nil
	}
	f.n, f.set = int(num.v), true
	return nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Normalize maps any backend rendition of a course to Course. It is
// applied once, where data enters the client.
func Normalize(raw json.RawMessage) (Course, error) {
	var w wireCourse
	if err := json.Unmarshal(raw, &w); err != nil {
		return Course{}, fmt.Errorf("decoding course: %w", err)
	}

	c := Course{
		ID:          firstString(w.ID, w.MongoID),
		Title:       firstString(w.Title, w.Name),
		Description: w.Description,
		Category:    w.Category,
		Level:       w.Level,
		Price:       w.Price.v,
		Thumbnail:   firstString(w.Thumbnail, w.ThumbnailURL, w.ImageURL),
		Instructor:  normalizeInstructor(w.Instructor, w.InstructorName),
	}

	switch {
	case w.DiscountPrice.set:
		c.DiscountPrice = w.DiscountPrice.v
	case w.DiscountedPrice.set:
		c.DiscountPrice = w.DiscountedPrice.v
	}

	switch {
	case w.IsPublished != nil:
		c.IsPublished = *w.IsPublished
	case w.Published != nil:
		c.IsPublished = *w.Published
	default:
		c.IsPublished = strings.EqualFold(w.Status, "published")
	}

	for _, cnt := range []flexCount{w.TotalStudents, w.Enrollments, w.TotalEnrollments, w.StudentsCount} {
		if cnt.set {
			c.TotalStudents = cnt.n
			break
		}
	}

	if w.Rating.set {
		c.Rating = w.Rating.v
	} else {
		c.Rating = w.AverageRating.v
	}

	for _, ws := range w.Sections {
		s := Section{
			ID:      firstString(ws.ID, ws.MongoID),
			Title:   ws.Title,
			Order:   ws.Order,
			Lessons: normalizeLessons(append(ws.Lessons, ws.Videos...)),
		}
		c.Sections = append(c.Sections, s)
	}

	// Flat courses keep their lessons in a single implicit section.
	if flat := append(w.Lessons, w.Videos...); len(c.Sections) == 0 && len(flat) > 0 {
		c.Sections = []Section{{Title: c.Title, Lessons: normalizeLessons(flat)}}
	}

	sort.SliceStable(c.Sections, func(i, j int) bool { return c.Sections[i].Order < c.Sections[j].Order })
	Renumber(c.Sections)

	return c, nil
}

// NormalizeList normalizes every raw course, failing on the first bad one.
func NormalizeList(items []json.RawMessage) ([]Course, error) {
	courses := make([]Course, 0, len(items))
	for i, raw := range items {
		c, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("course %d: %w", i, err)
		}
		courses = append(courses, c)
	}
	return courses, nil
}

func normalizeLessons(ws []wireLesson) []Lesson {
	ls := make([]Lesson, 0, len(ws))
	for _, w := range ws {
		ls = append(ls, Lesson{
			ID:          firstString(w.ID, w.MongoID),
			Title:       w.Title,
			Description: w.Description,
			VideoURL:    firstString(w.VideoURL, w.URL),
			Duration:    w.Duration.v,
			Order:       w.Order,
			IsPreview:   w.IsPreview || w.IsFree,
		})
	}
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].Order < ls[j].Order })
	Renumber(ls)
	return ls
}

func normalizeInstructor(raw json.RawMessage, name string) Instructor {
	if len(raw) == 0 {
		return Instructor{Name: name}
	}

	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return Instructor{ID: id, Name: name}
	}

	var w wireInstructor
	if err := json.Unmarshal(raw, &w); err != nil {
		return Instructor{Name: name}
	}

	full := strings.TrimSpace(w.FirstName + " " + w.LastName)
	return Instructor{
		ID:    firstString(w.ID, w.MongoID),
		Name:  firstString(w.Name, full, name),
		Email: w.Email,
	}
}
