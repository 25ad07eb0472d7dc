package course

type Instructor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type Course struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category,omitempty"`
	Level         string     `json:"level,omitempty"`
	Price         float64    `json:"price"`
	DiscountPrice float64    `json:"discountPrice,omitempty"`
	Thumbnail     string     `json:"thumbnail"`
	IsPublished   bool       `json:"isPublished"`
	Instructor    Instructor `json:"instructor"`
	Sections      []Section  `json:"sections"`
	TotalStudents int        `json:"totalStudents"`
	Rating        float64    `json:"rating"`
}

// FinalPrice is what a buyer pays: the discount price when it is an actual
// discount, the list price otherwise.
func (c Course) FinalPrice() float64 {
	if c.DiscountPrice > 0 && c.DiscountPrice < c.Price {
		return c.DiscountPrice
	}
	return c.Price
}

func (c Course) Free() bool { return c.FinalPrice() == 0 }

func (c Course) Lessons() []Lesson {
	var ls []Lesson
	for _, s := range c.Sections {
		ls = append(ls, s.Lessons...)
	}
	return ls
}

// TotalDuration is the sum of lesson durations in seconds.
func (c Course) TotalDuration() float64 {
	var d float64
	for _, l := range c.Lessons() {
		d += l.Duration
	}
	return d
}

type Section struct {
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title" validate:"required"`
	Order   int      `json:"order"`
	Lessons []Lesson `json:"lessons" validate:"dive"`
}

func (s *Section) SetOrder(n int) { s.Order = n }

type Lesson struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description,omitempty"`
	VideoURL    string  `json:"videoUrl,omitempty"`
	Duration    float64 `json:"duration"`
	Order       int     `json:"order"`
	IsPreview   bool    `json:"isPreview,omitempty"`
}

func (l *Lesson) SetOrder(n int) { l.Order = n }

// CourseNew is the course form submitted on create and update.
type CourseNew struct {
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description" validate:"required"`
	Category      string    `json:"category,omitempty"`
	Level         string    `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Price         float64   `json:"price" validate:"gte=0,lte=10000"`
	DiscountPrice float64   `json:"discountPrice,omitempty" validate:"omitempty,gte=0,ltefield=Price"`
	Thumbnail     string    `json:"thumbnail,omitempty" validate:"omitempty,url"`
	IsPublished   bool      `json:"isPublished"`
	Sections      []Section `json:"sections" validate:"dive"`
}
