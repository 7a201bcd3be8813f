package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shulehub/shule/core"
)

type (
	// UserRef is a populated user reference for display.
	UserRef struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	// ClassRef is a populated class reference for display.
	ClassRef struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	Class struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		CreatedBy   UserRef   `json:"created_by"`
		SchoolID    string    `json:"school_id"`
		Subjects    []Subject `json:"subjects,omitempty"`
		StudentIDs  []string  `json:"student_ids"`
		CreatedAt   time.Time `json:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"` // UTC
	}

	QuizQuestion struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
		Answers  []string `json:"answers"`
	}

	Subject struct {
		ID            string         `json:"id"`
		Title         string         `json:"title"`
		Description   string         `json:"description"`
		QuizQuestions []QuizQuestion `json:"quiz_questions"`
		ClassID       string         `json:"class_id"`
		Class         *ClassRef      `json:"class,omitempty"`
		CreatedAt     time.Time      `json:"created_at"` // UTC
		UpdatedAt     time.Time      `json:"updated_at"` // UTC
	}

	// Member is a student row in membership listings. Enrolled flags class
	// membership so member listings and available-students listings share a
	// response shape.
	Member struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Enrolled bool   `json:"enrolled"`
	}

	// EnrollmentResult partitions every input id of a bulk add into exactly
	// one bucket.
	EnrollmentResult struct {
		Added          []string `json:"added"`
		AlreadyInClass []string `json:"already_in_class"`
		Invalid        []string `json:"invalid"`
	}

	// RemovalResult partitions every input id of a bulk remove.
	RemovalResult struct {
		Removed    []string `json:"removed"`
		NotInClass []string `json:"not_in_class"`
	}
)

// OwnedBy is the single ownership predicate used by every class write (and
// teacher reads): the caller must be the creating teacher within their own
// school.
func (c Class) OwnedBy(prin core.Principal) bool {
	return c.CreatedBy.ID == prin.UserID && prin.SameSchool(c.SchoolID)
}

func (c Class) HasStudent(studentID string) bool {
	for _, id := range c.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateClass defines what may be modified on an existing Class. Ownership,
// school and membership are never updated through this path.
type UpdateClass struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (uc *UpdateClass) Validate(origCls Class, validate *validator.Validate) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = origCls.Name
	}

	desc := core.CleanString(uc.Description)
	if desc != "" {
		uc.Description = desc
	} else {
		uc.Description = origCls.Description
	}
	return validate.Struct(uc)
}

// QuizQuestionInput is a raw, untrusted quiz question entry.
type QuizQuestionInput struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answers  []string `json:"answers"`
}

// NewSubject contains information needed to create a new Subject in a Class.
type NewSubject struct {
	Title         string              `json:"title" validate:"required"`
	Description   string              `json:"description" validate:"required"`
	QuizQuestions []QuizQuestionInput `json:"quiz_questions"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

// UpdateSubject defines what may be modified on an existing Subject.
// A nil QuizQuestions leaves the stored questions untouched.
type UpdateSubject struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	QuizQuestions []QuizQuestionInput `json:"quiz_questions"`
}

func (us *UpdateSubject) Validate(origSub Subject, validate *validator.Validate) error {
	title := core.CleanString(us.Title)
	if title != "" {
		us.Title = title
	} else {
		us.Title = origSub.Title
	}

	desc := core.CleanString(us.Description)
	if desc != "" {
		us.Description = desc
	} else {
		us.Description = origSub.Description
	}
	return validate.Struct(us)
}

// NormalizeQuizQuestions filters raw question entries down to well-formed
// ones: non-empty question text, at least two non-empty options, and answers
// restricted to that question's own options. Malformed entries are dropped
// silently rather than rejected.
func NormalizeQuizQuestions(inputs []QuizQuestionInput) []QuizQuestion {
	questions := make([]QuizQuestion, 0, len(inputs))
	for _, in := range inputs {
		text := core.CleanString(in.Question)
		if text == "" {
			continue
		}

		options := make([]string, 0, len(in.Options))
		seen := make(map[string]bool, len(in.Options))
		for _, opt := range in.Options {
			opt = core.CleanString(opt)
			if opt == "" || seen[opt] {
				continue
			}
			seen[opt] = true
			options = append(options, opt)
		}
		if len(options) < 2 {
			continue
		}

		answers := make([]string, 0, len(in.Answers))
		ansSeen := make(map[string]bool, len(in.Answers))
		for _, ans := range in.Answers {
			ans = core.CleanString(ans)
			if ans == "" || ansSeen[ans] || !seen[ans] {
				continue
			}
			ansSeen[ans] = true
			answers = append(answers, ans)
		}

		questions = append(questions, QuizQuestion{Question: text, Options: options, Answers: answers})
	}
	return questions
}
