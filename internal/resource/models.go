package resource

type Type string

const (
	TypePastQuestions  Type = "past-questions"
	TypeScholarships   Type = "scholarships"
	TypeSHSQuestions   Type = "shs-questions"
	TypeTrialQuestions Type = "trial-questions"
)

// FileRef is a stable reference to a stored blob.
type FileRef struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Record is one persisted entity of a resource type. Downloads and Views are
// server-incremented counters: the engine displays them but never writes them.
type Record struct {
	ID       string `json:"id"`
	Type     Type   `json:"type"`
	Title    string `json:"title"`
	Code     string `json:"code,omitempty"`
	Provider string `json:"provider,omitempty"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status,omitempty"`
	Year     int    `json:"year,omitempty"`
	Verified bool   `json:"verified"`
	Featured bool   `json:"featured"`

	File  *FileRef `json:"file,omitempty"`
	Image *FileRef `json:"image,omitempty"`

	Requirements []string `json:"requirements,omitempty"`
	Benefits     []string `json:"benefits,omitempty"`
	Eligibility  []string `json:"eligibility,omitempty"`

	Downloads int64 `json:"downloads"`
	Views     int64 `json:"views"`
	CreatedAt int64 `json:"created_at,omitempty"`
}

// Clone returns a deep copy, so draft edits never reach the cached record
// until commit.
func (r Record) Clone() Record {
	out := r
	if r.File != nil {
		f := *r.File
		out.File = &f
	}
	if r.Image != nil {
		f := *r.Image
		out.Image = &f
	}
	out.Requirements = append([]string(nil), r.Requirements...)
	out.Benefits = append([]string(nil), r.Benefits...)
	out.Eligibility = append([]string(nil), r.Eligibility...)
	return out
}

// Slot names a child collection attached to a parent record.
type Slot string

const (
	SlotQuiz      Slot = "quiz"
	SlotDocuments Slot = "documents"
	SlotFAQ       Slot = "faq"
)

// ChildRecord is a sub-entity owned by exactly one parent record. It has no
// identity outside the parent and is persisted wholesale with the parent save.
// The flat shape covers quiz items, FAQ entries and section-B documents.
type ChildRecord struct {
	Prompt      string   `json:"prompt,omitempty"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Name        string   `json:"name,omitempty"`
	File        *FileRef `json:"file,omitempty"`
}

func (c ChildRecord) Clone() ChildRecord {
	out := c
	out.Options = append([]string(nil), c.Options...)
	if c.File != nil {
		f := *c.File
		out.File = &f
	}
	return out
}
