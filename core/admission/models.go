package admission

import (
	"time"

	"github.com/trezcool/admissions/core/fee"
)

type Class string

const (
	ClassVIII Class = "VIII"
	ClassXI   Class = "XI"
)

var Classes = []Class{ClassVIII, ClassXI}

// rollPrefixes namespace roll numbers per class.
var rollPrefixes = map[Class]string{
	ClassVIII: "8",
	ClassXI:   "11",
}

func (c Class) Valid() bool {
	_, ok := rollPrefixes[c]
	return ok
}

// RollPrefix is the roll number namespace of the class.
func (c Class) RollPrefix() string {
	return rollPrefixes[c]
}

type Status string

const (
	StatusDraft          Status = "draft"
	StatusPaymentPending Status = "payment_pending"
	StatusSubmitted      Status = "submitted"
	StatusVerified       Status = "verified"
	StatusRejected       Status = "rejected"
)

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentUnderReview PaymentStatus = "under_review"
	PaymentVerified    PaymentStatus = "verified"
	PaymentRejected    PaymentStatus = "rejected"
)

// Categories
const (
	CategoryOffrServing  = "offr_serving"
	CategoryOffrRetired  = "offr_retired"
	CategoryJCOsServing  = "jcos_serving"
	CategoryJCOsRetired  = "jcos_retired"
	CategoryCAF          = "caf"
	CategoryCivilian     = "civilian"
	CategoryFATA         = "fata"
	CategoryBalochistan  = "balochistan"
	CategoryGilgit       = "gilgit"
	CategoryAJK          = "ajk"
	CategoryNavyAirforce = "navy_airforce"
)

var (
	Categories = []Category{
		{Value: CategoryOffrServing, Name: "Offr (Serving)"},
		{Value: CategoryOffrRetired, Name: "Offr (Retired/Shaheed)"},
		{Value: CategoryJCOsServing, Name: "JCOs/Sldrs (Serving)"},
		{Value: CategoryJCOsRetired, Name: "JCOs/Sldrs (Retired/Shaheed)"},
		{Value: CategoryCAF, Name: "CAF"},
		{Value: CategoryCivilian, Name: "Civilian"},
		{Value: CategoryFATA, Name: "FATA"},
		{Value: CategoryBalochistan, Name: "Balochistan"},
		{Value: CategoryGilgit, Name: "Gilgit Baltistan"},
		{Value: CategoryAJK, Name: "AJK"},
		{Value: CategoryNavyAirforce, Name: "Navy/Airforce"},
	}

	TestCenters = []string{
		"Peshawar", "Abbottabad", "Rawalpindi1", "Rawalpindi2", "Jhelum", "Lahore", "Sialkot", "Multan",
		"Hyderabad", "Quetta", "Karachi", "Sargodha", "Pano Aqil", "Muzaffarabad", "Gilgit", "Murree",
	}
)

type Category struct {
	Value string `json:"value"`
	Name  string `json:"name"`
}

// CategoryName returns the display name of a category value, or the value itself.
func CategoryName(value string) string {
	for _, c := range Categories {
		if c.Value == value {
			return c.Name
		}
	}
	return value
}

// Shaheed sub-status, only meaningful for retired categories.
const (
	ShaheedYes = "yes"
	ShaheedNo  = "no"

	ShaheedInService    = "in_service"
	ShaheedInWarOp      = "war_op"
	ShaheedInAccidental = "accidental"
)

type Application struct {
	ID        int    `json:"id"`
	AccountID int    `json:"account_id"`
	Class     Class  `json:"class"`
	Category  string `json:"category"`

	ShaheedStatus string `json:"shaheed_status"`
	ShaheedIn     string `json:"shaheed_in"`
	Display

	Name        string     `json:"name"`
	FatherName  string     `json:"father_name"`
	DateOfBirth *time.Time `json:"dob"`
	TestCenter  string     `json:"test_center"`
	Email       string     `json:"email"`
	Mobile      string     `json:"mobile"`

	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Amount        int           `json:"amount"`
	Tier          fee.Tier      `json:"tier"`

	ChallanNo   string     `json:"challan_no"`
	ChallanDate *time.Time `json:"challan_date"`
	FeeSlipRef  string     `json:"-"`

	RollNumber  string `json:"roll_number"` // empty until verified; immutable afterwards
	SecureToken string `json:"-"`
	ArtifactRef string `json:"-"`

	SubmissionDate time.Time `json:"submission_date"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

func (app Application) IsVerified() bool {
	return app.Status == StatusVerified
}

// Display holds the fields derived from the class, category and shaheed sub-status. See Derive.
type Display struct {
	Remarks     string `json:"remarks"`
	StatusLabel string `json:"status_label"`
	Entry       string `json:"entry"`
}

// Artifact is a generated document ready to be served.
type Artifact struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Dashboard is what an applicant sees: the application and its current price.
type Dashboard struct {
	Application Application `json:"application"`
	Quote       *fee.Quote  `json:"quote,omitempty"`
	FeeError    string      `json:"fee_error,omitempty"`
	SessionOpen bool        `json:"session_open"`
}

type Session struct {
	Class  Class `json:"class"`
	IsOpen bool  `json:"is_open"`
}

type TemplateCategory string

const (
	TemplateGeneral      TemplateCategory = "general"
	TemplateVerification TemplateCategory = "verification"
	TemplateRejection    TemplateCategory = "rejection"
	TemplateAnnouncement TemplateCategory = "announcement"
)

// MessageTemplate is a reusable broadcast message. Body may use the placeholders listed in RenderPlaceholders.
type MessageTemplate struct {
	ID        int              `json:"id"`
	Title     string           `json:"title"`
	Category  TemplateCategory `json:"category"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
	CreatedBy int              `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// BulkResult reports the outcome of one application in a bulk action.
type BulkResult struct {
	ID         int    `json:"id"`
	OK         bool   `json:"ok"`
	RollNumber string `json:"roll_number,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Count struct {
	Key   string `json:"key" db:"key"`
	Total int    `json:"total" db:"total"`
}

type Analytics struct {
	Total      int     `json:"total"`
	ByCategory []Count `json:"by_category"`
	ByStatus   []Count `json:"by_status"`
	ByCenter   []Count `json:"by_test_center"`
	ByDay      []Count `json:"by_day"` // YYYY-MM-DD, since the requested date
}
