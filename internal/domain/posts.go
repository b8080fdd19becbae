package domain

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Money goes over the wire as a JSON number.
	decimal.MarshalJSONWithoutQuotes = true
}

type PostType string

const (
	PostTypeRequest PostType = "REQUEST"
	PostTypeOffer   PostType = "OFFER"
)

func (t PostType) Valid() bool {
	return t == PostTypeRequest || t == PostTypeOffer
}

type PostStatus string

const (
	PostStatusOpen       PostStatus = "OPEN"
	PostStatusAccepted   PostStatus = "ACCEPTED"
	PostStatusInProgress PostStatus = "IN_PROGRESS"
	PostStatusCompleted  PostStatus = "COMPLETED"
	PostStatusCancelled  PostStatus = "CANCELLED"
)

var postTransitions = map[PostStatus][]PostStatus{
	PostStatusOpen:       {PostStatusAccepted, PostStatusCancelled},
	PostStatusAccepted:   {PostStatusInProgress, PostStatusCancelled},
	PostStatusInProgress: {PostStatusCompleted, PostStatusCancelled},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// The backend is authoritative; this is for display and early rejection.
func (s PostStatus) CanTransitionTo(next PostStatus) bool {
	for _, n := range postTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

func (s PostStatus) Terminal() bool {
	return s == PostStatusCompleted || s == PostStatusCancelled
}

type PaymentType string

const (
	PaymentTypeFixed      PaymentType = "FIXED"
	PaymentTypeHourly     PaymentType = "HOURLY"
	PaymentTypeNegotiable PaymentType = "NEGOTIABLE"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeFixed, PaymentTypeHourly, PaymentTypeNegotiable:
		return true
	}
	return false
}

type Category string

const (
	CategoryMoving   Category = "MOVING"
	CategoryPetCare  Category = "PET_CARE"
	CategoryErrands  Category = "ERRANDS"
	CategoryCleaning Category = "CLEANING"
	CategoryTutoring Category = "TUTORING"
	CategoryTechHelp Category = "TECH_HELP"
	CategoryOther    Category = "OTHER"
)

var Categories = []Category{
	CategoryMoving,
	CategoryPetCare,
	CategoryErrands,
	CategoryCleaning,
	CategoryTutoring,
	CategoryTechHelp,
	CategoryOther,
}

// Known reports whether c is one of the categories offered when creating a post.
// Unknown categories coming from the backend are kept as-is.
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

type Post struct {
	ID              int64            `json:"id"`
	Author          User             `json:"author"`
	Type            PostType         `json:"type"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Category        Category         `json:"category,omitempty"`
	LocationName    string           `json:"locationName,omitempty"`
	Latitude        *float64         `json:"latitude,omitempty"`
	Longitude       *float64         `json:"longitude,omitempty"`
	ScheduledTime   *Timestamp       `json:"scheduledTime,omitempty"`
	DurationMinutes *int             `json:"durationMinutes,omitempty"`
	PaymentType     PaymentType      `json:"paymentType,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	Status          PostStatus       `json:"status"`
	CreatedAt       Timestamp        `json:"createdAt"`
	UpdatedAt       Timestamp        `json:"updatedAt"`
}

type CreatePostRequest struct {
	Type            PostType         `json:"type"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Category        Category         `json:"category,omitempty"`
	LocationName    string           `json:"locationName,omitempty"`
	Latitude        *float64         `json:"latitude,omitempty"`
	Longitude       *float64         `json:"longitude,omitempty"`
	ScheduledTime   *Timestamp       `json:"scheduledTime,omitempty"`
	DurationMinutes *int             `json:"durationMinutes,omitempty"`
	PaymentType     PaymentType      `json:"paymentType,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
}

func (r CreatePostRequest) Validate() error {
	fields := map[string]string{}
	if !r.Type.Valid() {
		fields["type"] = "must be REQUEST or OFFER"
	}
	if strings.TrimSpace(r.Title) == "" {
		fields["title"] = "required"
	}
	if r.Category != "" && !r.Category.Known() {
		fields["category"] = "unknown category"
	}
	if r.PaymentType != "" && !r.PaymentType.Valid() {
		fields["paymentType"] = "must be FIXED, HOURLY or NEGOTIABLE"
	}
	if r.Price != nil && r.Price.IsNegative() {
		fields["price"] = "must not be negative"
	}
	if r.DurationMinutes != nil && *r.DurationMinutes <= 0 {
		fields["durationMinutes"] = "must be > 0"
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		fields["latitude"] = "latitude and longitude go together"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

// UpdatePostRequest is a partial update; nil fields are left unchanged.
type UpdatePostRequest struct {
	Type            *PostType        `json:"type,omitempty"`
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Category        *Category        `json:"category,omitempty"`
	LocationName    *string          `json:"locationName,omitempty"`
	Latitude        *float64         `json:"latitude,omitempty"`
	Longitude       *float64         `json:"longitude,omitempty"`
	ScheduledTime   *Timestamp       `json:"scheduledTime,omitempty"`
	DurationMinutes *int             `json:"durationMinutes,omitempty"`
	PaymentType     *PaymentType     `json:"paymentType,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	Status          *PostStatus      `json:"status,omitempty"`
}

func (r UpdatePostRequest) Validate() error {
	fields := map[string]string{}
	if r.Type != nil && !r.Type.Valid() {
		fields["type"] = "must be REQUEST or OFFER"
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		fields["title"] = "must not be empty"
	}
	if r.Category != nil && *r.Category != "" && !r.Category.Known() {
		fields["category"] = "unknown category"
	}
	if r.PaymentType != nil && !r.PaymentType.Valid() {
		fields["paymentType"] = "must be FIXED, HOURLY or NEGOTIABLE"
	}
	if r.Price != nil && r.Price.IsNegative() {
		fields["price"] = "must not be negative"
	}
	if r.DurationMinutes != nil && *r.DurationMinutes <= 0 {
		fields["durationMinutes"] = "must be > 0"
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		fields["latitude"] = "latitude and longitude go together"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

type FeedParams struct {
	Type     PostType
	Category Category
	// Page is zero-based and always sent; Size 0 leaves the backend default.
	Page int
	Size int
	Sort string
}

func (p FeedParams) Values() url.Values {
	v := url.Values{}
	if p.Type != "" {
		v.Set("type", string(p.Type))
	}
	if p.Category != "" {
		v.Set("category", string(p.Category))
	}
	v.Set("page", strconv.Itoa(max(p.Page, 0)))
	if p.Size > 0 {
		v.Set("size", strconv.Itoa(p.Size))
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	return v
}

type PostPage struct {
	Content       []Post `json:"content"`
	TotalElements int64  `json:"totalElements"`
	TotalPages    int    `json:"totalPages"`
}
