package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/common"
)

// Category is a tracked daily counter.
type Category string

const (
	CategoryReviews   Category = "reviews"
	CategoryDemos     Category = "demos"
	CategoryCallbacks Category = "callbacks"
)

var Categories = []Category{CategoryReviews, CategoryDemos, CategoryCallbacks}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !slices.Contains(Categories, c) {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Goals are per-day targets for each category.
type Goals struct {
	Reviews   int `json:"reviews" validate:"gte=0,lte=1000"`
	Demos     int `json:"demos" validate:"gte=0,lte=1000"`
	Callbacks int `json:"callbacks" validate:"gte=0,lte=1000"`
}

func (g Goals) For(c Category) int {
	switch c {
	case CategoryReviews:
		return g.Reviews
	case CategoryDemos:
		return g.Demos
	case CategoryCallbacks:
		return g.Callbacks
	}
	return 0
}

type UserFields struct {
	Name  string `json:"name" validate:"required,max=80"`
	Role  string `json:"role" validate:"omitempty,oneof=agent manager admin"`
	Goals Goals  `json:"goals"`
}

type User struct {
	ID        ID        `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserFields
}

type DailyLogFields struct {
	UserID   ID       `json:"user_id"`
	Date     string   `json:"date" validate:"required,datetime=2006-01-02"`
	Category Category `json:"category" validate:"required,oneof=reviews demos callbacks"`
	Count    int      `json:"count" validate:"gte=0"`
}

// DailyLogEntry is one user's count for one category on one day.
type DailyLogEntry struct {
	ID        ID        `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	DailyLogFields
}

type AppointmentFields struct {
	UserID       ID        `json:"user_id"`
	ClientName   string    `json:"client_name" validate:"required,max=120"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Notes        string    `json:"notes" validate:"max=2000"`
	CountsAsDemo bool      `json:"counts_as_demo"`
}

type Appointment struct {
	ID        ID        `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	AppointmentFields
}

type FeedPostFields struct {
	UserID   ID       `json:"user_id"`
	UserName string   `json:"user_name"`
	Content  string   `json:"content" validate:"required,max=2000"`
	Category Category `json:"category,omitempty" validate:"omitempty,oneof=reviews demos callbacks"`
	Auto     bool     `json:"auto"`
}

// FeedPost is stored locally with its likes and comments nested; remotely
// those live in their own tables.
type FeedPost struct {
	ID        ID        `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	FeedPostFields
	Likes    []FeedLike    `json:"likes"`
	Comments []FeedComment `json:"comments"`
}

// Clone copies the nested slices so the copy can be mutated safely.
func (p FeedPost) Clone() FeedPost {
	p.Likes = slices.Clone(p.Likes)
	p.Comments = slices.Clone(p.Comments)
	return p
}

func (p FeedPost) LikedBy(user ID) bool {
	return slices.ContainsFunc(p.Likes, func(l FeedLike) bool { return l.UserID == user })
}

type FeedLikeFields struct {
	PostID ID `json:"post_id"`
	UserID ID `json:"user_id"`
}

type FeedLike struct {
	ID        ID        `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	FeedLikeFields
}

type FeedCommentFields struct {
	PostID   ID     `json:"post_id"`
	UserID   ID     `json:"user_id"`
	UserName string `json:"user_name"`
	Content  string `json:"content" validate:"required,max=1000"`
}

type FeedComment struct {
	ID        ID        `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	FeedCommentFields
}

// AppSettings are team-wide preferences stored under appSettings.
type AppSettings struct {
	TeamName            string `json:"teamName"`
	DefaultGoals        Goals  `json:"defaultGoals"`
	CelebrationsEnabled bool   `json:"celebrationsEnabled"`
	AutoPostEnabled     bool   `json:"autoPostEnabled"`
}

func DefaultSettings() AppSettings {
	return AppSettings{
		TeamName:            "Team",
		DefaultGoals:        Goals{Reviews: 5, Demos: 3, Callbacks: 10},
		CelebrationsEnabled: true,
		AutoPostEnabled:     true,
	}
}

// MergeSettings overlays the stored JSON onto the defaults so settings
// added after the value was written keep their default.
func MergeSettings(stored json.RawMessage) (AppSettings, error) {
	s := DefaultSettings()
	if len(stored) == 0 || string(stored) == "null" {
		return s, nil
	}
	if err := json.Unmarshal(stored, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to merge settings: %w", err)
	}
	return s, nil
}

// Theme modes.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// DailySnapshot freezes every user's counts for one date.
type DailySnapshot struct {
	Date   string                      `json:"date"`
	Counts map[string]map[Category]int `json:"counts"`
}

// Payload encodes the remote-facing fields of an entity.
func Payload(fields any) (json.RawMessage, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return b, nil
}

// decodeRow fills fields from a persisted row and returns its identity.
func decodeRow(r common.Row, fields any) (ID, time.Time, error) {
	if err := json.Unmarshal(r.Data, fields); err != nil {
		return ID{}, time.Time{}, fmt.Errorf("failed to decode row %s: %w", r.ID, err)
	}
	return Confirmed(r.ID), r.CreatedAt, nil
}

func UserFromRow(r common.Row) (User, error) {
	var u User
	var err error
	u.ID, u.CreatedAt, err = decodeRow(r, &u.UserFields)
	return u, err
}

func DailyLogFromRow(r common.Row) (DailyLogEntry, error) {
	var e DailyLogEntry
	var err error
	e.ID, e.CreatedAt, err = decodeRow(r, &e.DailyLogFields)
	return e, err
}

func AppointmentFromRow(r common.Row) (Appointment, error) {
	var a Appointment
	var err error
	a.ID, a.CreatedAt, err = decodeRow(r, &a.AppointmentFields)
	return a, err
}

func FeedPostFromRow(r common.Row) (FeedPost, error) {
	var p FeedPost
	var err error
	p.ID, p.CreatedAt, err = decodeRow(r, &p.FeedPostFields)
	return p, err
}

func FeedLikeFromRow(r common.Row) (FeedLike, error) {
	var l FeedLike
	var err error
	l.ID, l.CreatedAt, err = decodeRow(r, &l.FeedLikeFields)
	return l, err
}

func FeedCommentFromRow(r common.Row) (FeedComment, error) {
	var c FeedComment
	var err error
	c.ID, c.CreatedAt, err = decodeRow(r, &c.FeedCommentFields)
	return c, err
}
