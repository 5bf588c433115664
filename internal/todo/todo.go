// Package todo defines the Todo record, its validation rules and the Store
// implemented by the persistence backends.
package todo

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Todo struct {
	ID        string     `json:"_id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	ExpireAt  *time.Time `json:"expireAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CreateInput struct {
	Title      string
	TTLSeconds *float64
}

// UpdateInput carries only the fields the caller sent; nil means unchanged.
type UpdateInput struct {
	Title      *string
	Completed  *bool
	TTLSeconds *float64
}

type Store interface {
	List(ctx context.Context) ([]Todo, error)
	Create(ctx context.Context, in CreateInput) (Todo, error)
	Get(ctx context.Context, id string) (Todo, error)
	Update(ctx context.Context, id string, in UpdateInput) (Todo, error)
	Delete(ctx context.Context, id string) (Todo, error)
	Ping(ctx context.Context) error
}

// MaxTTLSeconds is the longest TTL that still fits in a time.Duration.
const MaxTTLSeconds = float64(math.MaxInt64 / int64(time.Second))

// ValidateTTL rejects TTLs that cannot be turned into an expiry: NaN, infinities
// and values beyond MaxTTLSeconds.
func ValidateTTL(ttlSeconds *float64) error {
	if ttlSeconds == nil {
		return nil
	}
	ttl := *ttlSeconds
	if math.IsNaN(ttl) || math.IsInf(ttl, 0) {
		return NewValidationError("ttl must be a finite number of seconds")
	}
	if ttl > MaxTTLSeconds {
		return NewValidationError(fmt.Sprintf("ttl must not exceed %.0f seconds", MaxTTLSeconds))
	}
	return nil
}

// ExpireAt applies the TTL rule shared by create and update: a positive TTL
// expires the record that many seconds after now, anything else means no expiry.
// TTLs rejected by ValidateTTL also yield no expiry.
func ExpireAt(ttlSeconds *float64, now time.Time) *time.Time {
	if ttlSeconds == nil || ValidateTTL(ttlSeconds) != nil || *ttlSeconds <= 0 {
		return nil
	}
	at := now.Add(time.Duration(*ttlSeconds * float64(time.Second))).UTC()
	return &at
}

func NewTodo(in CreateInput, now time.Time) (Todo, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Todo{}, NewValidationError("Title is required")
	}
	if err := ValidateTTL(in.TTLSeconds); err != nil {
		return Todo{}, err
	}
	return Todo{
		ID:        primitive.NewObjectIDFromTimestamp(now).Hex(),
		Title:     title,
		ExpireAt:  ExpireAt(in.TTLSeconds, now),
		CreatedAt: now.UTC(),
	}, nil
}

// Apply validates in and returns t with the requested changes.
func Apply(t Todo, in UpdateInput, now time.Time) (Todo, error) {
	if err := ValidateUpdate(in); err != nil {
		return Todo{}, err
	}
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Completed != nil {
		t.Completed = *in.Completed
	}
	if in.TTLSeconds != nil {
		t.ExpireAt = ExpireAt(in.TTLSeconds, now)
	}
	return t, nil
}

func ValidateUpdate(in UpdateInput) error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return NewValidationError("Title cannot be empty")
	}
	return ValidateTTL(in.TTLSeconds)
}

func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, NewInvalidIDError()
	}
	return oid, nil
}

// Expired reports whether t is past its expiry at now.
func (t Todo) Expired(now time.Time) bool {
	return t.ExpireAt != nil && !now.Before(*t.ExpireAt)
}
