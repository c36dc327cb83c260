// Package export writes a point-in-time JSON snapshot of the board to a sink.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/cryptox"
)

// Version is the export format version.
const Version = "1.0"

type Snapshot struct {
	Users        []models.User          `json:"users"`
	DailyLogs    []models.DailyLogEntry `json:"dailyLogs"`
	Appointments []models.Appointment   `json:"appointments"`
	Feed         []models.FeedPost      `json:"feed"`
	ExportDate   time.Time              `json:"exportDate"`
	Version      string                 `json:"version"`
}

// FromState captures the collections of s. Nil collections encode as [].
func FromState(s engine.State, now time.Time) Snapshot {
	return Snapshot{
		Users:        nonNil(s.Users),
		DailyLogs:    nonNil(s.DailyLogs),
		Appointments: nonNil(s.Appointments),
		Feed:         nonNil(s.Feed),
		ExportDate:   now.UTC(),
		Version:      Version,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s Snapshot) Encode() ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return b, nil
}

// FileName is the canonical name of an export taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("goalboard-export-%s.json", t.UTC().Format(time.DateOnly))
}

// Result describes a written export.
type Result struct {
	Location string
	URL      string
	Digest   string
	Size     int
}

type Sink interface {
	Write(ctx context.Context, name string, body []byte, digest string) (Result, error)
}

// Write encodes snap and hands it to sink.
func Write(ctx context.Context, sink Sink, snap Snapshot) (Result, error) {
	body, err := snap.Encode()
	if err != nil {
		return Result{}, err
	}
	digest := cryptox.Digest(body)
	res, err := sink.Write(ctx, FileName(snap.ExportDate), body, digest)
	if err != nil {
		return Result{}, err
	}
	res.Digest, res.Size = digest, len(body)
	return res, nil
}
