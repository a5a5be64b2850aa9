package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/regions"
)

// Page size limits for List.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one journalled send attempt.
type Entry struct {
	ID         string    `json:"id"`
	PanelID    uint8     `json:"panel_id"`
	Mode       string    `json:"mode"`
	Effect     string    `json:"effect"`
	Brightness uint8     `json:"brightness"`
	Speed      uint8     `json:"speed"`
	RegionMask uint32    `json:"region_mask"`
	Regions    []int     `json:"regions"`
	SequenceID uint8     `json:"sequence_id"`
	Step       uint8     `json:"step"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromResult builds an entry from a dispatcher send result.
func FromResult(r dispatch.Result) Entry {
	e := Entry{
		PanelID:    r.Packet.PanelID,
		Mode:       r.Packet.Mode.String(),
		Effect:     r.Packet.Effect.String(),
		Brightness: r.Packet.Brightness,
		Speed:      r.Packet.Speed,
		RegionMask: uint32(r.Packet.Regions),
		Regions:    maskRegions(r.Packet.Regions),
		SequenceID: r.Packet.SequenceID,
		Step:       r.Packet.Step,
		Outcome:    r.Outcome(),
		CreatedAt:  r.At,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// Filter controls which entries List returns.
type Filter struct {
	PanelID *int   // optional: only this panel id (0 = broadcasts)
	Outcome string // optional: sent, failed, unknown_panel, suppressed
	Limit   int    // default DefaultLimit, max MaxLimit
	Offset  int
}

// ListResult is one page of journal entries, most recent first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores journal entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries in the dispatch_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "dsp-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dispatch_log (id, panel_id, mode, effect, brightness, speed, region_mask, sequence_id, step, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PanelID, e.Mode, e.Effect, e.Brightness, e.Speed,
		int64(e.RegionMask), e.SequenceID, e.Step, e.Outcome,
		nullableString(e.Error),
		e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting dispatch entry: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so the column stays NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.PanelID != nil {
		conditions = append(conditions, "panel_id = ?")
		args = append(args, *filter.PanelID)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM dispatch_log %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting dispatch entries: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, panel_id, mode, effect, brightness, speed, region_mask, sequence_id, step, outcome, error, created_at
		 FROM dispatch_log %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dispatch entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var mask int64
		var errText sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.PanelID, &e.Mode, &e.Effect, &e.Brightness, &e.Speed,
			&mask, &e.SequenceID, &e.Step, &e.Outcome, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning dispatch entry: %w", err)
		}

		e.RegionMask = uint32(mask) //nolint:gosec // written from a uint32
		e.Regions = maskRegions(regions.Set(e.RegionMask))
		if errText.Valid {
			e.Error = errText.String
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing dispatch timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatch entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func maskRegions(s regions.Set) []int {
	idx := s.Indices()
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = int(v)
	}
	return out
}
