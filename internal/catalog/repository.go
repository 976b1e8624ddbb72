package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/config"
	"github.com/courtside/backend/internal/checkout"
	"github.com/courtside/backend/internal/models"
)

var (
	ErrGroundNotFound     = errors.New("ground not found")
	ErrTournamentNotFound = errors.New("tournament not found")
)

// Repository reads the grounds and tournaments catalog.
type Repository struct {
	pool    *pgxpool.Pool
	rewards config.RewardsConfig
}

// NewRepository creates a catalog repository.
func NewRepository(pool *pgxpool.Pool, rewards config.RewardsConfig) *Repository {
	return &Repository{pool: pool, rewards: rewards}
}

// Grounds returns all bookable grounds.
func (r *Repository) Grounds(ctx context.Context) ([]models.Ground, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, sport, city, price_paise, open_time, close_time, created_at
		FROM grounds ORDER BY city, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Ground{}
	for rows.Next() {
		var g models.Ground
		if err := rows.Scan(&g.ID, &g.Name, &g.Sport, &g.City, &g.PricePaise, &g.OpenTime, &g.CloseTime, &g.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// GetGround returns one ground by id.
func (r *Repository) GetGround(ctx context.Context, id string) (*models.Ground, error) {
	var g models.Ground
	err := r.pool.QueryRow(ctx, `SELECT id, name, sport, city, price_paise, open_time, close_time, created_at
		FROM grounds WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.Sport, &g.City, &g.PricePaise, &g.OpenTime, &g.CloseTime, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGroundNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Tournaments returns upcoming tournaments, soonest first.
func (r *Repository) Tournaments(ctx context.Context) ([]models.Tournament, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, sport, venue, city, entry_fee_paise, starts_at, max_teams, created_at
		FROM tournaments WHERE starts_at > now() ORDER BY starts_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Tournament{}
	for rows.Next() {
		var t models.Tournament
		if err := rows.Scan(&t.ID, &t.Name, &t.Sport, &t.Venue, &t.City, &t.EntryFeePaise, &t.StartsAt, &t.MaxTeams, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// GetTournament returns one tournament by id.
func (r *Repository) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	var t models.Tournament
	err := r.pool.QueryRow(ctx, `SELECT id, name, sport, venue, city, entry_fee_paise, starts_at, max_teams, created_at
		FROM tournaments WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Sport, &t.Venue, &t.City, &t.EntryFeePaise, &t.StartsAt, &t.MaxTeams, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ResolveItem maps an order type + item id to a priced item for checkout.
// Ground bookings cover the ground's open window on the next day; per-slot
// scheduling lives outside this service.
func (r *Repository) ResolveItem(ctx context.Context, orderType, itemID string) (*checkout.ResolvedItem, error) {
	switch orderType {
	case models.OrderTypeGround:
		g, err := r.GetGround(ctx, itemID)
		if err != nil {
			return nil, err
		}
		eventDate := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour)
		return &checkout.ResolvedItem{
			Name:        g.Name,
			Description: fmt.Sprintf("%s booking at %s", g.Sport, g.Name),
			AmountPaise: g.PricePaise,
			EventDate:   eventDate,
			Venue:       g.Name,
			Sport:       g.Sport,
			StartTime:   g.OpenTime,
			EndTime:     g.CloseTime,
		}, nil
	case models.OrderTypeTournament:
		t, err := r.GetTournament(ctx, itemID)
		if err != nil {
			return nil, err
		}
		return &checkout.ResolvedItem{
			Name:        t.Name,
			Description: fmt.Sprintf("entry to %s (%s)", t.Name, t.Sport),
			AmountPaise: t.EntryFeePaise,
			EventDate:   t.StartsAt,
			Venue:       t.Venue,
			Sport:       t.Sport,
		}, nil
	case models.OrderTypePass:
		return &checkout.ResolvedItem{
			Name:        "player pass",
			Description: fmt.Sprintf("%d%% discount on tournament entries for %d days", r.rewards.PassDiscountPercent, r.rewards.PassValidityDays),
			AmountPaise: r.rewards.PassPricePaise,
		}, nil
	default:
		return nil, fmt.Errorf("unknown order type %q", orderType)
	}
}
