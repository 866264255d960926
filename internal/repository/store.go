package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/pta-newsletter/internal/db"
)

// Repos groups the repositories one unit of work operates on.
type Repos struct {
	Campaigns  CampaignRepositoryInterface
	Sections   SectionRepositoryInterface
	Content    ContentRepositoryInterface
	Sources    SourceRepositoryInterface
	Deliveries DeliveryRepositoryInterface
}

// Store hands out repositories, either directly or bound to a transaction.
type Store interface {
	Repos() Repos
	// WithinTx commits when fn returns nil and discards every write otherwise.
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(conn *sql.DB) *SQLStore {
	return &SQLStore{DB: conn}
}

func reposOn(ex db.Executor) Repos {
	return Repos{
		Campaigns:  &CampaignRepository{DB: ex},
		Sections:   &SectionRepository{DB: ex},
		Content:    &ContentRepository{DB: ex},
		Sources:    &SourceRepository{DB: ex},
		Deliveries: &DeliveryRepository{DB: ex},
	}
}

func (s *SQLStore) Repos() Repos {
	return reposOn(s.DB)
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	return db.InTx(ctx, s.DB, func(tx *sql.Tx) error {
		return fn(reposOn(tx))
	})
}

var _ Store = (*SQLStore)(nil)
