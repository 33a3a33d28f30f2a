// Package repair implements EventBook completeness repair (spec §4.9):
// incoming books to a projector/saga/PM may be partial (from a lossy
// bus, or from a saga passing a source book through); a Repairer
// detects incompleteness by EventBook.IsComplete and re-fetches the
// full book from the owning aggregate's repository before dispatch.
// Grounded on internal/repository's Get, which already performs the
// snapshot+tail composition this package leans on.
package repair

import (
	"context"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/repository"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
)

// Repairer re-fetches a partial EventBook from the repository that
// owns the aggregate it belongs to.
type Repairer struct {
	repo   *repository.Repository
	logger mlog.Logger
}

// New builds a Repairer backed by repo.
func New(repo *repository.Repository, logger mlog.Logger) *Repairer {
	if logger == nil {
		logger = mlog.NopLogger{}
	}

	return &Repairer{repo: repo, logger: logger}
}

// Repair returns book unchanged if it is already complete; otherwise
// it re-fetches the complete EventBook for the same (edition, domain,
// root) via the repository.
func (r *Repairer) Repair(ctx context.Context, book model.EventBook) (model.EventBook, error) {
	if book.IsComplete() {
		return book, nil
	}

	r.logger.Warnf("repair: incomplete event book for %s/%s, re-fetching", book.Cover.Domain, book.Cover.Root)

	full, err := r.repo.Get(ctx, book.Cover.Edition, book.Cover.Domain, book.Cover.Root)
	if err != nil {
		return book, err
	}

	full.Cover.CorrelationID = book.Cover.CorrelationID

	return full, nil
}
