package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/pkg/dbutil"
)

type InteractionRepo struct {
	db *sql.DB
}

func NewInteractionRepo(db *sql.DB) *InteractionRepo {
	return &InteractionRepo{db: db}
}

var interactionFields = []string{
	"interaction_id", "session_id", "user_id", "query", "answer",
	"citation_count", "ctime",
}

func (r *InteractionRepo) Create(ctx context.Context, it *model.Interaction) error {
	data := map[string]interface{}{
		"interaction_id": it.InteractionID,
		"session_id":     it.SessionID,
		"user_id":        it.UserID,
		"query":          it.Query,
		"answer":         it.Answer,
		"citation_count": it.CitationCount,
		"ctime":          it.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("interactions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *InteractionRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	where := map[string]interface{}{
		"session_id": sessionID,
		"_orderby":   "ctime desc",
		"_limit":     []uint{uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("interactions", where, interactionFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Interaction, 0)
	for rows.Next() {
		var it model.Interaction
		if err := rows.Scan(&it.InteractionID, &it.SessionID, &it.UserID,
			&it.Query, &it.Answer, &it.CitationCount, &it.Ctime); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
