package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/pkg/dbutil"
	appErr "github.com/xxxsen/bookrag/internal/pkg/errors"
)

type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

var profileFields = []string{
	"user_id", "email", "software_background", "hardware_background",
	"consent_given", "ctime", "mtime",
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (*model.Profile, error) {
	where := map[string]interface{}{"user_id": userID}
	sqlStr, args, err := builder.BuildSelect("profiles", where, profileFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	profile := &model.Profile{}
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&profile.UserID, &profile.Email, &profile.SoftwareBackground,
		&profile.HardwareBackground, &profile.ConsentGiven,
		&profile.Ctime, &profile.Mtime,
	)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Upsert inserts the profile or, on a key conflict, updates the mutable
// fields in place. Ctime survives updates.
func (r *ProfileRepo) Upsert(ctx context.Context, profile *model.Profile) error {
	now := time.Now().Unix()
	if profile.Ctime == 0 {
		profile.Ctime = now
	}
	profile.Mtime = now
	data := map[string]interface{}{
		"user_id":             profile.UserID,
		"email":               profile.Email,
		"software_background": profile.SoftwareBackground,
		"hardware_background": profile.HardwareBackground,
		"consent_given":       profile.ConsentGiven,
		"ctime":               profile.Ctime,
		"mtime":               profile.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("profiles", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err == nil {
		return nil
	}
	if !dbutil.IsConflict(err) {
		return err
	}
	update := map[string]interface{}{
		"email":               profile.Email,
		"software_background": profile.SoftwareBackground,
		"hardware_background": profile.HardwareBackground,
		"consent_given":       profile.ConsentGiven,
		"mtime":               profile.Mtime,
	}
	where := map[string]interface{}{"user_id": profile.UserID}
	sqlStr, args, err = builder.BuildUpdate("profiles", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
