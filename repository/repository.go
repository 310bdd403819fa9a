package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrDuplicate is returned when a unique relation already exists.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrNotFound is returned when a relation to remove does not exist.
	ErrNotFound = errors.New("relation not found")
)

// likeEscape is the ESCAPE character used in every LIKE clause; it works on MySQL and SQLite alike.
const likeEscape = "!"

// containsPattern builds a lowercase %substring% pattern with LIKE wildcards escaped.
func containsPattern(q string) string {
	return "%" + escapeLike(strings.ToLower(q)) + "%"
}

// prefixPattern builds a lowercase prefix% pattern.
func prefixPattern(q string) string {
	return escapeLike(strings.ToLower(q)) + "%"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}

// likeClause renders "LOWER(col) LIKE ? ESCAPE '!'".
func likeClause(col string) string {
	return "LOWER(" + col + ") LIKE ? ESCAPE '" + likeEscape + "'"
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// page applies offset/limit pagination.
func page(skip, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if skip > 0 {
			db = db.Offset(skip)
		}
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	}
}
