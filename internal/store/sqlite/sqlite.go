package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"peerlink/internal/model"
)

const dateLayout = "2006-01-02"

// DB wraps a SQLite database holding the social dataset and the cached
// recommendation records.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		d.SetMaxOpenConns(1)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) Name() string { return "sqlite" }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS users (
	  id TEXT PRIMARY KEY,
	  username TEXT NOT NULL DEFAULT '',
	  first_name TEXT NOT NULL DEFAULT '',
	  last_name TEXT NOT NULL DEFAULT '',
	  interests TEXT NOT NULL DEFAULT '',
	  bio TEXT NOT NULL DEFAULT '',
	  location TEXT NOT NULL DEFAULT '',
	  occupation TEXT NOT NULL DEFAULT '',
	  date_of_birth TEXT,
	  eligible INTEGER NOT NULL DEFAULT 1
	);
	CREATE TABLE IF NOT EXISTS follows (
	  follower TEXT NOT NULL,
	  followee TEXT NOT NULL,
	  created_at INTEGER NOT NULL,
	  PRIMARY KEY (follower, followee)
	);
	CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee);
	CREATE TABLE IF NOT EXISTS posts (
	  id TEXT PRIMARY KEY,
	  author TEXT NOT NULL,
	  description TEXT NOT NULL DEFAULT '',
	  created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS likes (
	  user_id TEXT NOT NULL,
	  post_id TEXT NOT NULL,
	  created_at INTEGER NOT NULL,
	  PRIMARY KEY (user_id, post_id)
	);
	CREATE TABLE IF NOT EXISTS comments (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  user_id TEXT NOT NULL,
	  post_id TEXT NOT NULL,
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comments_user ON comments(user_id);
	CREATE TABLE IF NOT EXISTS recommendations (
	  id TEXT PRIMARY KEY,
	  source_user TEXT NOT NULL,
	  recommended_user TEXT NOT NULL,
	  score REAL NOT NULL,
	  mutual_connections INTEGER NOT NULL,
	  common_interests INTEGER NOT NULL,
	  reason TEXT NOT NULL,
	  created_at INTEGER NOT NULL,
	  updated_at INTEGER NOT NULL,
	  UNIQUE (source_user, recommended_user)
	);
	CREATE INDEX IF NOT EXISTS idx_recs_source ON recommendations(source_user);
	CREATE TABLE IF NOT EXISTS events (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  type TEXT NOT NULL,
	  payload TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
	`)
	return err
}

// UpsertUser inserts the profile or overwrites every field of an existing one.
func (d *DB) UpsertUser(ctx context.Context, u model.User) error {
	var dob *string
	if u.DateOfBirth != nil {
		s := u.DateOfBirth.Format(dateLayout)
		dob = &s
	}
	_, err := d.sql.ExecContext(ctx, `
	INSERT INTO users(id, username, first_name, last_name, interests, bio, location, occupation, date_of_birth, eligible)
	VALUES(?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET
	  username=excluded.username, first_name=excluded.first_name, last_name=excluded.last_name,
	  interests=excluded.interests, bio=excluded.bio, location=excluded.location,
	  occupation=excluded.occupation, date_of_birth=excluded.date_of_birth, eligible=excluded.eligible`,
		u.ID, u.Username, u.FirstName, u.LastName, u.Interests, u.Bio, u.Location, u.Occupation, dob, boolInt(u.Eligible))
	return err
}

// AddFollow records follower -> followee; a repeated edge is ignored.
func (d *DB) AddFollow(ctx context.Context, f model.Follow) error {
	_, err := d.sql.ExecContext(ctx, `INSERT OR IGNORE INTO follows(follower, followee, created_at) VALUES(?,?,?)`,
		f.Follower, f.Followee, unixNano(f.CreatedAt))
	return err
}

func (d *DB) RemoveFollow(ctx context.Context, follower, followee string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM follows WHERE follower=? AND followee=?`, follower, followee)
	return err
}

func (d *DB) AddPost(ctx context.Context, p model.Post) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO posts(id, author, description, created_at) VALUES(?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET author=excluded.author, description=excluded.description`,
		p.ID, p.Author, p.Description, unixNano(p.CreatedAt))
	return err
}

// AddInteraction stores a like (one per user and post) or a comment (any number).
func (d *DB) AddInteraction(ctx context.Context, in model.Interaction) error {
	q := `INSERT OR IGNORE INTO likes(user_id, post_id, created_at) VALUES(?,?,?)`
	if in.Kind == model.InteractionComment {
		q = `INSERT INTO comments(user_id, post_id, created_at) VALUES(?,?,?)`
	}
	_, err := d.sql.ExecContext(ctx, q, in.User, in.PostID, unixNano(in.CreatedAt))
	return err
}

const userColumns = `id, username, first_name, last_name, interests, bio, location, occupation, date_of_birth, eligible`

type scanner interface{ Scan(dest ...any) error }

func scanUser(s scanner) (model.User, error) {
	var u model.User
	var dob sql.NullString
	var eligible int
	if err := s.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Interests, &u.Bio, &u.Location, &u.Occupation, &dob, &eligible); err != nil {
		return model.User{}, err
	}
	if dob.Valid {
		if t, err := time.Parse(dateLayout, dob.String); err == nil {
			u.DateOfBirth = &t
		}
	}
	u.Eligible = eligible != 0
	return u, nil
}

func (d *DB) Profile(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.UserNotFound(id)
	}
	return u, err
}

// AllEligibleUsers returns users that allow being recommended, ordered by id.
func (d *DB) AllEligibleUsers(ctx context.Context) ([]model.User, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE eligible=1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (d *DB) FolloweesOf(ctx context.Context, user string) ([]string, error) {
	return d.strings(ctx, `SELECT followee FROM follows WHERE follower=? ORDER BY followee`, user)
}

func (d *DB) LikedPostsOf(ctx context.Context, user string) ([]string, error) {
	return d.strings(ctx, `SELECT post_id FROM likes WHERE user_id=? ORDER BY post_id`, user)
}

func (d *DB) CommentedPostsOf(ctx context.Context, user string) ([]string, error) {
	return d.strings(ctx, `SELECT DISTINCT post_id FROM comments WHERE user_id=? ORDER BY post_id`, user)
}

func (d *DB) strings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LoadRecords returns the user's cached recommendations, best first.
func (d *DB) LoadRecords(ctx context.Context, user string) ([]model.Record, error) {
	rows, err := d.sql.QueryContext(ctx, `
	SELECT id, source_user, recommended_user, score, mutual_connections, common_interests, reason, created_at, updated_at
	FROM recommendations WHERE source_user=?
	ORDER BY score DESC, created_at DESC, recommended_user ASC`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Record{}
	for rows.Next() {
		var r model.Record
		var created, updated int64
		if err := rows.Scan(&r.ID, &r.SourceUser, &r.RecommendedUser, &r.Score, &r.MutualConnections, &r.CommonInterests, &r.Reason, &created, &updated); err != nil {
			return nil, err
		}
		r.CreatedAt = fromUnixNano(created)
		r.UpdatedAt = fromUnixNano(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceRecords deletes the user's records and inserts recs in one transaction.
func (d *DB) ReplaceRecords(ctx context.Context, user string, recs []model.Record) (err error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM recommendations WHERE source_user=?`, user); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO recommendations(id, source_user, recommended_user, score, mutual_connections, common_interests, reason, created_at, updated_at)
	VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err = stmt.ExecContext(ctx, r.ID, user, r.RecommendedUser, r.Score, r.MutualConnections, r.CommonInterests, r.Reason, unixNano(r.CreatedAt), unixNano(r.UpdatedAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) DeleteRecords(ctx context.Context, user string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM recommendations WHERE source_user=?`, user)
	return err
}

// PutEvent appends an audit event such as recommendation feedback.
func (d *DB) PutEvent(ctx context.Context, ts time.Time, typ string, payload any) error {
	pb, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO events(ts, type, payload) VALUES(?,?,?)`, ts.Unix(), typ, string(pb))
	return err
}

// Event is a stored audit event.
type Event struct {
	TS      time.Time
	Type    string
	Payload string
}

// LoadEventsRange returns events in [start, end), optionally filtered by type.
func (d *DB) LoadEventsRange(ctx context.Context, start, end time.Time, typ string) ([]Event, error) {
	var rows *sql.Rows
	var err error
	if typ == "" {
		rows, err = d.sql.QueryContext(ctx, `SELECT ts, type, payload FROM events WHERE ts>=? AND ts<? ORDER BY ts, id`, start.Unix(), end.Unix())
	} else {
		rows, err = d.sql.QueryContext(ctx, `SELECT ts, type, payload FROM events WHERE ts>=? AND ts<? AND type=? ORDER BY ts, id`, start.Unix(), end.Unix(), typ)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ts int64
		var e Event
		if err := rows.Scan(&ts, &e.Type, &e.Payload); err != nil {
			return nil, err
		}
		e.TS = time.Unix(ts, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UnixNano()
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
