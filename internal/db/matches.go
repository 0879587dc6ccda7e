package db

import (
	"database/sql"
	"errors"
	"fmt"

	"redblue/internal/game"
)

// DB implements game.MatchStore on top of the matches table.

const matchColumns = `id, code, player1, player2, player1_score, player2_score,
	player1_choices, player2_choices, round, state`

func (d *DB) Create(rec game.MatchRecord) error {
	_, err := d.conn.Exec(`
		INSERT INTO matches (id, code, player1, player2, player1_score, player2_score,
			player1_choices, player2_choices, round, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.Code, nullable(rec.Player1), nullable(rec.Player2),
		rec.Score1, rec.Score2, rec.Choices1, rec.Choices2, rec.Round, rec.State)
	if err != nil {
		return fmt.Errorf("creating match %s: %w", rec.Code, err)
	}
	return nil
}

func (d *DB) GetByCode(code string) (game.MatchRecord, error) {
	row := d.conn.QueryRow(`SELECT `+matchColumns+` FROM matches WHERE code = $1`, code)
	return scanMatch(row)
}

func (d *DB) GetByID(id string) (game.MatchRecord, error) {
	row := d.conn.QueryRow(`SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	return scanMatch(row)
}

func (d *DB) Save(rec game.MatchRecord) error {
	res, err := d.conn.Exec(`
		UPDATE matches
		SET player1 = $1, player2 = $2, player1_score = $3, player2_score = $4,
			player1_choices = $5, player2_choices = $6, round = $7, state = $8
		WHERE code = $9
	`, nullable(rec.Player1), nullable(rec.Player2), rec.Score1, rec.Score2,
		rec.Choices1, rec.Choices2, rec.Round, rec.State, rec.Code)
	if err != nil {
		return fmt.Errorf("saving match %s: %w", rec.Code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving match %s: %w", rec.Code, err)
	}
	if n == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (d *DB) List(state game.State, code string, pageSize, pageNumber int) ([]game.MatchRecord, int, int, error) {
	where := `WHERE ($1 = '' OR state = $1) AND ($2 = '' OR code = $2)`

	var total int
	err := d.conn.QueryRow(`SELECT count(*) FROM matches `+where, string(state), code).Scan(&total)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("counting matches: %w", err)
	}
	if total == 0 {
		return nil, 0, 0, nil
	}
	totalPages := (total + pageSize - 1) / pageSize
	if pageNumber > totalPages {
		return nil, total, totalPages, game.ErrPageNotFound
	}

	rows, err := d.conn.Query(`
		SELECT `+matchColumns+` FROM matches `+where+`
		ORDER BY code LIMIT $3 OFFSET $4
	`, string(state), code, pageSize, (pageNumber-1)*pageSize)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var recs []game.MatchRecord
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, 0, 0, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("listing matches: %w", err)
	}
	return recs, total, totalPages, nil
}

func (d *DB) Delete(code string) error {
	if _, err := d.conn.Exec(`DELETE FROM matches WHERE code = $1`, code); err != nil {
		return fmt.Errorf("deleting match %s: %w", code, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (game.MatchRecord, error) {
	var rec game.MatchRecord
	var p1, p2 sql.NullString
	var state string
	err := row.Scan(&rec.ID, &rec.Code, &p1, &p2, &rec.Score1, &rec.Score2,
		&rec.Choices1, &rec.Choices2, &rec.Round, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return game.MatchRecord{}, game.ErrNotFound
	}
	if err != nil {
		return game.MatchRecord{}, fmt.Errorf("scanning match: %w", err)
	}
	rec.Player1 = p1.String
	rec.Player2 = p2.String
	rec.State = game.State(state)
	return rec, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
