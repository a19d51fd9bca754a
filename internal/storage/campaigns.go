package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	campaignIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	campaignIDLength   = 6
	maxIDAttempts      = 5
)

func newCampaignID() string {
	b := make([]byte, campaignIDLength)
	for i := range b {
		b[i] = campaignIDAlphabet[rand.IntN(len(campaignIDAlphabet))]
	}
	return string(b)
}

// isDuplicateKey reports whether err is a primary key or unique violation.
func isDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// InsertCampaign stores a campaign under a fresh id. An id collision draws
// a new id, up to five times.
func (s *Store) InsertCampaign(text string, images []Image) (Campaign, error) {
	if images == nil {
		images = []Image{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return Campaign{}, fmt.Errorf("encoding images: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	for range maxIDAttempts {
		id := s.newID()
		_, err := s.exec(`INSERT INTO campaigns (id, body, images_json, created_at) VALUES (?, ?, ?, ?)`,
			id, text, string(imagesJSON), formatTime(now))
		if err == nil {
			return Campaign{ID: id, Text: text, Images: images, CreatedAt: now}, nil
		}
		if !isDuplicateKey(err) {
			return Campaign{}, fmt.Errorf("inserting campaign: %w", err)
		}
	}
	return Campaign{}, fmt.Errorf("inserting campaign: no free id after %d attempts", maxIDAttempts)
}

func (s *Store) GetCampaign(id string) (Campaign, error) {
	c, err := scanCampaign(s.queryRow(`SELECT id, body, images_json, created_at FROM campaigns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	return c, err
}

// ListCampaigns returns up to limit campaigns, newest first.
func (s *Store) ListCampaigns(limit int) ([]Campaign, error) {
	rows, err := s.query(`SELECT id, body, images_json, created_at FROM campaigns
		ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *Store) DeleteCampaign(id string) error {
	res, err := s.exec(`DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var imagesJSON, createdAt string
	if err := row.Scan(&c.ID, &c.Text, &imagesJSON, &createdAt); err != nil {
		return Campaign{}, err
	}
	if err := json.Unmarshal([]byte(imagesJSON), &c.Images); err != nil {
		return Campaign{}, fmt.Errorf("decoding images for campaign %s: %w", c.ID, err)
	}
	t, err := parseTime("created_at", createdAt)
	if err != nil {
		return Campaign{}, err
	}
	c.CreatedAt = t
	return c, nil
}
