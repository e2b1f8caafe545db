package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cardmarket/internal/model"
)

// dialect captures the SQL differences between the supported drivers.
// Queries are written with ? placeholders and rebound when needed.
type dialect struct {
	name          string
	schema        []string
	numbered      bool   // $1, $2 placeholders
	insertIgnore  string // insert prefix that skips conflicting rows
	ignoreSuffix  string
	upsertPost    string
	upsertSetting string
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db        *sql.DB
	d         dialect
	cardLocks *KeyMutex
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &SQLStore{db: db, d: d, cardLocks: NewKeyMutex()}, nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.rebind(query), args...)
}

const cardColumns = `id, name, description, price, category, seller_id,
	front_channel_id, front_message_id, front_filename,
	back_channel_id, back_message_id, back_filename, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row scanner) (model.Card, error) {
	var c model.Card
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.Category, &c.SellerID,
		&c.FrontImage.ChannelID, &c.FrontImage.MessageID, &c.FrontImage.Filename,
		&c.BackImage.ChannelID, &c.BackImage.MessageID, &c.BackImage.Filename, &c.CreatedAt)
	return c, err
}

func (s *SQLStore) listCards(ctx context.Context, where string, args ...interface{}) ([]model.Card, error) {
	rows, err := s.query(ctx, `SELECT `+cardColumns+` FROM cards `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// ListCards returns all cards ordered by creation.
func (s *SQLStore) ListCards(ctx context.Context) ([]model.Card, error) {
	return s.listCards(ctx, "")
}

// ListCardsByCategory returns the cards of one category.
func (s *SQLStore) ListCardsByCategory(ctx context.Context, category string) ([]model.Card, error) {
	return s.listCards(ctx, "WHERE category = ?", category)
}

// ListCategories returns the sorted distinct categories.
func (s *SQLStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT DISTINCT category FROM cards ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCard returns the card with id.
func (s *SQLStore) GetCard(ctx context.Context, id string) (*model.Card, error) {
	c, err := scanCard(s.queryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("card", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return &c, nil
}

// CreateCard inserts a card.
func (s *SQLStore) CreateCard(ctx context.Context, c model.Card) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.exec(ctx, `INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.Price, c.Category, c.SellerID,
		c.FrontImage.ChannelID, c.FrontImage.MessageID, c.FrontImage.Filename,
		c.BackImage.ChannelID, c.BackImage.MessageID, c.BackImage.Filename, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// DeleteCard removes the card with id.
func (s *SQLStore) DeleteCard(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFound("card", id)
	}
	return nil
}

const sellerColumns = `id, discord_id, name, posting_channel_id, tracking_channel_id, created_at`

func scanSeller(row scanner) (model.Seller, error) {
	var sl model.Seller
	err := row.Scan(&sl.ID, &sl.DiscordID, &sl.Name, &sl.PostingChannelID, &sl.TrackingChannelID, &sl.CreatedAt)
	return sl, err
}

// ListSellers returns all sellers.
func (s *SQLStore) ListSellers(ctx context.Context) ([]model.Seller, error) {
	rows, err := s.query(ctx, `SELECT `+sellerColumns+` FROM sellers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}
	defer rows.Close()

	var out []model.Seller
	for rows.Next() {
		sl, err := scanSeller(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seller: %w", err)
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

func (s *SQLStore) getSeller(ctx context.Context, column, value string) (*model.Seller, error) {
	sl, err := scanSeller(s.queryRow(ctx, `SELECT `+sellerColumns+` FROM sellers WHERE `+column+` = ?`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("seller", value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}
	return &sl, nil
}

// GetSeller returns the seller with id.
func (s *SQLStore) GetSeller(ctx context.Context, id string) (*model.Seller, error) {
	return s.getSeller(ctx, "id", id)
}

// GetSellerByDiscordID returns the seller profile of a chat user.
func (s *SQLStore) GetSellerByDiscordID(ctx context.Context, discordID string) (*model.Seller, error) {
	return s.getSeller(ctx, "discord_id", discordID)
}

// CreateSeller inserts a seller unless the chat user already has one.
func (s *SQLStore) CreateSeller(ctx context.Context, sl model.Seller) error {
	if sl.CreatedAt.IsZero() {
		sl.CreatedAt = time.Now()
	}
	res, err := s.exec(ctx, s.d.insertIgnore+` sellers (`+sellerColumns+`) VALUES (?, ?, ?, ?, ?, ?)`+s.d.ignoreSuffix,
		sl.ID, sl.DiscordID, sl.Name, sl.PostingChannelID, sl.TrackingChannelID, sl.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create seller: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Invalid("user is already registered as a seller")
	}
	return nil
}

// UpdateSellerChannels sets the posting and tracking channels of a seller.
func (s *SQLStore) UpdateSellerChannels(ctx context.Context, id, postingChannelID, trackingChannelID string) (*model.Seller, error) {
	if _, err := s.GetSeller(ctx, id); err != nil {
		return nil, err
	}
	_, err := s.exec(ctx, `UPDATE sellers SET posting_channel_id = ?, tracking_channel_id = ? WHERE id = ?`,
		postingChannelID, trackingChannelID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update seller: %w", err)
	}
	return s.GetSeller(ctx, id)
}

const claimColumns = `id, user_id, username, card_id, card_name, price, paid, claimed_at`

func scanClaim(row scanner) (model.Claim, error) {
	var c model.Claim
	err := row.Scan(&c.ID, &c.UserID, &c.Username, &c.CardID, &c.CardName, &c.Price, &c.Paid, &c.Timestamp)
	return c, err
}

func (s *SQLStore) listClaims(ctx context.Context, where string, args ...interface{}) ([]model.Claim, error) {
	rows, err := s.query(ctx, `SELECT `+claimColumns+` FROM claims `+where+` ORDER BY claimed_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var out []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListClaims returns all claims, newest first.
func (s *SQLStore) ListClaims(ctx context.Context) ([]model.Claim, error) {
	return s.listClaims(ctx, "")
}

// ListClaimsByUser returns a user's claims, newest first.
func (s *SQLStore) ListClaimsByUser(ctx context.Context, userID string) ([]model.Claim, error) {
	return s.listClaims(ctx, "WHERE user_id = ?", userID)
}

// GetClaim returns the claim with id.
func (s *SQLStore) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	c, err := scanClaim(s.queryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("claim", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return &c, nil
}

// InsertClaim inserts c unless its card is already claimed. The unique
// card_id column makes the check and insert one statement.
func (s *SQLStore) InsertClaim(ctx context.Context, c model.Claim) error {
	unlock := s.cardLocks.Lock(c.CardID)
	defer unlock()

	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	res, err := s.exec(ctx, s.d.insertIgnore+` claims (`+claimColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`+s.d.ignoreSuffix,
		c.ID, c.UserID, c.Username, c.CardID, c.CardName, c.Price, c.Paid, c.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("card %q: %w", c.CardID, model.ErrAlreadyClaimed)
	}
	return nil
}

// DeleteClaim removes userID's claim on cardID.
func (s *SQLStore) DeleteClaim(ctx context.Context, userID, cardID string) error {
	unlock := s.cardLocks.Lock(cardID)
	defer unlock()

	res, err := s.exec(ctx, `DELETE FROM claims WHERE user_id = ? AND card_id = ?`, userID, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("card %q: %w", cardID, model.ErrNotClaimed)
	}
	return nil
}

// UpdateClaim applies patch to the claim with claimID.
func (s *SQLStore) UpdateClaim(ctx context.Context, claimID string, patch model.ClaimPatch) (*model.Claim, error) {
	if _, err := s.GetClaim(ctx, claimID); err != nil {
		return nil, err
	}
	if patch.Paid != nil {
		if _, err := s.exec(ctx, `UPDATE claims SET paid = ? WHERE id = ?`, *patch.Paid, claimID); err != nil {
			return nil, fmt.Errorf("failed to update claim: %w", err)
		}
	}
	return s.GetClaim(ctx, claimID)
}

const postColumns = `category, channel_id, message_id, updated_at`

func (s *SQLStore) listPosts(ctx context.Context, where string, args ...interface{}) ([]model.CategoryPost, error) {
	rows, err := s.query(ctx, `SELECT `+postColumns+` FROM category_posts `+where+` ORDER BY category, channel_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list category posts: %w", err)
	}
	defer rows.Close()

	var out []model.CategoryPost
	for rows.Next() {
		var p model.CategoryPost
		if err := rows.Scan(&p.Category, &p.ChannelID, &p.MessageID, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetCategoryPost returns the post recorded for (category, channel).
func (s *SQLStore) GetCategoryPost(ctx context.Context, category, channelID string) (*model.CategoryPost, error) {
	var p model.CategoryPost
	err := s.queryRow(ctx, `SELECT `+postColumns+` FROM category_posts WHERE category = ? AND channel_id = ?`,
		category, channelID).Scan(&p.Category, &p.ChannelID, &p.MessageID, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("category post", category+"@"+channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category post: %w", err)
	}
	return &p, nil
}

// UpsertCategoryPost records post, replacing the message id of an existing pair.
func (s *SQLStore) UpsertCategoryPost(ctx context.Context, post model.CategoryPost) error {
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = time.Now()
	}
	_, err := s.exec(ctx, s.d.upsertPost, post.Category, post.ChannelID, post.MessageID, post.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert category post: %w", err)
	}
	return nil
}

// ListCategoryPosts returns all recorded posts.
func (s *SQLStore) ListCategoryPosts(ctx context.Context) ([]model.CategoryPost, error) {
	return s.listPosts(ctx, "")
}

// ListPostsForCategory returns the posts of one category across channels.
func (s *SQLStore) ListPostsForCategory(ctx context.Context, category string) ([]model.CategoryPost, error) {
	return s.listPosts(ctx, "WHERE category = ?", category)
}

// FindOrCreateUser registers user unless already known.
func (s *SQLStore) FindOrCreateUser(ctx context.Context, user model.User) (*model.User, bool, error) {
	res, err := s.exec(ctx, s.d.insertIgnore+` users (id, username) VALUES (?, ?)`+s.d.ignoreSuffix, user.ID, user.Username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to register user: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return &user, true, nil
	}

	var found model.User
	err = s.queryRow(ctx, `SELECT id, username FROM users WHERE id = ?`, user.ID).Scan(&found.ID, &found.Username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}
	return &found, false, nil
}

// ListUsers returns registered users.
func (s *SQLStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.query(ctx, `SELECT id, username FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const settingsKey = "presentation"

// GetSettings returns the stored settings or the defaults.
func (s *SQLStore) GetSettings(ctx context.Context) (model.Settings, error) {
	var raw string
	err := s.queryRow(ctx, `SELECT value FROM settings WHERE name = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	settings := model.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return model.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

// SaveSettings replaces the stored settings.
func (s *SQLStore) SaveSettings(ctx context.Context, settings model.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if _, err := s.exec(ctx, s.d.upsertSetting, settingsKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Stats returns record counts per table.
func (s *SQLStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"driver": s.d.name}
	for _, table := range []string{"cards", "sellers", "claims", "category_posts", "users"} {
		var n int64
		if err := s.queryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = n
	}

	dbStats := s.db.Stats()
	stats["open_connections"] = dbStats.OpenConnections
	stats["in_use"] = dbStats.InUse
	stats["idle"] = dbStats.Idle
	return stats, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
