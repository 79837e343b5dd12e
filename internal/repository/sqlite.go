package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/alexiscuevases/ondesk/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			team_id TEXT,
			name TEXT NOT NULL,
			system_prompt TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			temperature REAL NOT NULL DEFAULT 0.7,
			max_tokens INTEGER NOT NULL DEFAULT 1000,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL,
			url TEXT NOT NULL,
			headers_schema TEXT,
			params_schema TEXT,
			response_schema TEXT,
			timeout INTEGER NOT NULL DEFAULT 30000,
			retry_count INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (agent_id) REFERENCES agents(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_agent ON endpoints(agent_id, is_active)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			agent_id TEXT,
			customer_name TEXT,
			customer_email TEXT,
			customer_phone TEXT,
			channel TEXT NOT NULL DEFAULT 'web',
			external_ref TEXT,
			priority TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL DEFAULT 'open',
			closed_at DATETIME,
			version INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'received',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_conversation ON events(conversation_id, ts)`,
		`CREATE TABLE IF NOT EXISTS action_invocations (
			invocation_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			endpoint_id TEXT NOT NULL,
			parameters TEXT,
			success INTEGER NOT NULL,
			status_code INTEGER,
			error TEXT,
			duration_ms INTEGER NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_action_invocations_conversation ON action_invocations(conversation_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Columns added after the first release (SQLite has limited ALTER TABLE support).
	if err := s.ensureColumn("conversations", "version", "ALTER TABLE conversations ADD COLUMN version INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := s.ensureColumn("conversations", "external_ref", "ALTER TABLE conversations ADD COLUMN external_ref TEXT"); err != nil {
		return err
	}

	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateAgent creates a new agent.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, team_id, name, system_prompt, model, temperature, max_tokens, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agent.ID, nullString(agent.TeamID), agent.Name, agent.SystemPrompt, agent.Model, agent.Temperature, agent.MaxTokens, agent.Status, agent.CreatedAt)
	return err
}

// GetAgent retrieves an agent by ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	var agent domain.Agent
	var teamID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, system_prompt, model, temperature, max_tokens, status, created_at FROM agents WHERE id = ?`,
		agentID).Scan(&agent.ID, &teamID, &agent.Name, &agent.SystemPrompt, &agent.Model, &agent.Temperature, &agent.MaxTokens, &agent.Status, &agent.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	agent.TeamID = teamID.String
	return &agent, nil
}

// CreateEndpoint creates a new endpoint.
func (s *SQLiteStore) CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) error {
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = time.Now().UTC()
	}
	headers, err := marshalColumn(endpoint.HeadersSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal headers_schema: %w", err)
	}
	params, err := marshalColumn(endpoint.ParamsSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal params_schema: %w", err)
	}
	response, err := marshalColumn(endpoint.ResponseSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal response_schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO endpoints (id, agent_id, name, description, method, url, headers_schema, params_schema, response_schema, timeout, retry_count, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		endpoint.ID, endpoint.AgentID, endpoint.Name, endpoint.Description, endpoint.Method, endpoint.URL,
		headers, params, response, endpoint.TimeoutMs, endpoint.RetryCount, endpoint.IsActive, endpoint.CreatedAt)
	return err
}

const endpointColumns = `id, agent_id, name, description, method, url, headers_schema, params_schema, response_schema, timeout, retry_count, is_active, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEndpoint(row rowScanner) (*domain.Endpoint, error) {
	var ep domain.Endpoint
	var headers, params, response sql.NullString
	if err := row.Scan(&ep.ID, &ep.AgentID, &ep.Name, &ep.Description, &ep.Method, &ep.URL,
		&headers, &params, &response, &ep.TimeoutMs, &ep.RetryCount, &ep.IsActive, &ep.CreatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(headers, &ep.HeadersSchema); err != nil {
		return nil, fmt.Errorf("endpoint %s headers_schema: %w", ep.ID, err)
	}
	if err := unmarshalColumn(params, &ep.ParamsSchema); err != nil {
		return nil, fmt.Errorf("endpoint %s params_schema: %w", ep.ID, err)
	}
	if err := unmarshalColumn(response, &ep.ResponseSchema); err != nil {
		return nil, fmt.Errorf("endpoint %s response_schema: %w", ep.ID, err)
	}
	return &ep, nil
}

// GetEndpoint retrieves an endpoint by ID.
func (s *SQLiteStore) GetEndpoint(ctx context.Context, endpointID string) (*domain.Endpoint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+endpointColumns+` FROM endpoints WHERE id = ?`, endpointID)
	ep, err := scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ep, nil
}

// ListActiveEndpoints lists the active endpoints of an agent.
func (s *SQLiteStore) ListActiveEndpoints(ctx context.Context, agentID string) ([]domain.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+endpointColumns+` FROM endpoints WHERE agent_id = ? AND is_active = 1 ORDER BY created_at ASC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []domain.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, *ep)
	}
	return endpoints, rows.Err()
}

// CreateConversation creates a new conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = domain.ConversationStatusOpen
	}
	var closedAt sql.NullTime
	if c.ClosedAt != nil {
		closedAt = sql.NullTime{Time: *c.ClosedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, agent_id, customer_name, customer_email, customer_phone, channel, external_ref, priority, status, closed_at, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nullString(c.AgentID), c.CustomerName, c.CustomerEmail, c.CustomerPhone, c.Channel, nullString(c.ExternalRef),
		c.Priority, c.Status, closedAt, c.Version, c.CreatedAt)
	return err
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var c domain.Conversation
	var agentID, name, email, phone, externalRef sql.NullString
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, customer_name, customer_email, customer_phone, channel, external_ref, priority, status, closed_at, version, created_at
		 FROM conversations WHERE id = ?`, conversationID).
		Scan(&c.ID, &agentID, &name, &email, &phone, &c.Channel, &externalRef, &c.Priority, &c.Status, &closedAt, &c.Version, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.AgentID = agentID.String
	c.CustomerName = name.String
	c.CustomerEmail = email.String
	c.CustomerPhone = phone.String
	c.ExternalRef = externalRef.String
	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	return &c, nil
}

// GetConversationWithAgent retrieves a conversation and joins its assigned agent.
func (s *SQLiteStore) GetConversationWithAgent(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	c, err := s.GetConversation(ctx, conversationID)
	if err != nil || c == nil {
		return c, err
	}
	if c.AgentID == "" {
		return c, nil
	}
	agent, err := s.GetAgent(ctx, c.AgentID)
	if err != nil {
		return nil, err
	}
	c.Agent = agent
	return c, nil
}

// CloseConversation marks a conversation closed if its version still matches.
func (s *SQLiteStore) CloseConversation(ctx context.Context, conversationID string, expectedVersion int64, closedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ?, closed_at = ?, version = version + 1 WHERE id = ? AND version = ?`,
		domain.ConversationStatusClosed, closedAt, conversationID, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	existing, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrConversationNotFound
	}
	return domain.ErrVersionConflict
}

// CreateMessage creates a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		message.ID, message.ConversationID, message.Role, message.Content, message.Status, message.CreatedAt)
	return err
}

// GetMessages retrieves messages for a conversation, oldest first.
func (s *SQLiteStore) GetMessages(ctx context.Context, conversationID string, limit int, before string) ([]domain.Message, error) {
	query := `SELECT id, conversation_id, role, content, status, created_at FROM messages WHERE conversation_id = ?`
	args := []interface{}{conversationID}

	if before != "" {
		query += ` AND created_at < (SELECT created_at FROM messages WHERE id = ?)`
		args = append(args, before)
	}

	query += ` ORDER BY created_at ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetRecentMessages retrieves the newest limit messages in ascending order.
func (s *SQLiteStore) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, status, created_at FROM (
			SELECT rowid AS seq, id, conversation_id, role, content, status, created_at
			FROM messages WHERE conversation_id = ?
			ORDER BY created_at DESC, seq DESC LIMIT ?
		) ORDER BY created_at ASC, seq ASC`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Status, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// UpdateMessageStatus updates the delivery status of a message.
func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET status = ? WHERE id = ?`, status, messageID)
	return err
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, conversation_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.ConversationID, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves events for a conversation.
func (s *SQLiteStore) GetEvents(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, conversation_id, ts, type, payload FROM events WHERE conversation_id = ?`
	args := []interface{}{conversationID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += ` AND type IN (` + strings.Join(placeholders, ",") + `)`
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.ConversationID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CreateActionInvocation stores the audit row of an executed action.
func (s *SQLiteStore) CreateActionInvocation(ctx context.Context, inv *domain.ActionInvocation) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_invocations (invocation_id, conversation_id, endpoint_id, parameters, success, status_code, error, duration_ms, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.InvocationID, inv.ConversationID, inv.EndpointID, string(inv.Parameters), inv.Success,
		inv.StatusCode, nullString(inv.Error), inv.DurationMs, inv.Attempts, inv.CreatedAt)
	return err
}

// ListActionInvocations lists the executed actions of a conversation.
func (s *SQLiteStore) ListActionInvocations(ctx context.Context, conversationID string) ([]domain.ActionInvocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT invocation_id, conversation_id, endpoint_id, parameters, success, status_code, error, duration_ms, attempts, created_at
		 FROM action_invocations WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActionInvocation
	for rows.Next() {
		var inv domain.ActionInvocation
		var params, errText sql.NullString
		var statusCode sql.NullInt64
		if err := rows.Scan(&inv.InvocationID, &inv.ConversationID, &inv.EndpointID, &params, &inv.Success,
			&statusCode, &errText, &inv.DurationMs, &inv.Attempts, &inv.CreatedAt); err != nil {
			return nil, err
		}
		if params.Valid && params.String != "" {
			inv.Parameters = json.RawMessage(params.String)
		}
		inv.StatusCode = int(statusCode.Int64)
		inv.Error = errText.String
		out = append(out, inv)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func marshalColumn(v interface{}) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(b) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalColumn(col sql.NullString, dest interface{}) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dest)
}
