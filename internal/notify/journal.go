package notify

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	defaultJournalTable    = "precog_alerts"
	defaultJournalDatabase = "precog"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// JournalSink записывает оповещения в таблицу ClickHouse
type JournalSink struct {
	conn     driver.Conn
	database string
	table    string
}

type journalTarget struct {
	dsn      string
	database string
	table    string
}

// parseJournalURL разбирает URL вида clickhouse://host:port/database?table=xxx
func parseJournalURL(urlStr string) (journalTarget, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return journalTarget{}, fmt.Errorf("invalid URL: %w", err)
	}

	query := u.Query()
	table := query.Get("table")
	if table == "" {
		table = defaultJournalTable
	}
	database := strings.TrimPrefix(u.Path, "/")
	if database == "" {
		database = defaultJournalDatabase
	}
	if !identRe.MatchString(table) || !identRe.MatchString(database) {
		return journalTarget{}, fmt.Errorf("invalid journal table %s.%s", database, table)
	}

	query.Del("table")
	u.RawQuery = query.Encode()
	return journalTarget{dsn: u.String(), database: database, table: table}, nil
}

// NewJournalSink подключается к ClickHouse и создаёт таблицу, если её нет
func NewJournalSink(ctx context.Context, urlStr string) (*JournalSink, error) {
	target, err := parseJournalURL(urlStr)
	if err != nil {
		return nil, err
	}

	opts, err := clickhouse.ParseDSN(target.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	s := &JournalSink{conn: conn, database: target.database, table: target.table}
	if err := conn.Exec(ctx, s.createTableSQL()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return s, nil
}

func (s *JournalSink) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
		timestamp DateTime64(3),
		id String,
		kind LowCardinality(String),
		device_id Int64,
		issue_id Int64,
		title String,
		body String,
		link String
	) ENGINE = MergeTree ORDER BY (timestamp, device_id)`, s.database, s.table)
}

func (s *JournalSink) Name() string { return "journal" }

func (s *JournalSink) Deliver(ctx context.Context, alert Alert) error {
	query := fmt.Sprintf(
		"INSERT INTO %s.%s (timestamp, id, kind, device_id, issue_id, title, body, link) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		s.database, s.table)
	return s.conn.Exec(ctx, query,
		alert.CreatedAt, alert.ID, string(alert.Kind),
		alert.DeviceID, alert.IssueID, alert.Title, alert.Body, alert.Link)
}

func (s *JournalSink) Close() error {
	return s.conn.Close()
}
