// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019-2022 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql" // init MySQL driver
	_ "github.com/mattn/go-sqlite3"    // init SQLite3 driver
)

// SQLStorage is an AuthenticatedStorage backed by database/sql, grounded
// on the teacher's DSN-keyed connection handling in
// service/store/database.go, generalized from a peer/block store into a
// flat scope/key/value table.
type SQLStorage struct {
	db  *sql.DB
	ctx context.Context
}

// NewSQLStorage opens (and migrates) a SQL-backed store. driver is
// "sqlite3" or "mysql"; dsn is the driver-specific connection string, the
// same shape the teacher's DbPool keys connections by.
func NewSQLStorage(ctx context.Context, driver, dsn string) (*SQLStorage, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	const schema = `CREATE TABLE IF NOT EXISTS channel_state (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (scope, key)
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStorage{db: db, ctx: ctx}, nil
}

func (s *SQLStorage) Get(scope, key string) ([]byte, error) {
	row := s.db.QueryRowContext(s.ctx, `SELECT value FROM channel_state WHERE scope = ? AND key = ?`, scope, key)
	var val []byte
	if err := row.Scan(&val); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (s *SQLStorage) Set(scope, key string, val []byte) error {
	_, err := s.db.ExecContext(s.ctx,
		`INSERT INTO channel_state (scope, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value`,
		scope, key, val)
	return err
}

func (s *SQLStorage) Del(scope, key string) error {
	_, err := s.db.ExecContext(s.ctx, `DELETE FROM channel_state WHERE scope = ? AND key = ?`, scope, key)
	return err
}

// Close releases the underlying connection pool.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
