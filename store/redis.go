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

	"github.com/go-redis/redis/v8"
)

// RedisStorage is an AuthenticatedStorage backed by Redis, for
// deployments that already run a shared cache/session store fleet and
// want channel state there instead of a local database file.
type RedisStorage struct {
	cli *redis.Client
	ctx context.Context
}

// NewRedisStorage connects to a Redis instance at addr (host:port).
func NewRedisStorage(ctx context.Context, addr string, db int) (*RedisStorage, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStorage{cli: cli, ctx: ctx}, nil
}

func (s *RedisStorage) Get(scope, key string) ([]byte, error) {
	val, err := s.cli.Get(s.ctx, scopedKey(scope, key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return val, err
}

func (s *RedisStorage) Set(scope, key string, val []byte) error {
	return s.cli.Set(s.ctx, scopedKey(scope, key), val, 0).Err()
}

func (s *RedisStorage) Del(scope, key string) error {
	return s.cli.Del(s.ctx, scopedKey(scope, key)).Err()
}

// Close releases the underlying client.
func (s *RedisStorage) Close() error {
	return s.cli.Close()
}
