// Copyright (C) 2025 Convolake, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "shachardon/ShareLM", cfg.Dataset.ID)
	assert.Equal(t, "rowsapi", cfg.Fetch.Transport)
	assert.Equal(t, 500, cfg.Fetch.MaxRows)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "sharelm", cfg.Mongo.Database)
	assert.Equal(t, "conversations", cfg.Mongo.Collection)
	assert.Equal(t, 1000, cfg.Migrate.BatchSize)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONVOLAKE_DATASET_ID", "acme/convos")
	t.Setenv("CONVOLAKE_FETCH_TRANSPORT", "columnar")
	t.Setenv("CONVOLAKE_FETCH_PAGE_DELAY", "250ms")
	t.Setenv("CONVOLAKE_MONGO_URI", "mongodb://db:27017")
	t.Setenv("CONVOLAKE_MIGRATE_BATCH_SIZE", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "acme/convos", cfg.Dataset.ID)
	assert.Equal(t, "columnar", cfg.Fetch.Transport)
	assert.Equal(t, 250*time.Millisecond, cfg.Fetch.PageDelay)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, 500, cfg.Migrate.BatchSize)
}
