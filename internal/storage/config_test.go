package storage

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	config := Config{
		User:     "a",
		Password: "b",
		Host:     "c",
		Port:     5432,
		DBName:   "d",
	}
	expected := "user=a password=b host=c port=5432 dbname=d sslmode=disable"
	actual := config.DSN()
	require.Equal(t, expected, actual)
}

func TestOptions(t *testing.T) {
	config, err := pgxpool.ParseConfig(Config{User: "a", Password: "b", Host: "c", Port: 5432, DBName: "d"}.DSN())
	require.NoError(t, err)

	ConnectionTimeout(3 * time.Second).apply(config)
	MaxConns(7).apply(config)
	MaxConnLifetime(time.Minute).apply(config)

	require.Equal(t, 3*time.Second, config.ConnConfig.ConnectTimeout)
	require.Equal(t, int32(7), config.MaxConns)
	require.Equal(t, time.Minute, config.MaxConnLifetime)
}

func TestMaxConnsIgnoresNonPositive(t *testing.T) {
	config, err := pgxpool.ParseConfig(Config{User: "a", Password: "b", Host: "c", Port: 5432, DBName: "d"}.DSN())
	require.NoError(t, err)

	before := config.MaxConns
	MaxConns(0).apply(config)
	require.Equal(t, before, config.MaxConns)
}
