package postgres

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecorpus/pkg/contract"
	"pricecorpus/plugins/source/sqltable"
)

func TestOpenValidation(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, nil)
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
	_, err = Open(ctx, &Options{DSN: "postgres://localhost/db", Options: sqltable.Options{OrderBy: "id;"}})
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
	_, err = Open(ctx, &Options{DSN: "postgres://localhost:notaport/db"})
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
}

func TestPlain(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(1999), Exp: -2, Valid: true}
	assert.Equal(t, 19.99, plain(n))
	assert.Nil(t, plain(pgtype.Numeric{}))
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000",
		plain([16]byte{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}))
	assert.Equal(t, "x", plain("x"))
}

// 需要真实数据库：设置 PRICECORPUS_TEST_PG_DSN 后运行。
func TestSelectLive(t *testing.T) {
	dsn := os.Getenv("PRICECORPUS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PRICECORPUS_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, &Options{DSN: dsn, Options: sqltable.Options{Table: "pricecorpus_books_test"}})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, `
		DROP TABLE IF EXISTS pricecorpus_books_test;
		CREATE TABLE pricecorpus_books_test (id SERIAL PRIMARY KEY, title TEXT, price NUMERIC(8,2), features JSONB);
		INSERT INTO pricecorpus_books_test (title, price, features) VALUES
			('A', 10.50, '["x"]'), ('B', NULL, NULL), ('C', 3.00, '[]');`)
	require.NoError(t, err)
	defer s.pool.Exec(ctx, `DROP TABLE IF EXISTS pricecorpus_books_test`)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := s.Select(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	v, _ := recs[0].Get("price")
	assert.Equal(t, 10.5, v)
	v, _ = recs[0].Get("features")
	assert.Equal(t, []any{"x"}, v)
	assert.Equal(t, "B", contract.Text(recs[1], "title"))
}
