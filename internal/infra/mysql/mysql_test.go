package mysql

import (
	"context"
	"testing"

	"shopify-uploader/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.MysqlConfig{Host: "db", Username: "app", Password: "secret", Database: "uploader"})
	assert.Equal(t, "app:secret@tcp(db:3306)/uploader?parseTime=true", dsn)
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New(context.Background(), config.MysqlConfig{Username: "app", Database: "uploader"})
	require.Error(t, err)
}
