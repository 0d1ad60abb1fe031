package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"shopify-uploader/internal/config"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"
)

func DSN(cfg config.MysqlConfig) string {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	dc := driver.NewConfig()
	dc.User = cfg.Username
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dc.DBName = cfg.Database
	dc.ParseTime = true
	return dc.FormatDSN()
}

func New(ctx context.Context, cfg config.MysqlConfig) (*sql.DB, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Database == "" {
		return nil, fmt.Errorf("mysql: host, username and database are required")
	}

	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("mysql connection error %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping %w", err)
	}

	return db, nil
}
